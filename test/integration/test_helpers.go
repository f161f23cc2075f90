//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"hp-booking/internal/clock"
	"hp-booking/internal/config"
	"hp-booking/internal/database"
	"hp-booking/internal/event"
	"hp-booking/internal/guard"
	"hp-booking/internal/handler"
	"hp-booking/internal/metrics"
	"hp-booking/internal/middleware"
	"hp-booking/internal/model"
	"hp-booking/internal/repository"
	"hp-booking/internal/router"
	"hp-booking/internal/service"
	"hp-booking/internal/session"
	"hp-booking/internal/token"
	"hp-booking/pkg/client"
)

const testSecret = "integration-secret-integration-secret"

// newServer wires the full stack against TEST_DATABASE_URL. The test is
// skipped when the variable is unset.
func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, databaseURL, database.PoolOptions{MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.Real()
	appMetrics := metrics.New()
	bus := event.NewBus(logger)

	apiCodec, err := token.NewJWTCodec(testSecret, clk)
	require.NoError(t, err)
	edgeCodec, err := token.NewEdgeCodec(testSecret, clk)
	require.NoError(t, err)

	cookies := session.NewCookieAdapter(session.CookieOptions{})
	authService, err := service.NewAuthService(service.AuthDeps{
		Users:    repository.NewUserRepository(db.Pool),
		Codec:    apiCodec,
		Hasher:   service.NewBcryptHasher(4),
		Events:   bus,
		Recorder: appMetrics,
		Clock:    clk,
	})
	require.NoError(t, err)

	auditService := service.NewAuditService(repository.NewAuditRepository(db.Pool), logger)
	events, unsubscribe := bus.Subscribe()
	auditCtx, cancel := context.WithCancel(ctx)
	go auditService.Run(auditCtx, events)
	t.Cleanup(func() {
		cancel()
		unsubscribe()
	})

	pages, err := handler.NewPageHandler()
	require.NoError(t, err)

	authMiddleware := middleware.NewAuthMiddleware(authService, cookies)
	cfg := &config.Config{
		RequestTimeout:   10 * time.Second,
		CORSOrigins:      []string{"http://localhost:3000"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	server := httptest.NewServer(router.New(cfg, logger, authMiddleware,
		guard.New(guard.DefaultRouteTable(), edgeCodec, cookies, appMetrics), appMetrics,
		router.Handlers{
			Auth:   handler.NewAuthHandler(authService, cookies, authMiddleware, false),
			Audit:  handler.NewAuditHandler(auditService),
			Pages:  pages,
			Health: handler.NewHealthHandler(db),
		}))
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, server *httptest.Server) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{BaseURL: server.URL})
	require.NoError(t, err)
	return c
}

// uniqueRegistration returns a request with an email no other run has used.
func uniqueRegistration(role model.Role) model.RegisterRequest {
	return model.RegisterRequest{
		Name:        "Integrasi " + string(role),
		Email:       "it-" + uuid.NewString()[:8] + "@example.com",
		Password:    "rahasia123",
		PhoneNumber: "081200001111",
		Role:        string(role),
	}
}

// noRedirect stops the standard client from following guard redirects.
func noRedirect() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
