package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hp-booking/internal/clock"
	"hp-booking/internal/config"
	"hp-booking/internal/database"
	"hp-booking/internal/event"
	"hp-booking/internal/guard"
	"hp-booking/internal/handler"
	"hp-booking/internal/logger"
	"hp-booking/internal/metrics"
	"hp-booking/internal/middleware"
	"hp-booking/internal/repository"
	"hp-booking/internal/router"
	"hp-booking/internal/service"
	"hp-booking/internal/session"
	"hp-booking/internal/token"
)

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	slog.SetDefault(log)

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, database.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	slog.Info("database ready")

	appMetrics := metrics.New()
	bus := event.NewBus(log)
	clk := clock.Real()

	apiCodec, err := token.NewJWTCodec(cfg.JWTSecret, clk)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	edgeCodec, err := token.NewEdgeCodec(cfg.JWTSecret, clk)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize edge token codec: %w", err)
	}

	cookieOpts := session.CookieOptions{TrustProxyHeaders: cfg.TrustProxyHeaders}
	if cfg.IsProduction() {
		cookieOpts.Secure = session.SecureAlways
	}
	cookies := session.NewCookieAdapter(cookieOpts)

	authService, err := service.NewAuthService(service.AuthDeps{
		Users:    userRepo,
		Codec:    apiCodec,
		Hasher:   service.NewBcryptHasher(cfg.BcryptCost),
		Events:   bus,
		Recorder: appMetrics,
		Clock:    clk,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	authMiddleware := middleware.NewAuthMiddleware(authService, cookies)
	authHandler := handler.NewAuthHandler(authService, cookies, authMiddleware, cfg.TrustProxyHeaders)

	auditService := service.NewAuditService(auditRepo, log)
	auditHandler := handler.NewAuditHandler(auditService)

	pageHandler, err := handler.NewPageHandler()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize pages: %w", err)
	}

	pageGuard := guard.New(guard.DefaultRouteTable(), edgeCodec, cookies, appMetrics)

	appRouter := router.New(cfg, log, authMiddleware, pageGuard, appMetrics, router.Handlers{
		Auth:   authHandler,
		Audit:  auditHandler,
		Pages:  pageHandler,
		Health: handler.NewHealthHandler(db),
	})

	auditCtx, auditCancel := context.WithCancel(context.Background())
	events, unsubscribe := bus.Subscribe()
	go auditService.Run(auditCtx, events)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			func() {
				auditCancel()
				unsubscribe()
			},
			func() {
				db.Close()
			},
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
