package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"hp-booking/internal/config"
	"hp-booking/internal/guard"
	"hp-booking/internal/handler"
	"hp-booking/internal/metrics"
	"hp-booking/internal/middleware"
	"hp-booking/internal/model"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	Audit  *handler.AuditHandler
	Pages  *handler.PageHandler
	Health *handler.HealthHandler
}

type page struct {
	path        string
	title       string
	description string
}

var pages = []page{
	{"/", "HP Booking", "Servis handphone tanpa antre."},
	{"/login", "Masuk", "Masuk untuk mengelola booking servis."},
	{"/register", "Daftar", "Buat akun untuk mulai booking."},
	{"/booking", "Booking Servis", "Pilih jadwal dan jenis kerusakan."},
	{"/profile", "Profil", "Perbarui nama, email dan nomor telepon."},
	{"/history", "Riwayat", "Daftar booking sebelumnya."},
	{"/admin", "Admin", "Kelola booking dan teknisi."},
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	authMiddleware *middleware.AuthMiddleware,
	pageGuard *guard.Guard,
	appMetrics *metrics.Metrics,
	h Handlers,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM, cfg.TrustProxyHeaders)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(appMetrics))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", h.Health.Check)
	r.Method(http.MethodGet, "/metrics", appMetrics.Handler())

	r.Route("/auth", func(auth chi.Router) {
		auth.Use(middleware.Timeout(cfg.RequestTimeout))

		auth.Post("/login", h.Auth.Login)
		auth.Post("/register", h.Auth.Register)
		auth.Post("/logout", h.Auth.Logout)
		auth.Get("/logout", h.Auth.Logout)
		auth.Get("/me", h.Auth.Me)
		auth.With(authMiddleware.RequireAuth).Put("/profile", h.Auth.UpdateProfile)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.With(authMiddleware.RequireAuth, authMiddleware.RequireRoles(model.RoleAdmin)).Get("/audit", h.Audit.List)
	})

	r.Group(func(web chi.Router) {
		web.Use(pageGuard.Middleware)

		for _, p := range pages {
			web.Get(p.path, h.Pages.Page(p.title, p.description))
		}
		web.Get("/static/*", h.Pages.Static)
		web.Get("/manifest.json", h.Pages.Manifest)
		web.Get("/sw.js", h.Pages.ServiceWorker)
	})

	// Unknown paths classify as user-protected.
	r.NotFound(pageGuard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})).ServeHTTP)

	return r
}
