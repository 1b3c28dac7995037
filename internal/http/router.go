package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/cache"
)

const apiPrefix = "/api/v1"

// RouterConfig wires handlers and middleware dependencies into the router.
type RouterConfig struct {
	Auth     *AuthHandler
	Users    *UserHandler
	Rooms    *RoomHandler
	Bookings *BookingHandler
	Audit    *AuditHandler
	Health   *HealthHandler

	Verifier TokenVerifier
	// RateLimitStore backs the per-IP limiter on register and login.
	RateLimitStore     cache.Store
	AuthRatePerMinute  int
	CORSOrigins        []string
	// TrustProxyHeaders honours X-Forwarded-For and X-Real-IP. Enable it only
	// behind a proxy that overwrites them.
	TrustProxyHeaders  bool
	DisableMetricsPath bool
	Logger             *slog.Logger
}

// NewRouter builds the chi router serving the API under /api/v1 plus the
// /health and /metrics endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	r := chi.NewRouter()

	r.Use(RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(ClientIP(cfg.TrustProxyHeaders))
	r.Use(Metrics())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(CORS(cfg.CORSOrigins))
	}

	responder := newResponder(logger)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responder.writeError(req.Context(), w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "")
	})

	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
	}
	if !cfg.DisableMetricsPath {
		r.Handle("/metrics", promhttp.Handler())
	}

	authenticated := RequireAuth(cfg.Verifier, logger)
	adminOnly := RequireRole(application.RoleAdmin, logger)
	limited := RateLimit(cfg.RateLimitStore, cfg.AuthRatePerMinute, logger)

	r.Route(apiPrefix, func(r chi.Router) {
		if h := cfg.Auth; h != nil {
			r.Route("/auth", func(r chi.Router) {
				r.With(limited).Post("/register", h.Register)
				r.With(limited).Post("/login", h.Login)
				r.Post("/refresh", h.Refresh)
				r.Post("/logout", h.Logout)
				r.With(authenticated).Post("/logout-all", h.LogoutAll)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			if h := cfg.Users; h != nil {
				r.Get("/users/me", h.Me)
			}

			if h := cfg.Rooms; h != nil {
				r.Route("/rooms", func(r chi.Router) {
					r.Get("/", h.List)
					r.Get("/{id}", h.Get)
					r.With(adminOnly).Post("/", h.Create)
					r.With(adminOnly).Delete("/{id}", h.Deactivate)
				})
			}

			if h := cfg.Bookings; h != nil {
				r.Route("/bookings", func(r chi.Router) {
					r.Post("/", h.Create)
					r.Get("/", h.List)
					r.Get("/my", h.Mine)
					r.Get("/room/{roomId}", h.RoomDay)
					r.Get("/{id}", h.Get)
					r.Put("/{id}", h.Update)
					r.Delete("/{id}", h.Cancel)
				})
			}

			if h := cfg.Audit; h != nil {
				r.With(adminOnly).Get("/audit-logs", h.List)
			}
		})
	})

	return r
}
