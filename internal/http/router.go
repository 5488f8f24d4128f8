package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/simple-idm-otp/internal/http/features/auth"
	"github.com/tendant/simple-idm-otp/internal/http/features/users"
	"github.com/tendant/simple-idm-otp/internal/http/middleware"
	"github.com/tendant/simple-idm-otp/internal/httputil"
	"github.com/tendant/simple-idm-otp/internal/metrics"
	authsvc "github.com/tendant/simple-idm-otp/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger             *slog.Logger
	Service            *authsvc.Service
	RateLimit          middleware.RateLimitSettings
	SecurityHeaders    middleware.SecurityHeadersConfig
	MaxRequestBodySize int64
	// HTTPMetrics instruments every request when set.
	HTTPMetrics *metrics.HTTPMetrics
	// MetricsHandler is served at /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := chi.NewRouter()
	limiters := middleware.CreateRateLimiters(cfg.RateLimit, cfg.Logger)

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(cfg.HTTPMetrics.Middleware)
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))
	r.Use(limiters.Global)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	authHandler := auth.NewHandler(cfg.Logger, cfg.Service)
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(limiters.Auth)
		authHandler.RegisterRoutes(r)
	})

	usersHandler := users.NewHandler(cfg.Logger, cfg.Service)
	r.Route("/api/users", func(r chi.Router) {
		usersHandler.RegisterRoutes(r, cfg.Logger)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
