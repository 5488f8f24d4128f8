package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/simple-idm-otp/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates an IP-based rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return httputil.ClientIP(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"ip", httputil.ClientIP(r),
					"path", r.URL.Path,
					"method", r.Method,
					"user_agent", r.UserAgent(),
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "too many requests from this IP, please try again later")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// RateLimitSettings configures the global and auth limiters.
type RateLimitSettings struct {
	Enabled      bool
	Requests     int
	Window       time.Duration
	AuthRequests int
}

// Limiters holds the global limiter and the stricter one for credential endpoints.
type Limiters struct {
	Global func(http.Handler) http.Handler
	Auth   func(http.Handler) http.Handler
}

// CreateRateLimiters creates rate limiting middleware functions based on configuration.
func CreateRateLimiters(cfg RateLimitSettings, logger *slog.Logger) Limiters {
	if !cfg.Enabled {
		noOp := NoRateLimit()
		return Limiters{Global: noOp, Auth: noOp}
	}

	return Limiters{
		Global: RateLimit(RateLimitConfig{
			Requests: cfg.Requests,
			Window:   cfg.Window,
			Logger:   logger,
		}),
		Auth: RateLimit(RateLimitConfig{
			Requests: cfg.AuthRequests,
			Window:   cfg.Window,
			Logger:   logger,
		}),
	}
}
