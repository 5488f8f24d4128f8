// Package idm embeds the OTP-backed identity service in another application.
//
// Setup:
//
//  1. Open a Postgres connection (or pass no DB to keep everything in memory)
//  2. Create an IDM instance and mount its router
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	auth, err := idm.New(ctx, idm.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	    Mailer:    myMailer,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/idm", auth.Router())
//	http.ListenAndServe(":8080", r)
//
// Protecting your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(auth.AuthMiddleware())
//	    r.With(auth.RequirePermission("reports.view")).Get("/reports", reports)
//	})
package idm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-idm-otp/internal/http/features/auth"
	"github.com/tendant/simple-idm-otp/internal/http/features/users"
	"github.com/tendant/simple-idm-otp/internal/http/middleware"
	"github.com/tendant/simple-idm-otp/internal/httputil"
	"github.com/tendant/simple-idm-otp/internal/notification"
	"github.com/tendant/simple-idm-otp/internal/seed"
	authsvc "github.com/tendant/simple-idm-otp/pkg/auth"
	"github.com/tendant/simple-idm-otp/pkg/domain"
	"github.com/tendant/simple-idm-otp/pkg/repository"
	"github.com/tendant/simple-idm-otp/pkg/repository/memory"
	"github.com/tendant/simple-idm-otp/pkg/repository/redisotp"
)

// Config holds the configuration for the IDM library.
type Config struct {
	// DB is the Postgres connection. When nil, all state is kept in memory.
	DB *sql.DB

	// Migrate applies the embedded schema to DB before use. When false the
	// schema must already exist.
	Migrate bool

	// Redis, when set, stores one-time codes instead of DB.
	Redis       redis.UniversalClient
	RedisPrefix string

	// JWTSecret is the secret key for signing JWT tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in JWT tokens (default: "simple-idm-otp").
	JWTIssuer string

	// TokenTTL is the lifetime of bearer tokens (default: 10 days).
	TokenTTL time.Duration

	// OTPTTL is the lifetime of one-time codes (default: 3 minutes).
	OTPTTL time.Duration

	// Mailer delivers one-time codes (default: written to stdout).
	Mailer authsvc.Mailer

	// Observer receives auth outcomes, typically a *metrics.AuthMetrics.
	Observer authsvc.Observer

	// SeedFile overrides the built-in roles and permissions.
	SeedFile string

	// Logger is the structured logger (default: slog.Default()).
	Logger *slog.Logger
}

// IDM is the main identity management instance.
type IDM struct {
	config  Config
	service *authsvc.Service
}

// New creates a new IDM instance, seeds the built-in roles and returns it.
// Without Migrate, an error is returned if required tables don't exist.
func New(ctx context.Context, cfg Config) (*IDM, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	var (
		stores    authsvc.Stores
		seedStore seed.Store
	)
	if cfg.DB == nil {
		mem := memory.New()
		stores = authsvc.Stores{
			Users:    mem.Users,
			History:  mem.History,
			OTPs:     mem.OTPs,
			Sessions: mem.Sessions,
			Roles:    mem.Roles,
		}
		seedStore = mem.Roles
	} else {
		if cfg.Migrate {
			if err := repository.Migrate(ctx, cfg.DB); err != nil {
				return nil, fmt.Errorf("idm: %w", err)
			}
		} else if err := validateSchema(ctx, cfg.DB); err != nil {
			return nil, err
		}
		roles := repository.NewRolesRepository(cfg.DB)
		stores = authsvc.Stores{
			Users:    repository.NewUsersRepository(cfg.DB),
			History:  repository.NewPasswordHistoryRepository(cfg.DB),
			OTPs:     repository.NewOTPRepository(cfg.DB),
			Sessions: repository.NewSessionsRepository(cfg.DB),
			Roles:    roles,
		}
		seedStore = roles
	}
	if cfg.Redis != nil {
		stores.OTPs = redisotp.New(cfg.Redis, cfg.RedisPrefix)
	}

	f, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("idm: %w", err)
	}
	if err := seed.Apply(ctx, seedStore, f, cfg.Logger); err != nil {
		return nil, fmt.Errorf("idm: %w", err)
	}

	service := authsvc.NewService(authsvc.ServiceConfig{
		OTPTTL: cfg.OTPTTL,
		Token: authsvc.TokenConfig{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
			TTL:    cfg.TokenTTL,
		},
		Logger:   cfg.Logger,
		Observer: cfg.Observer,
	}, stores, cfg.Mailer)

	return &IDM{config: cfg, service: service}, nil
}

// Router returns a chi router with all identity routes.
// Mount this on your main router:
//
//	r := chi.NewRouter()
//	r.Mount("/idm", auth.Router())
//
// Routes:
//
//	POST /auth/signup            - Register with email/password
//	POST /auth/login             - Check password and send a login OTP
//	POST /auth/verify-otp        - Exchange the login OTP for a token
//	POST /auth/forgot-password   - Send a password reset OTP
//	POST /auth/reset-password    - Reset the password with an OTP
//	POST /auth/accept-invitation - Set a password for an invited account
//	GET  /users/profile          - Current user with roles (protected)
//	GET  /users                  - List users (user.view)
//	POST /users/invite           - Invite a user (user.create)
func (i *IDM) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recover(i.config.Logger))
	r.Use(middleware.Logging(i.config.Logger))

	authHandler := auth.NewHandler(i.config.Logger, i.service)
	r.Route("/auth", authHandler.RegisterRoutes)

	usersHandler := users.NewHandler(i.config.Logger, i.service)
	r.Route("/users", func(r chi.Router) {
		usersHandler.RegisterRoutes(r, i.config.Logger)
	})

	return r
}

// Service returns the auth service for advanced usage.
func (i *IDM) Service() *authsvc.Service {
	return i.service
}

// AuthMiddleware returns middleware that validates bearer tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(auth.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (i *IDM) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Authenticate(i.service)
}

// RequirePermission returns middleware that rejects users lacking
// permission. It must run after AuthMiddleware.
func (i *IDM) RequirePermission(permission string) func(http.Handler) http.Handler {
	return middleware.Authorize(i.service, permission, i.config.Logger)
}

// SignupAdmin creates an administrator holding every permission. An
// existing account with that email is left untouched.
func (i *IDM) SignupAdmin(ctx context.Context, email, password string) error {
	return seed.BootstrapAdmin(ctx, i.service, email, password, i.config.Logger)
}

// User represents basic user info returned by GetUser.
type User struct {
	ID    string
	Name  string
	Email string
}

// GetUser returns the authenticated user.
// Use after AuthMiddleware:
//
//	user, err := idm.GetUser(r)
func GetUser(r *http.Request) (*User, error) {
	u, ok := middleware.GetUser(r.Context())
	if !ok {
		return nil, errors.New("user not authenticated")
	}
	return &User{ID: u.ID.String(), Name: u.Name, Email: u.Email}, nil
}

// GetClaims returns the token claims of the authenticated request.
func GetClaims(ctx context.Context) (*domain.TokenClaims, bool) {
	return middleware.GetClaims(ctx)
}

// HealthHandler returns a simple health check handler.
func (i *IDM) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "OK"})
	}
}

// Routes registers all routes on an http.ServeMux with the given prefix:
//
//	mux := http.NewServeMux()
//	auth.Routes(mux, "/api/idm")
func (i *IDM) Routes(mux *http.ServeMux, prefix string) {
	mux.Handle(prefix+"/", http.StripPrefix(prefix, i.Router()))
}

func validateConfig(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("idm: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("idm: JWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "simple-idm-otp"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Mailer == nil {
		cfg.Mailer = notification.NewOutboxMailer(os.Stdout)
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(ctx context.Context, db *sql.DB) error {
	requiredTables := []string{"users", "roles", "permissions", "role_permissions", "user_roles", "password_history", "otps", "sessions"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("idm: missing table '%s' - set Migrate or apply pkg/repository/migrations", table)
		}
		if err != nil {
			return fmt.Errorf("idm: failed to check schema: %w", err)
		}
	}

	return nil
}
