package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-idm-otp/internal/config"
	httpserver "github.com/tendant/simple-idm-otp/internal/http"
	"github.com/tendant/simple-idm-otp/internal/http/middleware"
	"github.com/tendant/simple-idm-otp/internal/metrics"
	"github.com/tendant/simple-idm-otp/internal/notification"
	"github.com/tendant/simple-idm-otp/internal/seed"
	"github.com/tendant/simple-idm-otp/pkg/auth"
	"github.com/tendant/simple-idm-otp/pkg/repository"
	"github.com/tendant/simple-idm-otp/pkg/repository/memory"
	"github.com/tendant/simple-idm-otp/pkg/repository/redisotp"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	stores, seedStore, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	var mailer auth.Mailer
	if cfg.HasSMTP() {
		mailer = notification.NewSMTPMailer(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			CodeTTL:  cfg.OTPTTL,
		})
		logger.Info("smtp mailer enabled", "host", cfg.SMTPHost)
	} else {
		mailer = notification.NewOutboxMailer(os.Stdout)
		logger.Warn("SMTP_HOST not set, one-time codes are written to stdout")
	}

	var (
		observer       auth.Observer
		httpMetrics    *metrics.HTTPMetrics
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		authMetrics, err := metrics.NewAuthMetrics(nil)
		if err != nil {
			return fmt.Errorf("register auth metrics: %w", err)
		}
		httpMetrics, err = metrics.NewHTTPMetrics(metrics.HTTPMetricsOptions{})
		if err != nil {
			return fmt.Errorf("register http metrics: %w", err)
		}
		observer = authMetrics
		metricsHandler = metrics.Handler(nil)
	}

	service := auth.NewService(auth.ServiceConfig{
		OTPTTL:           cfg.OTPTTL,
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutDuration:  cfg.LockoutDuration,
		PasswordMaxAge:   cfg.PasswordMaxAge,
		HistorySize:      cfg.PasswordHistorySize,
		BcryptCost:       cfg.BcryptCost,
		Policy: &auth.PasswordPolicy{
			MinLength:        cfg.PasswordMinLength,
			RequireUppercase: cfg.PasswordRequireUppercase,
			RequireNumber:    cfg.PasswordRequireNumber,
			RequireSpecial:   cfg.PasswordRequireSpecial,
		},
		Email: auth.EmailRules{
			Strict:          cfg.StrictEmailValidation,
			BlockDisposable: cfg.BlockDisposableEmail,
		},
		Token: auth.TokenConfig{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
			TTL:    cfg.TokenTTL,
		},
		Logger:   logger,
		Observer: observer,
	}, stores, mailer)

	seedFile, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return err
	}
	if err := seed.Apply(ctx, seedStore, seedFile, logger); err != nil {
		return err
	}
	if cfg.HasBootstrapAdmin() {
		if err := seed.BootstrapAdmin(ctx, service, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword, logger); err != nil {
			return err
		}
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:  logger,
		Service: service,
		RateLimit: middleware.RateLimitSettings{
			Enabled:      cfg.RateLimitEnabled,
			Requests:     cfg.RateLimitRequests,
			Window:       cfg.RateLimitWindow,
			AuthRequests: cfg.AuthRateLimitRequests,
		},
		SecurityHeaders:    middleware.DefaultSecurityHeaders(cfg.SecurityHeadersEnabled),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		HTTPMetrics:        httpMetrics,
		MetricsHandler:     metricsHandler,
	})

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// openStores builds the persistence ports for the configured backend. The
// returned close func releases every connection that was opened.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.Stores, seed.Store, func(), error) {
	var (
		stores    auth.Stores
		seedStore seed.Store
		closers   []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("close failed", "error", err)
			}
		}
	}

	switch cfg.Storage {
	case config.StorageMemory:
		mem := memory.New()
		stores = auth.Stores{
			Users:    mem.Users,
			History:  mem.History,
			OTPs:     mem.OTPs,
			Sessions: mem.Sessions,
			Roles:    mem.Roles,
		}
		seedStore = mem.Roles
		logger.Warn("using in-memory storage, data is lost on restart")
	default:
		db, err := openPostgres(ctx, cfg)
		if err != nil {
			return stores, nil, closeAll, err
		}
		closers = append(closers, db.Close)
		roles := repository.NewRolesRepository(db)
		stores = auth.Stores{
			Users:    repository.NewUsersRepository(db),
			History:  repository.NewPasswordHistoryRepository(db),
			OTPs:     repository.NewOTPRepository(db),
			Sessions: repository.NewSessionsRepository(db),
			Roles:    roles,
		}
		seedStore = roles
		logger.Info("connected to database", "host", cfg.DBHost, "db", cfg.DBName)
	}

	if cfg.HasRedis() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			closeAll()
			return stores, nil, func() {}, fmt.Errorf("connect to redis: %w", err)
		}
		closers = append(closers, client.Close)
		stores.OTPs = redisotp.New(client, cfg.RedisPrefix)
		logger.Info("one-time codes stored in redis", "addr", cfg.RedisAddr)
	}

	return stores, seedStore, closeAll, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := repository.NewDB(connectCtx, repository.DBConfig{
		DSN:             cfg.DatabaseDSN(),
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
