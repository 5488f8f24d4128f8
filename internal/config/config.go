package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Storage
	Storage string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (optional OTP store)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// JWT
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// Credential rules
	OTPTTL              time.Duration
	LockoutThreshold    int
	LockoutDuration     time.Duration
	PasswordMaxAge      time.Duration
	PasswordHistorySize int
	BcryptCost          int

	// Password policy
	PasswordMinLength        int
	PasswordRequireUppercase bool
	PasswordRequireNumber    bool
	PasswordRequireSpecial   bool

	// Email validation
	StrictEmailValidation bool
	BlockDisposableEmail  bool

	// SMTP (optional, codes go to stdout when unset)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Seeding
	SeedFile               string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	// HTTP protections
	RateLimitEnabled       bool
	RateLimitRequests      int
	RateLimitWindow        time.Duration
	AuthRateLimitRequests  int
	MaxRequestBodySize     int64
	SecurityHeadersEnabled bool
	MetricsEnabled         bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		Storage: strings.ToLower(getEnv("STORAGE", StoragePostgres)),

		// Database defaults (matches podman setup: make postgres-start)
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 25432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "simple_idm_otp"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "idm:otp"),

		// JWT defaults
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "simple-idm-otp"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 240*time.Hour),

		OTPTTL:              getEnvDuration("OTP_TTL", 3*time.Minute),
		LockoutThreshold:    getEnvInt("LOCKOUT_THRESHOLD", 3),
		LockoutDuration:     getEnvDuration("LOCKOUT_DURATION", 30*time.Minute),
		PasswordMaxAge:      getEnvDuration("PASSWORD_MAX_AGE", 240*time.Hour),
		PasswordHistorySize: getEnvInt("PASSWORD_HISTORY_SIZE", 3),
		BcryptCost:          getEnvInt("BCRYPT_COST", 12),

		PasswordMinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 8),
		PasswordRequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", true),
		PasswordRequireNumber:    getEnvBool("PASSWORD_REQUIRE_NUMBER", true),
		PasswordRequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", true),

		StrictEmailValidation: getEnvBool("STRICT_EMAIL_VALIDATION", false),
		BlockDisposableEmail:  getEnvBool("BLOCK_DISPOSABLE_EMAIL", false),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@localhost"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Simple IDM"),

		SeedFile:               getEnv("SEED_FILE", ""),
		BootstrapAdminEmail:    getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),

		RateLimitEnabled:       getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests:      getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:        getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
		AuthRateLimitRequests:  getEnvInt("AUTH_RATE_LIMIT_REQUESTS", 10),
		MaxRequestBodySize:     int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		SecurityHeadersEnabled: getEnvBool("SECURITY_HEADERS_ENABLED", true),
		MetricsEnabled:         getEnvBool("METRICS_ENABLED", true),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.Storage)
	}
	if cfg.BcryptCost < 12 {
		return nil, fmt.Errorf("BCRYPT_COST must be at least 12")
	}

	return cfg, nil
}

// DatabaseDSN returns the lib/pq connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// HasRedis returns true if the Redis OTP store is configured.
func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

// HasSMTP returns true if outgoing mail is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != ""
}

// HasBootstrapAdmin returns true if an initial admin account should be ensured.
func (c *Config) HasBootstrapAdmin() bool {
	return c.BootstrapAdminEmail != "" && c.BootstrapAdminPassword != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
