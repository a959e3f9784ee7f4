package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/agencyhub/pkg/repository"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr         string
	ServerPort         int
	MaxRequestBodySize int64

	// Database
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int

	// JWT
	JWTSecret string
	JWTIssuer string

	// Redis backs the session-scoped query cache. Empty keeps the cache per request.
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	DispatchSessionTTL time.Duration

	// Stripe
	StripeSecretKey string
	// Where hosted Connect onboarding returns the agency to.
	StripeConnectReturnURL  string
	StripeConnectRefreshURL string

	// CronSecret guards the internal deletion sweep endpoint.
	CronSecret string

	// PermissionsFile overrides the built-in role matrix.
	PermissionsFile string

	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
}

// RateLimitConfig holds per-route-group rate limits.
type RateLimitConfig struct {
	Enabled bool

	APIRequestsPerMinute int
	APIWindowMinutes     int

	ExportRequestsPerWindow int
	ExportWindowMinutes     int

	PaymentsRequestsPerMinute int
	PaymentsWindowMinutes     int

	InternalRequestsPerMinute int
	InternalWindowMinutes     int
}

// SecurityHeadersConfig holds the response security headers.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
	// CacheControl is set on responses that did not choose their own.
	CacheControl string
}

// LoadDatabase loads only the database settings. Commands that do not serve
// HTTP use it so they need no token or provider configuration.
func LoadDatabase() repository.Config {
	cfg := &Config{}
	loadDatabase(cfg)
	return cfg.Database()
}

func loadDatabase(cfg *Config) {
	// Defaults match the local podman setup
	cfg.DBHost = getEnv("DB_HOST", "localhost")
	cfg.DBPort = getEnvInt("DB_PORT", 25432)
	cfg.DBUser = getEnv("DB_USER", "postgres")
	cfg.DBPassword = getEnv("DB_PASSWORD", "postgres")
	cfg.DBName = getEnv("DB_NAME", "agencyhub")
	cfg.DBSSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr:         getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:         getEnvInt("SERVER_PORT", 8080),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "agencyhub"),

		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		DispatchSessionTTL: getEnvDuration("DISPATCH_SESSION_TTL", 12*time.Hour),

		StripeSecretKey:         getEnv("STRIPE_SECRET_KEY", ""),
		StripeConnectReturnURL:  getEnv("STRIPE_CONNECT_RETURN_URL", "http://localhost:3000/settings/payments"),
		StripeConnectRefreshURL: getEnv("STRIPE_CONNECT_REFRESH_URL", "http://localhost:3000/settings/payments?refresh=1"),
		CronSecret:              getEnv("CRON_SECRET", ""),
		PermissionsFile:         getEnv("PERMISSIONS_FILE", ""),

		RateLimit: RateLimitConfig{
			Enabled:                   getEnvBool("RATE_LIMIT_ENABLED", true),
			APIRequestsPerMinute:      getEnvInt("RATE_LIMIT_API_REQUESTS", 300),
			APIWindowMinutes:          getEnvInt("RATE_LIMIT_API_WINDOW", 1),
			ExportRequestsPerWindow:   getEnvInt("RATE_LIMIT_EXPORT_REQUESTS", 5),
			ExportWindowMinutes:       getEnvInt("RATE_LIMIT_EXPORT_WINDOW", 60),
			PaymentsRequestsPerMinute: getEnvInt("RATE_LIMIT_PAYMENTS_REQUESTS", 30),
			PaymentsWindowMinutes:     getEnvInt("RATE_LIMIT_PAYMENTS_WINDOW", 1),
			InternalRequestsPerMinute: getEnvInt("RATE_LIMIT_INTERNAL_REQUESTS", 10),
			InternalWindowMinutes:     getEnvInt("RATE_LIMIT_INTERNAL_WINDOW", 1),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", ""),
			CacheControl:       getEnv("SECURITY_CACHE_CONTROL", "no-store"),
		},
	}
	loadDatabase(cfg)

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DispatchSessionTTL <= 0 {
		return nil, fmt.Errorf("DISPATCH_SESSION_TTL must be positive")
	}

	return cfg, nil
}

// Database returns the repository connection settings.
func (c *Config) Database() repository.Config {
	return repository.Config{
		Host:            c.DBHost,
		Port:            c.DBPort,
		User:            c.DBUser,
		Password:        c.DBPassword,
		DBName:          c.DBName,
		SSLMode:         c.DBSSLMode,
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxOpenConns / 2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// HasRedis returns true if a Redis address is configured.
func (c *Config) HasRedis() bool {
	return c.RedisAddr != ""
}

// HasStripe returns true if a Stripe secret key is configured.
func (c *Config) HasStripe() bool {
	return c.StripeSecretKey != ""
}

// HasCronSecret returns true if the internal sweep endpoint may be enabled.
func (c *Config) HasCronSecret() bool {
	return c.CronSecret != ""
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
