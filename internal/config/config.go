package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	AuthJWTSecret    string
	AuthJWTIssuer    string
	AuthJWTAudience  string
	AuthClockSkew    time.Duration
	AuthAccessCookie string

	PaymentClientKey     string
	PaymentWidgetBaseURL string
	PaymentSuccessURL    string
	PaymentFailURL       string
	Currency             string

	CartTTL           time.Duration
	PendingOrderTTL   time.Duration
	IdempotencyTTL    time.Duration
	PriceCacheTTL     time.Duration
	CheckoutRateLimit string
	CheckoutLockTTL   time.Duration
	LockRetryBackoff  time.Duration

	QueueName        string
	QueueConcurrency int
	QueueMaxRetry    int

	MigrateOnStart bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AuthJWTSecret:    k.String("AUTH_JWT_SECRET"),
		AuthJWTIssuer:    strings.TrimSpace(k.String("AUTH_JWT_ISSUER")),
		AuthJWTAudience:  valueOrDefault(k.String("AUTH_JWT_AUDIENCE"), "authenticated"),
		AuthClockSkew:    parseDuration(k.String("AUTH_CLOCK_SKEW"), "30s"),
		AuthAccessCookie: valueOrDefault(k.String("AUTH_ACCESS_COOKIE"), "sb-access-token"),

		PaymentClientKey:     k.String("PAYMENT_CLIENT_KEY"),
		PaymentWidgetBaseURL: valueOrDefault(k.String("PAYMENT_WIDGET_BASE_URL"), "https://pay.example.com/checkout"),
		PaymentSuccessURL:    k.String("PAYMENT_SUCCESS_URL"),
		PaymentFailURL:       k.String("PAYMENT_FAIL_URL"),
		Currency:             valueOrDefault(k.String("CURRENCY"), "KRW"),

		CartTTL:           parseDuration(k.String("CART_TTL"), "168h"),
		PendingOrderTTL:   parseDuration(k.String("PENDING_ORDER_TTL"), "24h"),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		PriceCacheTTL:     parseDuration(k.String("PRICE_CACHE_TTL"), "30s"),
		CheckoutRateLimit: valueOrDefault(k.String("CHECKOUT_RATE_LIMIT"), "20-M"),
		CheckoutLockTTL:   parseDuration(k.String("CHECKOUT_LOCK_TTL"), "15s"),
		LockRetryBackoff:  parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),

		QueueName:        valueOrDefault(k.String("QUEUE_NAME"), "default"),
		QueueConcurrency: parseInt(k.String("QUEUE_CONCURRENCY"), 10),
		QueueMaxRetry:    parseInt(k.String("QUEUE_MAX_RETRY"), 5),

		MigrateOnStart: parseBool(k.String("MIGRATE_ON_START")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.AuthJWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}
	if cfg.PaymentSuccessURL == "" || cfg.PaymentFailURL == "" {
		return nil, errors.New("PAYMENT_SUCCESS_URL and PAYMENT_FAIL_URL are required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
