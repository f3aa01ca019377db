package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":        "postgres://localhost/agromarket",
		"REDIS_URL":           "redis://localhost:6379/0",
		"AUTH_JWT_SECRET":     "secret",
		"PAYMENT_SUCCESS_URL": "https://agromarket.test/checkout/success",
		"PAYMENT_FAIL_URL":    "https://agromarket.test/checkout/fail",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 7*24*time.Hour, cfg.CartTTL)
	require.Equal(t, 24*time.Hour, cfg.PendingOrderTTL)
	require.Equal(t, "20-M", cfg.CheckoutRateLimit)
	require.Equal(t, "authenticated", cfg.AuthJWTAudience)
	require.Equal(t, 10, cfg.QueueConcurrency)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ":9090"
	env["PENDING_ORDER_TTL"] = "2h"
	env["QUEUE_CONCURRENCY"] = "3"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.test, https://b.test ,"
	env["CHECKOUT_LOCK_TTL"] = "not-a-duration"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 2*time.Hour, cfg.PendingOrderTTL)
	require.Equal(t, 3, cfg.QueueConcurrency)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 15*time.Second, cfg.CheckoutLockTTL)
}

func TestLoadRequiresSecrets(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "AUTH_JWT_SECRET", "PAYMENT_FAIL_URL"} {
		env := baseEnv()
		env[key] = ""
		_, err := LoadForTests(env)
		require.Error(t, err, key)
	}
}
