package ratelimit

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// New builds a limiter for a formatted rate such as "20-M" (20 per minute).
func New(store limiter.Store, formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(strings.TrimSpace(formatted))
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse rate %q: %w", formatted, err)
	}
	return limiter.New(store, rate), nil
}

// NewRedisStore returns a limiter store shared by every API replica.
func NewRedisStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	if rdb == nil {
		return nil, fmt.Errorf("ratelimit: redis client not configured")
	}
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: storePrefix(prefix)})
}

// NewMemoryStore returns a process-local limiter store.
func NewMemoryStore(prefix string) limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          storePrefix(prefix),
		CleanUpInterval: time.Minute,
	})
}

func storePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "ratelimit"
	}
	return prefix
}
