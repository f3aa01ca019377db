package health

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Postgres probes the pool with a ping.
func Postgres(pool *pgxpool.Pool) Probe {
	return func(ctx context.Context) error {
		if pool == nil {
			return errors.New("database not configured")
		}
		return pool.Ping(ctx)
	}
}

// Redis probes the client with PING.
func Redis(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis not configured")
		}
		return client.Ping(ctx).Err()
	}
}
