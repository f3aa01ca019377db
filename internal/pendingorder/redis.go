package pendingorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps pending orders in Redis with a fixed TTL so abandoned
// attempts expire on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore constructs a RedisStore. A non-positive ttl defaults to 24h.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl, prefix: "pending-order:"}
}

func (s *RedisStore) Save(ctx context.Context, retailerID string, rec Record) error {
	key, err := s.key(retailerID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode pending order: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save pending order: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, retailerID string) (Record, error) {
	key, err := s.key(retailerID)
	if err != nil {
		return Record{}, err
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("load pending order: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode pending order: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Clear(ctx context.Context, retailerID string) error {
	key, err := s.key(retailerID)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) key(retailerID string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("pendingorder: redis not configured")
	}
	retailerID = strings.TrimSpace(retailerID)
	if retailerID == "" {
		return "", errors.New("pendingorder: retailer id is required")
	}
	return s.prefix + retailerID, nil
}
