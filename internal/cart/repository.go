package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Repository persists a buyer's cart lines in Redis as a JSON document.
type Repository struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRepository constructs a repository. A non-positive ttl defaults to seven days.
func NewRepository(client *redis.Client, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Repository{client: client, ttl: ttl, prefix: "cart:"}
}

// Load returns the stored store for the owner, or an empty store when nothing is stored.
func (r *Repository) Load(ctx context.Context, ownerID string) (*Store, error) {
	if r == nil || r.client == nil {
		return nil, errors.New("cart repository not configured")
	}
	key, err := r.key(ownerID)
	if err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewStore(nil), nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return NewStore(lines), nil
}

// Save writes the store contents and refreshes the TTL.
func (r *Repository) Save(ctx context.Context, ownerID string, s *Store) error {
	if r == nil || r.client == nil {
		return errors.New("cart repository not configured")
	}
	key, err := r.key(ownerID)
	if err != nil {
		return err
	}
	lines := s.Lines()
	if len(lines) == 0 {
		return r.client.Del(ctx, key).Err()
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return r.client.Set(ctx, key, data, r.ttl).Err()
}

// RemovePurchased drops the paid-for lines from the owner's cart and returns
// how many were removed.
func (r *Repository) RemovePurchased(ctx context.Context, ownerID string, refs []ItemRef) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	s, err := r.Load(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	removed := s.RemoveItems(refs)
	if removed == 0 {
		return 0, nil
	}
	if err := r.Save(ctx, ownerID, s); err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *Repository) key(ownerID string) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", fmt.Errorf("owner id is required: %w", ErrInvalidInput)
	}
	return r.prefix + ownerID, nil
}
