package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lookuper resolves price snapshots.
type Lookuper interface {
	Lookup(ctx context.Context, productID string, variantID *string) (Price, error)
}

// CachedPrices fronts a Lookuper with a short-lived Redis cache. It serves
// display-time reads such as adding to the cart; order creation must use the
// uncached source.
type CachedPrices struct {
	Source Lookuper
	client *redis.Client
	ttl    time.Duration
}

// NewCachedPrices constructs a cache wrapper. A nil client or non-positive ttl
// disables caching.
func NewCachedPrices(source Lookuper, client *redis.Client, ttl time.Duration) *CachedPrices {
	return &CachedPrices{Source: source, client: client, ttl: ttl}
}

// Lookup returns the cached snapshot when present, otherwise consults Source
// and stores the result.
func (c *CachedPrices) Lookup(ctx context.Context, productID string, variantID *string) (Price, error) {
	if c == nil || c.Source == nil {
		return Price{}, errors.New("catalog: price source not configured")
	}
	key := cacheKey(productID, variantID)
	var cached Price
	if ok, err := c.getJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	price, err := c.Source.Lookup(ctx, productID, variantID)
	if err != nil {
		return Price{}, err
	}
	_ = c.setJSON(ctx, key, price)
	return price, nil
}

// Invalidate drops the cached snapshot for the product and variant.
func (c *CachedPrices) Invalidate(ctx context.Context, productID string, variantID *string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(productID, variantID)).Err()
}

func cacheKey(productID string, variantID *string) string {
	key := "catalog:price:" + productID
	if variantID != nil && *variantID != "" {
		key += ":" + *variantID
	}
	return key
}

func (c *CachedPrices) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c.client == nil || c.ttl <= 0 {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *CachedPrices) setJSON(ctx context.Context, key string, v any) error {
	if c.client == nil || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
