package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, ttl time.Duration) (*Repository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRepository(client, ttl), mr
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo, mr := newTestRepo(t, time.Hour)
	ctx := context.Background()

	empty, err := repo.Load(ctx, "user-1")
	require.NoError(t, err)
	require.Empty(t, empty.Lines())

	s := NewStore(nil)
	_, err = s.Add(Line{ProductID: "P", VariantID: strPtr("V"), Quantity: 3, UnitPrice: 10000, ShippingUnitFee: 500, MOQ: 2, StockQuantity: 10, Name: "Shallots"})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, "user-1", s))
	require.Equal(t, time.Hour, mr.TTL("cart:user-1"))

	loaded, err := repo.Load(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, s.Lines(), loaded.Lines())
	require.Equal(t, s.Totals(), loaded.Totals())

	loaded.Clear()
	require.NoError(t, repo.Save(ctx, "user-1", loaded))
	require.False(t, mr.Exists("cart:user-1"))
}

func TestRepositoryRequiresOwner(t *testing.T) {
	repo, _ := newTestRepo(t, 0)
	_, err := repo.Load(context.Background(), "  ")
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, repo.Save(context.Background(), "", NewStore(nil)), ErrInvalidInput)
}

func TestRepositoryCorruptPayload(t *testing.T) {
	repo, mr := newTestRepo(t, time.Hour)
	require.NoError(t, mr.Set("cart:user-2", "{not-json"))
	_, err := repo.Load(context.Background(), "user-2")
	require.Error(t, err)
}

func TestRepositoryRemovePurchased(t *testing.T) {
	repo, mr := newTestRepo(t, time.Hour)
	ctx := context.Background()

	s := NewStore(nil)
	_, err := s.Add(Line{ProductID: "P", VariantID: strPtr("V1"), Quantity: 2, UnitPrice: 1000, MOQ: 1, StockQuantity: 10, Name: "Garlic 1kg"})
	require.NoError(t, err)
	_, err = s.Add(Line{ProductID: "P", VariantID: strPtr("V2"), Quantity: 2, UnitPrice: 1800, MOQ: 1, StockQuantity: 10, Name: "Garlic 2kg"})
	require.NoError(t, err)
	_, err = s.Add(Line{ProductID: "Q", Quantity: 5, UnitPrice: 700, MOQ: 1, StockQuantity: 10, Name: "Onion"})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, "user-1", s))

	removed, err := repo.RemovePurchased(ctx, "user-1", []ItemRef{{ProductID: "P", VariantID: strPtr("V1")}, {ProductID: "Q"}})
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	loaded, err := repo.Load(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, loaded.Lines(), 1)
	require.Equal(t, "Garlic 2kg", loaded.Lines()[0].Name)

	removed, err = repo.RemovePurchased(ctx, "user-1", []ItemRef{{ProductID: "P", VariantID: strPtr("V2")}})
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.False(t, mr.Exists("cart:user-1"))

	removed, err = repo.RemovePurchased(ctx, "user-1", nil)
	require.NoError(t, err)
	require.Zero(t, removed)
}
