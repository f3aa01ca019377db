package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agromarket/internal/checkout"
	"github.com/noah-isme/agromarket/internal/identity"
)

const shallotID = "3f1c2a9e-4b7d-4c1e-9a2f-6d8e0b1c2a01"

type catalogRow struct {
	unitPrice int64
	shipping  int64
	stock     int
	moq       int
	version   int64
}

type fakeCatalogDB struct {
	mu  sync.Mutex
	row catalogRow
}

func (f *fakeCatalogDB) set(row catalogRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.row = row
}

func (f *fakeCatalogDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	return scanRow{id: args[0].(string), row: f.row}
}

type scanRow struct {
	id  string
	row catalogRow
}

func (r scanRow) Scan(dest ...any) error {
	if len(dest) != 11 {
		return errors.New("unexpected column count")
	}
	*dest[0].(*string) = r.id
	*dest[1].(**string) = nil
	*dest[2].(*string) = "Shallot"
	*dest[3].(*string) = ""
	*dest[4].(*string) = "wholesaler-1"
	*dest[5].(*string) = "Tani Makmur"
	*dest[6].(*int64) = r.row.unitPrice
	*dest[7].(*int64) = r.row.shipping
	*dest[8].(*int) = r.row.stock
	*dest[9].(*int) = r.row.moq
	*dest[10].(*int64) = r.row.version
	return nil
}

type retailerStub struct{}

func (retailerStub) CurrentRetailer(context.Context) (identity.Retailer, error) {
	return identity.Retailer{ID: "retailer-1"}, nil
}

func TestCheckoutRepricesAgainstUncachedCatalog(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := &fakeCatalogDB{row: catalogRow{unitPrice: 10000, shipping: 500, stock: 10, moq: 1, version: 1}}
	display, authoritative := priceLookups(db, rdb, 30*time.Second)

	ctx := context.Background()
	warm, err := display.Lookup(ctx, shallotID, nil)
	require.NoError(t, err)
	require.Equal(t, int64(10000), warm.UnitPrice)

	db.set(catalogRow{unitPrice: 20000, shipping: 500, stock: 2, moq: 1, version: 2})

	cached, err := display.Lookup(ctx, shallotID, nil)
	require.NoError(t, err)
	require.Equal(t, int64(10000), cached.UnitPrice)

	svc := newCheckoutService(checkoutDeps{
		Retailers: retailerStub{},
		Prices:    authoritative,
		Orders:    &checkout.MemoryStore{},
	})

	res := svc.CreateOrderIntent(ctx, checkout.Input{
		Lines: []checkout.LineInput{{ProductID: shallotID, Quantity: 3, SeenVersion: 1}},
	})
	require.False(t, res.Success)
	require.Equal(t, checkout.CodeStalePrice, res.Code)

	res = svc.CreateOrderIntent(ctx, checkout.Input{
		Lines: []checkout.LineInput{{ProductID: shallotID, Quantity: 3}},
	})
	require.False(t, res.Success)
	require.Equal(t, checkout.CodeInsufficientStock, res.Code)

	res = svc.CreateOrderIntent(ctx, checkout.Input{
		Lines: []checkout.LineInput{{ProductID: shallotID, Quantity: 2, SeenVersion: 2}},
	})
	require.True(t, res.Success, res.Error)
	require.Equal(t, int64(41000), res.Amount)
}
