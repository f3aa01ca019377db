package checkout_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/agromarket/internal/catalog"
	"github.com/noah-isme/agromarket/internal/checkout"
	"github.com/noah-isme/agromarket/internal/events"
	"github.com/noah-isme/agromarket/internal/identity"
	"github.com/noah-isme/agromarket/internal/lock"
)

type staticRetailer struct {
	retailer identity.Retailer
	err      error
}

func (s staticRetailer) CurrentRetailer(context.Context) (identity.Retailer, error) {
	return s.retailer, s.err
}

type priceTable struct {
	mu     sync.Mutex
	prices map[string]catalog.Price
	err    error
	panic  bool
	calls  int
}

func (p *priceTable) Lookup(_ context.Context, productID string, _ *string) (catalog.Price, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.panic {
		panic("catalog exploded")
	}
	if p.err != nil {
		return catalog.Price{}, p.err
	}
	price, ok := p.prices[productID]
	if !ok {
		return catalog.Price{}, catalog.ErrNotFound
	}
	return price, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (c *capturePublisher) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	return events.Event{Topic: topic, AggregateID: aggregateID}, c.err
}

var fixedNow = time.Date(2026, 4, 7, 8, 30, 0, 0, time.UTC)

func newService(t *testing.T) (*checkout.Service, *checkout.MemoryStore, *priceTable, *capturePublisher) {
	t.Helper()
	store := &checkout.MemoryStore{}
	prices := &priceTable{prices: map[string]catalog.Price{
		"shallot": {ProductID: "shallot", Name: "Shallot", UnitPrice: 10000, ShippingFeePerUnit: 500, MOQ: 1, StockQuantity: 10, Version: 2},
		"chili":   {ProductID: "chili", Name: "Red Chili", UnitPrice: 8000, ShippingFeePerUnit: 0, MOQ: 5, StockQuantity: 100, Version: 1},
		"garlic":  {ProductID: "garlic", Name: "Garlic", UnitPrice: 12000, MOQ: 1, StockQuantity: 2, Version: 1},
	}}
	pub := &capturePublisher{}
	svc := &checkout.Service{
		Retailers: staticRetailer{retailer: identity.Retailer{ID: "retailer-1", BusinessName: "Toko Sayur"}},
		Prices:    prices,
		Orders:    store,
		Events:    pub,
		Now:       func() time.Time { return fixedNow },
		NewToken:  func() string { return "a1b2c3d4e5f6a7b8" },
	}
	return svc, store, prices, pub
}

func TestCreateOrderIntentComputesServerAmount(t *testing.T) {
	svc, store, _, pub := newService(t)

	res := svc.CreateOrderIntent(context.Background(), checkout.Input{
		Lines:    []checkout.LineInput{{ProductID: "shallot", Quantity: 3, ClientUnitPrice: 1}},
		Delivery: checkout.Delivery{Option: "standard", TimeWindow: "morning"},
	})

	require.True(t, res.Success, res.Error)
	require.Equal(t, "ORD-20260407-a1b2c3d4e5", res.OrderID)
	require.Equal(t, "Shallot", res.OrderName)
	require.Equal(t, int64(31500), res.Amount)
	require.Equal(t, int64(30000), res.ProductTotal)
	require.Equal(t, int64(1500), res.ShippingFee)
	require.Len(t, res.ValidatedItems, 1)
	require.Equal(t, int64(10000), res.ValidatedItems[0].UnitPrice)

	orders := store.Orders()
	require.Len(t, orders, 1)
	require.Equal(t, int64(31500), orders[0].Amount)
	require.Equal(t, checkout.StatusPendingPayment, orders[0].Status)
	require.Equal(t, "retailer-1", orders[0].RetailerID)
	require.Equal(t, []string{events.TopicOrderCreated}, pub.topics)
}

func TestCreateOrderIntentIgnoresClientTotal(t *testing.T) {
	svc, store, _, _ := newService(t)
	for _, claimed := range []int64{0, 1, 999999999} {
		claimed := claimed
		res := svc.CreateOrderIntent(context.Background(), checkout.Input{
			Lines:       []checkout.LineInput{{ProductID: "shallot", Quantity: 3}},
			ClientTotal: &claimed,
		})
		require.True(t, res.Success)
		require.Equal(t, int64(31500), res.Amount)
	}
	for _, o := range store.Orders() {
		require.Equal(t, int64(31500), o.Amount)
	}
}

func TestCreateOrderIntentNormalisesShipping(t *testing.T) {
	svc, _, _, _ := newService(t)
	res := svc.CreateOrderIntent(context.Background(), checkout.Input{
		Lines: []checkout.LineInput{
			{ProductID: "chili", Quantity: 5},
			{ProductID: "shallot", Quantity: 1},
			{ProductID: "garlic", Quantity: 1},
		},
	})
	require.True(t, res.Success, res.Error)
	require.Equal(t, "Red Chili and 2 more", res.OrderName)
	require.Equal(t, int64(0), res.ValidatedItems[0].ShippingFeePerUnit)
	require.Equal(t, int64(0), res.ValidatedItems[0].ShippingFee)
	require.Equal(t, int64(40000+10500+12000), res.Amount)
}

func TestCreateOrderIntentFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*checkout.Service, *priceTable, *checkout.MemoryStore)
		input  checkout.Input
		code   string
	}{
		{
			name: "unauthenticated",
			mutate: func(s *checkout.Service, _ *priceTable, _ *checkout.MemoryStore) {
				s.Retailers = staticRetailer{err: identity.ErrUnauthenticated}
			},
			input: checkout.Input{Lines: []checkout.LineInput{{ProductID: "shallot", Quantity: 1}}},
			code:  checkout.CodeUnauthenticated,
		},
		{
			name: "no retailer profile",
			mutate: func(s *checkout.Service, _ *priceTable, _ *checkout.MemoryStore) {
				s.Retailers = staticRetailer{err: identity.ErrNoRetailer}
			},
			input: checkout.Input{Lines: []checkout.LineInput{{ProductID: "shallot", Quantity: 1}}},
			code:  checkout.CodeUnauthenticated,
		},
		{
			name:  "empty order",
			input: checkout.Input{},
			code:  checkout.CodeEmptyOrder,
		},
		{
			name:  "zero quantity",
			input: checkout.Input{Lines: []checkout.LineInput{{ProductID: "shallot", Quantity: 0}}},
			code:  checkout.CodeInvalidQuantity,
		},
		{
			name:  "missing product id",
			input: checkout.Input{Lines: []checkout.LineInput{{Quantity: 1}}},
			code:  checkout.CodeInvalidInput,
		},
		{
			name:  "unknown product",
			input: checkout.Input{Lines: []checkout.LineInput{{ProductID: "durian", Quantity: 1}}},
			code:  checkout.CodePricingFailed,
		},
		{
			name: "catalog outage",
			mutate: func(_ *checkout.Service, p *priceTable, _ *checkout.MemoryStore) {
				p.err = errors.New("connection refused")
			},
			input: checkout.Input{Lines: []checkout.LineInput{{ProductID: "shallot", Quantity: 1}}},
			code:  checkout.CodePricingFailed,
		},
		{
			name:  "stale price",
			input: checkout.Input{Lines: []checkout.LineInput{{ProductID: "shallot", Quantity: 1, SeenVersion: 1}}},
			code:  checkout.CodeStalePrice,
		},
		{
			name:  "moq not met",
			input: checkout.Input{Lines: []checkout.LineInput{{ProductID: "chili", Quantity: 2}}},
			code:  checkout.CodeMOQNotMet,
		},
		{
			name:  "insufficient stock",
			input: checkout.Input{Lines: []checkout.LineInput{{ProductID: "garlic", Quantity: 3}}},
			code:  checkout.CodeInsufficientStock,
		},
		{
			name: "persist failure",
			mutate: func(_ *checkout.Service, _ *priceTable, m *checkout.MemoryStore) {
				m.FailWith = errors.New("disk full")
			},
			input: checkout.Input{Lines: []checkout.LineInput{{ProductID: "shallot", Quantity: 1}}},
			code:  checkout.CodePersistFailed,
		},
		{
			name: "panic inside pricing",
			mutate: func(_ *checkout.Service, p *priceTable, _ *checkout.MemoryStore) {
				p.panic = true
			},
			input: checkout.Input{Lines: []checkout.LineInput{{ProductID: "shallot", Quantity: 1}}},
			code:  checkout.CodeInternal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, prices, _ := newService(t)
			if tc.mutate != nil {
				tc.mutate(svc, prices, store)
			}
			var res checkout.Result
			require.NotPanics(t, func() {
				res = svc.CreateOrderIntent(context.Background(), tc.input)
			})
			require.False(t, res.Success)
			require.Equal(t, tc.code, res.Code)
			require.NotEmpty(t, res.Error)
			require.Empty(t, store.Orders())
		})
	}
}

func TestCreateOrderIntentChecksStockAcrossRepeatedLines(t *testing.T) {
	svc, store, _, pub := newService(t)

	res := svc.CreateOrderIntent(context.Background(), checkout.Input{
		Lines: []checkout.LineInput{
			{ProductID: "garlic", Quantity: 2},
			{ProductID: "garlic", Quantity: 2},
		},
	})

	require.False(t, res.Success)
	require.Equal(t, checkout.CodeInsufficientStock, res.Code)
	require.Contains(t, res.Error, "requested 4")
	require.Empty(t, store.Orders())
	require.Empty(t, pub.topics)
}

func TestCreateOrderIntentRepeatedLinesMeetMOQTogether(t *testing.T) {
	svc, _, _, _ := newService(t)

	res := svc.CreateOrderIntent(context.Background(), checkout.Input{
		Lines: []checkout.LineInput{
			{ProductID: "chili", Quantity: 3},
			{ProductID: "chili", Quantity: 2},
		},
	})

	require.True(t, res.Success, res.Error)
	require.Len(t, res.ValidatedItems, 2)
	require.Equal(t, int64(40000), res.Amount)
}

func TestCreateOrderIntentAttributesErrors(t *testing.T) {
	svc, _, _, _ := newService(t)
	res := svc.CreateOrderIntent(context.Background(), checkout.Input{
		Lines: []checkout.LineInput{{ProductID: "chili", Quantity: 2}},
	})
	require.Equal(t, checkout.CodeMOQNotMet, res.Code)
	require.Contains(t, res.Error, "Red Chili")
	require.Len(t, res.Details, 1)
	require.Equal(t, "chili", res.Details[0].ProductID)
	require.Equal(t, 5, res.Details[0].Required)

	svc.Prices.(*priceTable).panic = true
	res = svc.CreateOrderIntent(context.Background(), checkout.Input{
		Lines: []checkout.LineInput{{ProductID: "chili", Quantity: 5}},
	})
	require.Equal(t, checkout.GenericFailureMessage, res.Error)
}

func TestCreateOrderIntentNilService(t *testing.T) {
	var svc *checkout.Service
	res := svc.CreateOrderIntent(context.Background(), checkout.Input{})
	require.Equal(t, checkout.CodeInternal, res.Code)
}

func TestCreateOrderIntentWithoutKeyAlwaysCreates(t *testing.T) {
	svc, store, _, _ := newService(t)
	tokens := []string{"aaaaaaaaaa", "bbbbbbbbbb"}
	svc.NewToken = func() string {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok
	}
	in := checkout.Input{Lines: []checkout.LineInput{{ProductID: "shallot", Quantity: 1}}}
	first := svc.CreateOrderIntent(context.Background(), in)
	second := svc.CreateOrderIntent(context.Background(), in)
	require.True(t, first.Success)
	require.True(t, second.Success)
	require.NotEqual(t, first.OrderID, second.OrderID)
	require.Len(t, store.Orders(), 2)
}

func TestCreateOrderIntentIdempotencyKey(t *testing.T) {
	svc, store, prices, pub := newService(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc.Locker = lock.Locker{R: client, RetryBackoff: 2 * time.Millisecond}

	in := checkout.Input{
		Lines:          []checkout.LineInput{{ProductID: "shallot", Quantity: 3}},
		IdempotencyKey: "cart-42-nonce-1",
	}
	first := svc.CreateOrderIntent(context.Background(), in)
	require.True(t, first.Success)
	require.False(t, first.Replayed)

	second := svc.CreateOrderIntent(context.Background(), in)
	require.True(t, second.Success)
	require.True(t, second.Replayed)
	require.Equal(t, first.OrderID, second.OrderID)
	require.Equal(t, first.Amount, second.Amount)
	require.Len(t, store.Orders(), 1)
	require.Len(t, pub.topics, 1, "replays do not emit events")
	callsAfterReplay := prices.calls

	changed := in
	changed.Lines = []checkout.LineInput{{ProductID: "shallot", Quantity: 4}}
	conflict := svc.CreateOrderIntent(context.Background(), changed)
	require.False(t, conflict.Success)
	require.Equal(t, checkout.CodeIdempotencyConflict, conflict.Code)
	require.Equal(t, callsAfterReplay, prices.calls, "conflicts are detected before re-pricing")

	other := in
	other.IdempotencyKey = "cart-42-nonce-2"
	third := svc.CreateOrderIntent(context.Background(), other)
	require.True(t, third.Success)
	require.NotEqual(t, "", third.OrderID)
	require.Len(t, store.Orders(), 2)
}

func TestCreateOrderIntentConcurrentSameKey(t *testing.T) {
	svc, store, _, _ := newService(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc.Locker = lock.Locker{R: client, RetryBackoff: 2 * time.Millisecond}
	var n int
	var mu sync.Mutex
	svc.NewToken = func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return strings.Repeat(string(rune('a'+n)), 10)
	}

	in := checkout.Input{Lines: []checkout.LineInput{{ProductID: "shallot", Quantity: 1}}, IdempotencyKey: "double-click"}
	var wg sync.WaitGroup
	results := make([]checkout.Result, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.CreateOrderIntent(context.Background(), in)
		}(i)
	}
	wg.Wait()

	require.Len(t, store.Orders(), 1)
	for _, res := range results {
		require.True(t, res.Success)
		require.Equal(t, store.Orders()[0].ID, res.OrderID)
	}
}

func TestOrderName(t *testing.T) {
	require.Equal(t, "", checkout.OrderName(nil))
	require.Equal(t, "Shallot", checkout.OrderName([]checkout.ValidatedItem{{Name: "Shallot"}}))
	require.Equal(t, "Shallot and 1 more", checkout.OrderName([]checkout.ValidatedItem{{Name: "Shallot"}, {Name: "Garlic"}}))
	require.Equal(t, "p1", checkout.OrderName([]checkout.ValidatedItem{{ProductID: "p1"}}))
}
