package main

import (
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/agromarket/internal/catalog"
	"github.com/noah-isme/agromarket/internal/checkout"
)

// priceLookups returns the cached lookup used for cart reads and the
// uncached lookup that order creation re-prices against.
func priceLookups(db catalog.Querier, rdb *redis.Client, ttl time.Duration) (*catalog.CachedPrices, catalog.PostgresPrices) {
	source := catalog.PostgresPrices{DB: db}
	return catalog.NewCachedPrices(source, rdb, ttl), source
}

type checkoutDeps struct {
	Retailers checkout.RetailerLookup
	Prices    catalog.PostgresPrices
	Orders    checkout.OrderStore
	Locker    checkout.Locker
	LockTTL   time.Duration
	Events    checkout.Publisher
	Log       zerolog.Logger
}

// newCheckoutService builds the order service. Prices is the concrete
// Postgres lookup so a cached wrapper cannot be wired in by mistake.
func newCheckoutService(d checkoutDeps) *checkout.Service {
	return &checkout.Service{
		Retailers: d.Retailers,
		Prices:    d.Prices,
		Orders:    d.Orders,
		Locker:    d.Locker,
		LockTTL:   d.LockTTL,
		Events:    d.Events,
		Log:       d.Log,
	}
}
