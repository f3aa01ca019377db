package checkout

import (
	"context"
	"sync"
)

// MemoryStore is an in-process OrderStore for tests and local tooling.
type MemoryStore struct {
	mu     sync.Mutex
	orders []Order
	// FailWith, when set, is returned from Create.
	FailWith error
}

// Create stores the order, enforcing per-retailer idempotency key uniqueness.
func (m *MemoryStore) Create(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for _, existing := range m.orders {
		if existing.ID == o.ID {
			return ErrDuplicateOrder
		}
		if o.IdempotencyKey != nil && existing.IdempotencyKey != nil &&
			existing.RetailerID == o.RetailerID && *existing.IdempotencyKey == *o.IdempotencyKey {
			return ErrDuplicateOrder
		}
	}
	m.orders = append(m.orders, o)
	return nil
}

// FindByIdempotencyKey returns the retailer's order created under key.
func (m *MemoryStore) FindByIdempotencyKey(_ context.Context, retailerID, key string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.RetailerID == retailerID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

// FindByID returns the retailer's order with the given id.
func (m *MemoryStore) FindByID(_ context.Context, retailerID, orderID string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.RetailerID == retailerID && o.ID == orderID {
			return o, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

// Orders returns a copy of every stored order.
func (m *MemoryStore) Orders() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Order(nil), m.orders...)
}
