package pendingorder

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func (m *MemoryStore) Save(_ context.Context, retailerID string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]Record)
	}
	m.records[retailerID] = rec
	return nil
}

func (m *MemoryStore) Load(_ context.Context, retailerID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[retailerID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Clear(_ context.Context, retailerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, retailerID)
	return nil
}
