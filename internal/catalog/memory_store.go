package catalog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory catalog store for demo/development mode.
type MemoryStore struct {
	items map[string]*Item
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory catalog store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Item)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *MemoryStore) Create(_ context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *MemoryStore) MarkSold(_ context.Context, id, buyerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return ErrItemNotFound
	}
	if item.Status != StatusAvailable {
		return ErrAlreadySold
	}
	item.Status = StatusSold
	item.BuyerID = buyerID
	item.SoldAt = &at
	item.UpdatedAt = at
	return nil
}

func (m *MemoryStore) ListAvailable(_ context.Context, limit int) ([]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Item
	for _, it := range m.items {
		if it.Status != StatusAvailable {
			continue
		}
		cp := *it
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
