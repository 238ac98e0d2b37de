package reservation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory lease store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	leases map[Key]*Reservation
	// index mirrors the expiry-ordered index a real backend keeps. Entries
	// can outlive their lease record, exactly as in Redis.
	index map[Key]time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory lease store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leases: make(map[Key]*Reservation),
		index:  make(map[Key]time.Time),
	}
}

func (m *MemoryStore) Put(_ context.Context, r *Reservation, _ time.Duration) error {
	key := Key{BuyerID: r.BuyerID, ItemID: r.ItemID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.leases[key]; ok && existing.ExpiresAt.After(time.Now()) {
		return ErrReservationExists
	}
	cp := *r
	m.leases[key] = &cp
	m.index[key] = r.ExpiresAt
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key Key) (*Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.leases[key]
	if !ok || !r.ExpiresAt.After(time.Now()) {
		return nil, ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) GetAny(_ context.Context, key Key) (*Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.leases[key]
	if !ok {
		return nil, ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, key)
	delete(m.index, key)
	return nil
}

func (m *MemoryStore) ListByBuyer(_ context.Context, buyerID string) ([]*Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Reservation
	now := time.Now()
	for key, r := range m.leases {
		if key.BuyerID != buyerID || !r.ExpiresAt.After(now) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListAll(_ context.Context, limit int) ([]*Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Reservation
	now := time.Now()
	for _, r := range m.leases {
		if !r.ExpiresAt.After(now) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ExpiredKeys(_ context.Context, now time.Time, limit int64) ([]Key, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type entry struct {
		key Key
		at  time.Time
	}
	var expired []entry
	for key, at := range m.index {
		if !at.After(now) {
			expired = append(expired, entry{key, at})
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].at.Before(expired[j].at) })
	if limit > 0 && int64(len(expired)) > limit {
		expired = expired[:limit]
	}
	keys := make([]Key, 0, len(expired))
	for _, e := range expired {
		keys = append(keys, e.key)
	}
	return keys, nil
}

func (m *MemoryStore) RemoveIndexEntry(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.index, key)
	return nil
}

// DropRecord removes only the lease record, leaving the index entry in
// place. Tests use it to simulate a backend expiring the raw record before
// the sweeper runs.
func (m *MemoryStore) DropRecord(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, key)
}
