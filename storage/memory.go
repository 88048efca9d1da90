package storage

import (
	"sort"
	"sync"
	"time"

	"cartas-scraper/models"
)

// MemoryStore is a mutex-guarded in-process Store. It backs the tests and
// serves as the fallback when PostgreSQL is unreachable, so a refresh can
// still feed search within the process lifetime.
type MemoryStore struct {
	mu         sync.RWMutex
	listings   map[string]*models.Listing
	order      []string
	lastUpdate time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{listings: make(map[string]*models.Listing)}
}

// Save upserts by id, preserving CreatedAt on existing rows.
func (m *MemoryStore) Save(listings []*models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range listings {
		cp := *l
		if existing, ok := m.listings[l.ID]; ok {
			cp.CreatedAt = existing.CreatedAt
		} else {
			m.order = append(m.order, l.ID)
		}
		m.listings[l.ID] = &cp
	}
	return nil
}

// FetchAll returns copies of every stored listing in insertion order.
func (m *MemoryStore) FetchAll() ([]*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Listing, 0, len(m.listings))
	for _, id := range m.order {
		if l, ok := m.listings[id]; ok {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// DeleteIDs removes the given ids, returning how many were present.
func (m *MemoryStore) DeleteIDs(ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, id := range ids {
		if _, ok := m.listings[id]; ok {
			delete(m.listings, id)
			removed++
		}
	}
	if removed > 0 {
		m.compactOrder()
	}
	return removed, nil
}

// CleanOld removes listings that were neither created nor refreshed within
// the window.
func (m *MemoryStore) CleanOld(window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-window)
	removed := 0
	for id, l := range m.listings {
		if l.CreatedAt.Before(cutoff) && l.UpdatedAt.Before(cutoff) {
			delete(m.listings, id)
			removed++
		}
	}
	if removed > 0 {
		m.compactOrder()
	}
	return removed, nil
}

// Count returns the number of stored listings.
func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listings), nil
}

// Stats aggregates totals per tipo and per vendedor.
func (m *MemoryStore) Stats() (*models.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.Stats{
		Total:       len(m.listings),
		PorTipo:     make(map[models.Tipo]int),
		PorVendedor: make(map[string]int),
	}
	for _, l := range m.listings {
		stats.PorTipo[l.Tipo]++
		stats.PorVendedor[l.Vendedor]++
	}
	return stats, nil
}

// Vendedores returns the distinct vendedor values, sorted.
func (m *MemoryStore) Vendedores() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, l := range m.listings {
		seen[l.Vendedor] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// LastUpdate returns the recorded refresh timestamp, zero when unset.
func (m *MemoryStore) LastUpdate() (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdate, nil
}

// SetLastUpdate records the refresh timestamp.
func (m *MemoryStore) SetLastUpdate(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUpdate = t
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

// compactOrder drops deleted ids from the insertion-order index.
// Caller holds the write lock.
func (m *MemoryStore) compactOrder() {
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.listings[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
}
