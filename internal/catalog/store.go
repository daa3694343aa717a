package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// Ticket orders catalog fetches. Only a ticket newer than the last committed one
// may replace the store's snapshot.
type Ticket struct {
	seq      uint64
	Currency string
}

// Store keeps the latest catalog snapshot in memory. Snapshots are treated as
// immutable: readers share the slices and nobody mutates them after Commit.
type Store struct {
	issued atomic.Uint64

	mu        sync.RWMutex
	applied   uint64
	requested string
	current   pricing.Catalog
	loaded    bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Begin issues a ticket for a fetch in currency.
func (s *Store) Begin(currency string) Ticket {
	return Ticket{seq: s.issued.Add(1), Currency: pricing.NormalizeCurrency(currency)}
}

// Commit installs cat unless a later-issued fetch already committed. It reports
// whether the snapshot was applied.
func (s *Store) Commit(t Ticket, cat pricing.Catalog) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.seq <= s.applied {
		return false
	}
	s.applied = t.seq
	s.requested = t.Currency
	s.current = cat
	s.loaded = true
	return true
}

// Snapshot returns the current catalog and whether one was ever committed.
func (s *Store) Snapshot() (pricing.Catalog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.loaded
}

// Requested is the currency the committed snapshot was fetched for. It differs
// from the snapshot's own currency when the fetch fell back to the bundled catalog.
func (s *Store) Requested() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requested
}

// Families lists the cached product families.
func (s *Store) Families() []pricing.ProductFamily {
	cat, _ := s.Snapshot()
	return cat.ProductFamilies
}

// Family finds a cached family by name.
func (s *Store) Family(name string) (pricing.ProductFamily, bool) {
	return pricing.FindFamily(s.Families(), name)
}

// Plans lists the plans of a cached family, nil when unknown.
func (s *Store) Plans(family string) []pricing.Plan {
	f, ok := s.Family(family)
	if !ok {
		return nil
	}
	return f.Plans
}

// ErrNoCatalog is returned while no catalog was ever committed.
var ErrNoCatalog = errors.New("catalog: no catalog loaded")

// Catalog returns the current snapshot regardless of currency; the storefront
// holds one catalog at a time.
func (s *Store) Catalog(_ context.Context, _ string) (pricing.Catalog, error) {
	cat, ok := s.Snapshot()
	if !ok {
		return pricing.Catalog{}, ErrNoCatalog
	}
	return cat, nil
}
