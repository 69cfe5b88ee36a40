// Package memory is an in-process store.Store for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sukino/stockledger"
	"github.com/sukino/stockledger/consumption"
	"github.com/sukino/stockledger/history"
	"github.com/sukino/stockledger/id"
	"github.com/sukino/stockledger/purchase"
	"github.com/sukino/stockledger/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store keeps every collection in maps guarded by one lock. Rows are
// copied on the way in and out so callers never share memory with it.
type Store struct {
	mu sync.RWMutex

	purchases    map[string]*purchase.Aggregate
	consumptions map[string]*consumption.Aggregate

	purchaseHistory    []*history.Record
	consumptionHistory []*history.Record

	now    func() time.Time
	closed bool
}

// Option configures a memory Store.
type Option func(*Store)

// WithClock sets the clock used to stamp rows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		purchases:    make(map[string]*purchase.Aggregate),
		consumptions: make(map[string]*consumption.Aggregate),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ──────────────────────────────────────────────────
// Purchase aggregates
// ──────────────────────────────────────────────────

func (s *Store) FindPurchasesByItem(_ context.Context, branch, normalized string) ([]*purchase.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, stockledger.ErrStoreClosed
	}

	var out []*purchase.Aggregate
	for _, a := range s.purchases {
		if a.Branch == branch && a.NormalizedDescription == normalized {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (s *Store) ListPurchases(_ context.Context, branch string, opts purchase.ListOpts) ([]*purchase.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, stockledger.ErrStoreClosed
	}

	out := make([]*purchase.Aggregate, 0)
	for _, a := range s.purchases {
		if a.Branch == branch {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].UpdatedAt, out[j].UpdatedAt, out[i].ID, out[j].ID) })
	return page(out, opts.Offset, opts.Limit), nil
}

func (s *Store) GetPurchase(_ context.Context, purchaseID id.PurchaseID) (*purchase.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, stockledger.ErrStoreClosed
	}

	if a, ok := s.purchases[purchaseID.String()]; ok {
		return a.Clone(), nil
	}
	return nil, stockledger.ErrNotFound
}

func (s *Store) InsertPurchase(_ context.Context, a *purchase.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stockledger.ErrStoreClosed
	}

	if _, exists := s.purchases[a.ID.String()]; exists {
		return stockledger.ErrConflict
	}
	now := s.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.Version = 1
	s.purchases[a.ID.String()] = a.Clone()
	return nil
}

func (s *Store) UpdatePurchase(_ context.Context, a *purchase.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stockledger.ErrStoreClosed
	}

	cur, ok := s.purchases[a.ID.String()]
	if !ok {
		return stockledger.ErrNotFound
	}
	if cur.Version != a.Version {
		return stockledger.ErrConflict
	}
	a.CreatedAt = cur.CreatedAt
	a.Touch(s.now())
	a.Version++
	s.purchases[a.ID.String()] = a.Clone()
	return nil
}

func (s *Store) DeletePurchase(_ context.Context, purchaseID id.PurchaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stockledger.ErrStoreClosed
	}

	if _, ok := s.purchases[purchaseID.String()]; !ok {
		return stockledger.ErrNotFound
	}
	delete(s.purchases, purchaseID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Consumption aggregates
// ──────────────────────────────────────────────────

func (s *Store) FindConsumptionsByItem(_ context.Context, branch, normalized string) ([]*consumption.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, stockledger.ErrStoreClosed
	}

	var out []*consumption.Aggregate
	for _, a := range s.consumptions {
		if a.Branch == branch && a.NormalizedDescription == normalized {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (s *Store) ListConsumptions(_ context.Context, branch string, opts consumption.ListOpts) ([]*consumption.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, stockledger.ErrStoreClosed
	}

	out := make([]*consumption.Aggregate, 0)
	for _, a := range s.consumptions {
		if a.Branch == branch {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].UpdatedAt, out[j].UpdatedAt, out[i].ID, out[j].ID) })
	return page(out, opts.Offset, opts.Limit), nil
}

func (s *Store) GetConsumption(_ context.Context, consumptionID id.ConsumptionID) (*consumption.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, stockledger.ErrStoreClosed
	}

	if a, ok := s.consumptions[consumptionID.String()]; ok {
		return a.Clone(), nil
	}
	return nil, stockledger.ErrNotFound
}

func (s *Store) InsertConsumption(_ context.Context, a *consumption.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stockledger.ErrStoreClosed
	}

	if _, exists := s.consumptions[a.ID.String()]; exists {
		return stockledger.ErrConflict
	}
	now := s.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.Version = 1
	s.consumptions[a.ID.String()] = a.Clone()
	return nil
}

func (s *Store) UpdateConsumption(_ context.Context, a *consumption.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stockledger.ErrStoreClosed
	}

	cur, ok := s.consumptions[a.ID.String()]
	if !ok {
		return stockledger.ErrNotFound
	}
	if cur.Version != a.Version {
		return stockledger.ErrConflict
	}
	a.CreatedAt = cur.CreatedAt
	a.Touch(s.now())
	a.Version++
	s.consumptions[a.ID.String()] = a.Clone()
	return nil
}

func (s *Store) DeleteConsumption(_ context.Context, consumptionID id.ConsumptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stockledger.ErrStoreClosed
	}

	if _, ok := s.consumptions[consumptionID.String()]; !ok {
		return stockledger.ErrNotFound
	}
	delete(s.consumptions, consumptionID.String())
	return nil
}

// ──────────────────────────────────────────────────
// History
// ──────────────────────────────────────────────────

func (s *Store) AppendPurchaseHistory(_ context.Context, r *history.Record) error {
	return s.appendHistory(&s.purchaseHistory, r)
}

func (s *Store) ListPurchaseHistory(_ context.Context, branch string, opts history.ListOpts) ([]*history.Record, error) {
	return s.listHistory(s.purchaseHistory, branch, opts)
}

func (s *Store) AppendConsumptionHistory(_ context.Context, r *history.Record) error {
	return s.appendHistory(&s.consumptionHistory, r)
}

func (s *Store) ListConsumptionHistory(_ context.Context, branch string, opts history.ListOpts) ([]*history.Record, error) {
	return s.listHistory(s.consumptionHistory, branch, opts)
}

func (s *Store) appendHistory(dst *[]*history.Record, r *history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stockledger.ErrStoreClosed
	}

	if r.CreatedAt.IsZero() {
		now := s.now().UTC()
		r.CreatedAt, r.UpdatedAt = now, now
	}
	c := *r
	*dst = append(*dst, &c)
	return nil
}

func (s *Store) listHistory(src []*history.Record, branch string, opts history.ListOpts) ([]*history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, stockledger.ErrStoreClosed
	}

	out := make([]*history.Record, 0)
	// Appended in order, so walking backwards gives newest first.
	for i := len(src) - 1; i >= 0; i-- {
		r := src[i]
		if r.Branch != branch || (opts.Action != "" && r.Action != opts.Action) {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	return page(out, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return stockledger.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Later calls fail with ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// newer orders by UpdatedAt descending, then by ID for a stable order.
func newer(a, b time.Time, aid, bid id.ID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aid.String() > bid.String()
}

func page[T any](rows []T, offset, limit int) []T {
	start := offset
	if start > len(rows) {
		start = len(rows)
	}
	end := start + limit
	if limit <= 0 || end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
