// Package memory is an in-process implementation of the inventory store.
// It is used in development when no DATABASE_URL is set, and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/shared"
)

// state is the data shared by the root store and its transactional views.
type state struct {
	mu      sync.Mutex
	items   map[string]*inventory.Item
	order   []string // item IDs in registration order
	rentals map[string]*inventory.RentalRecord
}

func (s *state) snapshot() *state {
	cp := &state{
		items:   make(map[string]*inventory.Item, len(s.items)),
		order:   append([]string(nil), s.order...),
		rentals: make(map[string]*inventory.RentalRecord, len(s.rentals)),
	}
	for id, it := range s.items {
		cp.items[id] = it.Clone()
	}
	for id, rec := range s.rentals {
		cp.rentals[id] = rec.Clone()
	}
	return cp
}

func (s *state) restore(from *state) {
	s.items = from.items
	s.order = from.order
	s.rentals = from.rentals
}

// Store implements inventory.Store.
// The root store locks state per call; a view handed to WithinTx runs with
// the lock already held for the whole transaction.
type Store struct {
	st   *state
	inTx bool
}

var _ inventory.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{st: &state{
		items:   make(map[string]*inventory.Item),
		rentals: make(map[string]*inventory.RentalRecord),
	}}
}

// Items implements inventory.Store.
func (s *Store) Items() inventory.ItemRepository {
	return &itemRepo{s}
}

// Rentals implements inventory.Store.
func (s *Store) Rentals() inventory.RentalRepository {
	return &rentalRepo{s}
}

// WithinTx implements inventory.Store. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx inventory.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	before := s.st.snapshot()
	if err := fn(&Store{st: s.st, inTx: true}); err != nil {
		s.st.restore(before)
		return err
	}
	return nil
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.st.mu.Lock()
	return s.st.mu.Unlock
}

// ─────────────────────────────────────────────────────────────────────────────
// Items
// ─────────────────────────────────────────────────────────────────────────────

type itemRepo struct{ s *Store }

func (r *itemRepo) Create(ctx context.Context, item *inventory.Item) error {
	defer r.s.lock()()
	st := r.s.st

	if _, ok := st.items[item.ID]; ok {
		return shared.NewDomainError("item", "Create", shared.ErrConflict, "item ID already exists")
	}
	if item.SerialNumber != nil {
		for _, other := range st.items {
			if other.SerialNumber != nil && *other.SerialNumber == *item.SerialNumber {
				return shared.ErrDuplicateSerial
			}
		}
	}
	st.items[item.ID] = item.Clone()
	st.order = append(st.order, item.ID)
	return nil
}

func (r *itemRepo) GetByID(ctx context.Context, id string) (*inventory.Item, error) {
	defer r.s.lock()()
	it, ok := r.s.st.items[id]
	if !ok {
		return nil, shared.ErrItemNotFound
	}
	return it.Clone(), nil
}

func (r *itemRepo) GetForUpdate(ctx context.Context, id string) (*inventory.Item, error) {
	return r.GetByID(ctx, id)
}

func (r *itemRepo) Update(ctx context.Context, item *inventory.Item) error {
	defer r.s.lock()()
	st := r.s.st

	if _, ok := st.items[item.ID]; !ok {
		return shared.ErrItemNotFound
	}
	if item.SerialNumber != nil {
		for id, other := range st.items {
			if id != item.ID && other.SerialNumber != nil && *other.SerialNumber == *item.SerialNumber {
				return shared.ErrDuplicateSerial
			}
		}
	}
	st.items[item.ID] = item.Clone()
	return nil
}

func (r *itemRepo) Delete(ctx context.Context, id string) error {
	defer r.s.lock()()
	st := r.s.st

	if _, ok := st.items[id]; !ok {
		return shared.ErrItemNotFound
	}
	delete(st.items, id)
	order := st.order[:0:0]
	for _, oid := range st.order {
		if oid != id {
			order = append(order, oid)
		}
	}
	st.order = order
	return nil
}

func (r *itemRepo) List(ctx context.Context, filter inventory.ItemFilter) ([]*inventory.Item, error) {
	defer r.s.lock()()
	st := r.s.st

	out := make([]*inventory.Item, 0, len(st.order))
	for _, id := range st.order {
		it := st.items[id]
		if filter.Matches(it) {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Rentals
// ─────────────────────────────────────────────────────────────────────────────

type rentalRepo struct{ s *Store }

func (r *rentalRepo) Create(ctx context.Context, rec *inventory.RentalRecord) error {
	defer r.s.lock()()
	st := r.s.st

	if rec.IsOpen() {
		for _, other := range st.rentals {
			if other.ItemID == rec.ItemID && other.IsOpen() {
				return shared.ErrRentalAlreadyOpen
			}
		}
	}
	st.rentals[rec.ID] = rec.Clone()
	return nil
}

func (r *rentalRepo) Update(ctx context.Context, rec *inventory.RentalRecord) error {
	defer r.s.lock()()
	if _, ok := r.s.st.rentals[rec.ID]; !ok {
		return shared.ErrRentalNotFound
	}
	r.s.st.rentals[rec.ID] = rec.Clone()
	return nil
}

func (r *rentalRepo) GetByID(ctx context.Context, id string) (*inventory.RentalRecord, error) {
	defer r.s.lock()()
	rec, ok := r.s.st.rentals[id]
	if !ok {
		return nil, shared.ErrRentalNotFound
	}
	return rec.Clone(), nil
}

func (r *rentalRepo) FindOpenByItem(ctx context.Context, itemID string) (*inventory.RentalRecord, error) {
	defer r.s.lock()()
	for _, rec := range r.s.st.rentals {
		if rec.ItemID == itemID && rec.IsOpen() {
			return rec.Clone(), nil
		}
	}
	return nil, shared.ErrRentalNotFound
}

func (r *rentalRepo) ListOpen(ctx context.Context) ([]*inventory.RentalRecord, error) {
	defer r.s.lock()()
	out := r.collect(func(rec *inventory.RentalRecord) bool { return rec.IsOpen() })
	sort.Slice(out, func(i, j int) bool { return older(out[i], out[j]) })
	return out, nil
}

func (r *rentalRepo) ListByBorrower(ctx context.Context, borrowerID string) ([]*inventory.RentalRecord, error) {
	defer r.s.lock()()
	out := r.collect(func(rec *inventory.RentalRecord) bool { return rec.BorrowerID == borrowerID })
	sort.Slice(out, func(i, j int) bool { return older(out[j], out[i]) })
	return out, nil
}

func (r *rentalRepo) collect(keep func(*inventory.RentalRecord) bool) []*inventory.RentalRecord {
	out := make([]*inventory.RentalRecord, 0)
	for _, rec := range r.s.st.rentals {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func older(a, b *inventory.RentalRecord) bool {
	if a.DeliveredAt.Equal(b.DeliveredAt) {
		return a.ID < b.ID
	}
	return a.DeliveredAt.Before(b.DeliveredAt)
}
