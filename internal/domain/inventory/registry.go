package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/classup/rental-desk/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// Registry is the catalog of lendable items.
type Registry struct {
	store  Store
	locker ItemLocker
	now    func() time.Time
	newID  func() string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithNow overrides the clock used for CreatedAt/UpdatedAt.
func WithNow(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithIDGenerator overrides item ID generation.
func WithIDGenerator(gen func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = gen
	}
}

// NewRegistry creates a Registry. A nil locker means an in-process LocalLocker.
func NewRegistry(store Store, locker ItemLocker, opts ...RegistryOption) *Registry {
	if locker == nil {
		locker = NewLocalLocker()
	}
	r := &Registry{
		store:  store,
		locker: locker,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers an item. New items are always available.
func (r *Registry) Create(ctx context.Context, in NewItem) (*Item, error) {
	now := r.now()
	item := &Item{
		ID:           r.newID(),
		Name:         strings.TrimSpace(in.Name),
		Category:     in.Category,
		SerialNumber: normalizeOptional(in.SerialNumber),
		Notes:        normalizeOptional(in.Notes),
		IsAvailable:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := r.store.Items().Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return item, nil
}

// Get returns one item.
func (r *Registry) Get(ctx context.Context, id string) (*Item, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.ErrInvalidItemID
	}
	return r.store.Items().GetByID(ctx, id)
}

// List returns items in registration order, narrowed by filter.
func (r *Registry) List(ctx context.Context, filter ItemFilter) ([]*Item, error) {
	if filter.Category != "" && !filter.Category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}
	items, err := r.store.Items().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Update applies a partial update. Availability is never touched.
func (r *Registry) Update(ctx context.Context, id string, fields ItemFields) (*Item, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.ErrInvalidItemID
	}
	if fields.Category != nil && !fields.Category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}

	unlock, err := r.locker.Lock(ctx, id)
	if err != nil {
		return nil, shared.WrapError("item", "Update", shared.ErrLockNotAcquired, "item lock", err)
	}
	defer unlock()

	var updated *Item
	err = r.store.WithinTx(ctx, func(tx Store) error {
		item, err := tx.Items().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		fields.apply(item)
		if err := item.Validate(); err != nil {
			return err
		}
		item.UpdatedAt = r.now()

		if err := tx.Items().Update(ctx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an item. An item that is out on loan cannot be deleted.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrInvalidItemID
	}

	unlock, err := r.locker.Lock(ctx, id)
	if err != nil {
		return shared.WrapError("item", "Delete", shared.ErrLockNotAcquired, "item lock", err)
	}
	defer unlock()

	return r.store.WithinTx(ctx, func(tx Store) error {
		item, err := tx.Items().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !item.IsAvailable {
			return shared.ErrItemCheckedOut
		}
		return tx.Items().Delete(ctx, id)
	})
}

// setAvailability flips the flag inside the caller's transaction.
// Only the Ledger calls it, and only while holding the item's lock.
func (r *Registry) setAvailability(ctx context.Context, tx Store, item *Item, available bool) error {
	item.IsAvailable = available
	item.UpdatedAt = r.now()
	if err := tx.Items().Update(ctx, item); err != nil {
		return fmt.Errorf("set availability: %w", err)
	}
	return nil
}
