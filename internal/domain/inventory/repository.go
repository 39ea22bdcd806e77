package inventory

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence (memory and postgres).
// ══════════════════════════════════════════════════════════════════════════════

// ItemRepository persists items.
type ItemRepository interface {
	// Create stores a new item.
	// Returns ErrDuplicateSerial if the serial number is already registered.
	Create(ctx context.Context, item *Item) error

	// GetByID returns an item.
	// Returns ErrItemNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Item, error)

	// GetForUpdate returns an item and holds a row lock until the
	// surrounding transaction ends. Outside a transaction it behaves like GetByID.
	GetForUpdate(ctx context.Context, id string) (*Item, error)

	// Update overwrites every mutable column, including IsAvailable.
	// Returns ErrItemNotFound if it does not exist.
	Update(ctx context.Context, item *Item) error

	// Delete removes an item.
	// Returns ErrItemNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// List returns items matching filter in registration order.
	List(ctx context.Context, filter ItemFilter) ([]*Item, error)
}

// RentalRepository persists rental records.
type RentalRepository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Writes
	// ─────────────────────────────────────────────────────────────────────────

	// Create stores a new record.
	// Returns ErrRentalAlreadyOpen if the item already has an open record.
	Create(ctx context.Context, rec *RentalRecord) error

	// Update overwrites a record.
	// Returns ErrRentalNotFound if it does not exist.
	Update(ctx context.Context, rec *RentalRecord) error

	// ─────────────────────────────────────────────────────────────────────────
	// Reads
	// ─────────────────────────────────────────────────────────────────────────

	// GetByID returns a record, open or closed.
	// Returns ErrRentalNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*RentalRecord, error)

	// FindOpenByItem returns the item's open record.
	// Returns ErrRentalNotFound if the item is not out.
	FindOpenByItem(ctx context.Context, itemID string) (*RentalRecord, error)

	// ListOpen returns every open record, oldest delivery first.
	ListOpen(ctx context.Context) ([]*RentalRecord, error)

	// ListByBorrower returns a borrower's records, newest delivery first.
	ListByBorrower(ctx context.Context, borrowerID string) ([]*RentalRecord, error)
}

// Store groups the repositories and runs units of work atomically.
type Store interface {
	Items() ItemRepository
	Rentals() RentalRepository

	// WithinTx runs fn against a transactional view of the store.
	// If fn returns an error every write made through the view is discarded.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// ItemLocker serializes state changes on one item across goroutines or processes.
type ItemLocker interface {
	// Lock blocks until the item's key is held or ctx ends.
	// The returned func releases the key and is safe to call once.
	Lock(ctx context.Context, itemID string) (unlock func(), err error)
}

// BorrowerDirectory resolves borrower IDs to display data.
// Unknown IDs are simply absent from the result.
type BorrowerDirectory interface {
	Lookup(ctx context.Context, ids []string) (map[string]Borrower, error)
}

// nopDirectory knows nobody.
type nopDirectory struct{}

func (nopDirectory) Lookup(context.Context, []string) (map[string]Borrower, error) {
	return map[string]Borrower{}, nil
}
