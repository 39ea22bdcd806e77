package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/classup/rental-desk/internal/domain/period"
	"github.com/classup/rental-desk/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// Per item: Available -> CheckedOut -> Available. No other states.
// ══════════════════════════════════════════════════════════════════════════════

// Ledger records checkouts and returns and answers who holds what.
type Ledger struct {
	registry  *Registry
	clock     *period.Clock
	borrowers BorrowerDirectory
	newID     func() string
}

// NewLedger creates a Ledger. A nil directory leaves borrowers as bare IDs.
func NewLedger(registry *Registry, clock *period.Clock, borrowers BorrowerDirectory) *Ledger {
	if clock == nil {
		clock = period.DefaultClock()
	}
	if borrowers == nil {
		borrowers = nopDirectory{}
	}
	return &Ledger{
		registry:  registry,
		clock:     clock,
		borrowers: borrowers,
		newID:     uuid.NewString,
	}
}

// Clock returns the period clock due dates are computed with.
func (l *Ledger) Clock() *period.Clock {
	return l.clock
}

// CheckoutRequest is an approved rental being fulfilled at the desk.
type CheckoutRequest struct {
	ItemID      string
	BorrowerID  string
	Accessory   *string
	DeliveredBy string
}

// Validate checks required fields.
func (r CheckoutRequest) Validate() error {
	if strings.TrimSpace(r.ItemID) == "" {
		return shared.ErrInvalidItemID
	}
	if strings.TrimSpace(r.BorrowerID) == "" {
		return shared.ErrBorrowerRequired
	}
	if strings.TrimSpace(r.DeliveredBy) == "" {
		return shared.ErrDeliveredByRequired
	}
	if utf8.RuneCountInString(r.DeliveredBy) > MaxDeliveredByLength {
		return shared.ErrDeliveredByTooLong
	}
	if r.Accessory != nil && utf8.RuneCountInString(*r.Accessory) > MaxAccessoryLength {
		return shared.ErrAccessoryTooLong
	}
	return nil
}

// Checkout hands an available item to a borrower at now.
// Returns ErrItemNotFound for an unknown item and ErrItemUnavailable
// if the item already has an open record.
func (l *Ledger) Checkout(ctx context.Context, req CheckoutRequest, now time.Time) (*RentalRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock, err := l.registry.locker.Lock(ctx, req.ItemID)
	if err != nil {
		return nil, shared.WrapError("rental", "Checkout", shared.ErrLockNotAcquired, "item lock", err)
	}
	defer unlock()

	var rec *RentalRecord
	err = l.registry.store.WithinTx(ctx, func(tx Store) error {
		item, err := tx.Items().GetForUpdate(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if !item.IsAvailable {
			return shared.ErrItemUnavailable
		}

		rec = &RentalRecord{
			ID:                 l.newID(),
			ItemID:             item.ID,
			BorrowerID:         strings.TrimSpace(req.BorrowerID),
			RequestedAccessory: normalizeOptional(req.Accessory),
			DeliveredAt:        now,
			DeliveredBy:        strings.TrimSpace(req.DeliveredBy),
			ReturnDuePeriod:    l.clock.ReturnDuePeriod(now),
		}
		if err := tx.Rentals().Create(ctx, rec); err != nil {
			return err
		}
		return l.registry.setAvailability(ctx, tx, item, false)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Return closes an open record at now and puts the item back on the shelf.
// Returns ErrRentalNotFound if no open record has that ID.
func (l *Ledger) Return(ctx context.Context, recordID string, now time.Time) (*RentalRecord, error) {
	if strings.TrimSpace(recordID) == "" {
		return nil, shared.ErrRentalNotFound
	}

	rec, err := l.registry.store.Rentals().GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !rec.IsOpen() {
		return nil, shared.ErrRentalNotFound
	}

	unlock, err := l.registry.locker.Lock(ctx, rec.ItemID)
	if err != nil {
		return nil, shared.WrapError("rental", "Return", shared.ErrLockNotAcquired, "item lock", err)
	}
	defer unlock()

	var closed *RentalRecord
	err = l.registry.store.WithinTx(ctx, func(tx Store) error {
		// Re-read under the lock: a concurrent return may have won.
		cur, err := tx.Rentals().GetByID(ctx, recordID)
		if err != nil {
			return err
		}
		if !cur.IsOpen() {
			return shared.ErrRentalNotFound
		}

		returnedAt := now
		cur.ReturnedAt = &returnedAt
		if err := tx.Rentals().Update(ctx, cur); err != nil {
			return err
		}

		item, err := tx.Items().GetForUpdate(ctx, cur.ItemID)
		if err != nil {
			return fmt.Errorf("item of rental %s: %w", cur.ID, err)
		}
		if err := l.registry.setAvailability(ctx, tx, item, true); err != nil {
			return err
		}
		closed = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// ActiveRentals lists every open record with its item and borrower,
// oldest delivery first.
func (l *Ledger) ActiveRentals(ctx context.Context) ([]ActiveRental, error) {
	open, err := l.registry.store.Rentals().ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open rentals: %w", err)
	}
	return l.join(ctx, open)
}

// OverdueRentals lists the open records whose due instant is before now.
func (l *Ledger) OverdueRentals(ctx context.Context, now time.Time) ([]ActiveRental, error) {
	active, err := l.ActiveRentals(ctx)
	if err != nil {
		return nil, err
	}
	overdue := make([]ActiveRental, 0, len(active))
	for _, a := range active {
		if a.IsOverdue(now) {
			overdue = append(overdue, a)
		}
	}
	return overdue, nil
}

// History returns a borrower's records, newest first.
func (l *Ledger) History(ctx context.Context, borrowerID string) ([]*RentalRecord, error) {
	if strings.TrimSpace(borrowerID) == "" {
		return nil, shared.ErrBorrowerRequired
	}
	recs, err := l.registry.store.Rentals().ListByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("list rentals of %s: %w", borrowerID, err)
	}
	return recs, nil
}

func (l *Ledger) join(ctx context.Context, open []*RentalRecord) ([]ActiveRental, error) {
	sort.SliceStable(open, func(i, j int) bool {
		if open[i].DeliveredAt.Equal(open[j].DeliveredAt) {
			return open[i].ID < open[j].ID
		}
		return open[i].DeliveredAt.Before(open[j].DeliveredAt)
	})

	ids := make([]string, 0, len(open))
	for _, rec := range open {
		ids = append(ids, rec.BorrowerID)
	}
	people, err := l.borrowers.Lookup(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup borrowers: %w", err)
	}

	out := make([]ActiveRental, 0, len(open))
	for _, rec := range open {
		if !rec.IsOpen() {
			continue
		}
		item, err := l.registry.store.Items().GetByID(ctx, rec.ItemID)
		if err != nil {
			return nil, fmt.Errorf("item of rental %s: %w", rec.ID, err)
		}
		who, ok := people[rec.BorrowerID]
		if !ok {
			who = Borrower{ID: rec.BorrowerID}
		}
		out = append(out, ActiveRental{
			Record:        rec,
			Item:          item,
			Borrower:      who,
			ReturnDueTime: l.clock.Table().EndTimeOf(rec.ReturnDuePeriod),
			DueAt:         l.clock.DueInstant(rec.DeliveredAt, rec.ReturnDuePeriod),
		})
	}
	return out, nil
}
