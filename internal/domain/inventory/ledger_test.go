package inventory_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/period"
	"github.com/classup/rental-desk/internal/domain/shared"
	"github.com/classup/rental-desk/internal/infrastructure/persistence/memory"
	"github.com/classup/rental-desk/pkg/timeutil"
)

func kst(hour, min int) time.Time {
	return time.Date(2024, 3, 4, hour, min, 0, 0, timeutil.SeoulTZ)
}

type fixture struct {
	reg    *inventory.Registry
	ledger *inventory.Ledger
	store  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	reg := inventory.NewRegistry(store, nil)
	dir := memory.NewDirectory(inventory.Borrower{ID: "s-1", Name: "Kim Minji", SeatNumber: "A12"})
	return &fixture{
		reg:    reg,
		ledger: inventory.NewLedger(reg, period.DefaultClock(), dir),
		store:  store,
	}
}

func (f *fixture) item(t *testing.T, name string) *inventory.Item {
	t.Helper()
	it, err := f.reg.Create(context.Background(), inventory.NewItem{Name: name, Category: inventory.CategoryPowerBank})
	require.NoError(t, err)
	return it
}

func checkout(itemID, borrower string) inventory.CheckoutRequest {
	return inventory.CheckoutRequest{ItemID: itemID, BorrowerID: borrower, DeliveredBy: "desk"}
}

func TestLedger_CheckoutFlipsAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "bank")

	req := checkout(item.ID, "s-1")
	req.Accessory = strPtr("USB-C")
	rec, err := f.ledger.Checkout(ctx, req, kst(9, 30))
	require.NoError(t, err)

	assert.True(t, rec.IsOpen())
	assert.Equal(t, period.Index(2), rec.ReturnDuePeriod)
	assert.Equal(t, kst(9, 30), rec.DeliveredAt)
	assert.Equal(t, "USB-C", *rec.RequestedAccessory)

	got, err := f.reg.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
}

func TestLedger_SecondCheckoutConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "bank")

	_, err := f.ledger.Checkout(ctx, checkout(item.ID, "s-1"), kst(9, 0))
	require.NoError(t, err)

	_, err = f.ledger.Checkout(ctx, checkout(item.ID, "s-2"), kst(9, 1))
	assert.ErrorIs(t, err, shared.ErrItemUnavailable)
	assert.True(t, shared.IsConflict(err))

	active, err := f.ledger.ActiveRentals(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s-1", active[0].Record.BorrowerID)
}

func TestLedger_CheckoutReturnCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "bank")

	first, err := f.ledger.Checkout(ctx, checkout(item.ID, "s-1"), kst(8, 30))
	require.NoError(t, err)

	closed, err := f.ledger.Return(ctx, first.ID, kst(9, 45))
	require.NoError(t, err)
	require.NotNil(t, closed.ReturnedAt)
	assert.Equal(t, kst(9, 45), *closed.ReturnedAt)

	second, err := f.ledger.Checkout(ctx, checkout(item.ID, "s-1"), kst(10, 30))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	history, err := f.ledger.History(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.True(t, history[0].IsOpen())
	assert.False(t, history[1].IsOpen())
}

func TestLedger_DeleteWhileOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "bank")

	rec, err := f.ledger.Checkout(ctx, checkout(item.ID, "s-1"), kst(9, 0))
	require.NoError(t, err)

	err = f.reg.Delete(ctx, item.ID)
	assert.ErrorIs(t, err, shared.ErrItemCheckedOut)
	assert.True(t, shared.IsConflict(err))

	_, err = f.ledger.Return(ctx, rec.ID, kst(9, 30))
	require.NoError(t, err)
	assert.NoError(t, f.reg.Delete(ctx, item.ID))
}

func TestLedger_UpdateKeepsAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "bank")

	_, err := f.ledger.Checkout(ctx, checkout(item.ID, "s-1"), kst(9, 0))
	require.NoError(t, err)

	updated, err := f.reg.Update(ctx, item.ID, inventory.ItemFields{Notes: strPtr("cracked case")})
	require.NoError(t, err)
	assert.False(t, updated.IsAvailable)
}

func TestLedger_ReturnUnknownOrClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "bank")

	_, err := f.ledger.Return(ctx, "nope", kst(9, 0))
	assert.ErrorIs(t, err, shared.ErrRentalNotFound)

	rec, err := f.ledger.Checkout(ctx, checkout(item.ID, "s-1"), kst(9, 0))
	require.NoError(t, err)
	_, err = f.ledger.Return(ctx, rec.ID, kst(9, 10))
	require.NoError(t, err)

	_, err = f.ledger.Return(ctx, rec.ID, kst(9, 20))
	assert.ErrorIs(t, err, shared.ErrRentalNotFound)
	assert.True(t, shared.IsNotFound(err))
}

func TestLedger_CheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "bank")

	_, err := f.ledger.Checkout(ctx, inventory.CheckoutRequest{ItemID: item.ID, DeliveredBy: "desk"}, kst(9, 0))
	assert.ErrorIs(t, err, shared.ErrBorrowerRequired)

	_, err = f.ledger.Checkout(ctx, inventory.CheckoutRequest{ItemID: item.ID, BorrowerID: "s-1"}, kst(9, 0))
	assert.ErrorIs(t, err, shared.ErrDeliveredByRequired)

	long := checkout(item.ID, "s-1")
	long.Accessory = strPtr(strings.Repeat("c", inventory.MaxAccessoryLength+1))
	_, err = f.ledger.Checkout(ctx, long, kst(9, 0))
	assert.ErrorIs(t, err, shared.ErrAccessoryTooLong)
	assert.True(t, shared.IsValidation(err))

	long = checkout(item.ID, "s-1")
	long.DeliveredBy = strings.Repeat("d", inventory.MaxDeliveredByLength+1)
	_, err = f.ledger.Checkout(ctx, long, kst(9, 0))
	assert.ErrorIs(t, err, shared.ErrDeliveredByTooLong)

	_, err = f.ledger.Checkout(ctx, checkout("missing", "s-1"), kst(9, 0))
	assert.ErrorIs(t, err, shared.ErrItemNotFound)

	got, err := f.reg.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
}

func TestLedger_ActiveRentalsJoinAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t, "a")
	b := f.item(t, "b")
	c := f.item(t, "c")

	_, err := f.ledger.Checkout(ctx, checkout(b.ID, "s-2"), kst(14, 0))
	require.NoError(t, err)
	recA, err := f.ledger.Checkout(ctx, checkout(a.ID, "s-1"), kst(9, 30))
	require.NoError(t, err)
	recC, err := f.ledger.Checkout(ctx, checkout(c.ID, "s-1"), kst(11, 0))
	require.NoError(t, err)
	_, err = f.ledger.Return(ctx, recC.ID, kst(11, 30))
	require.NoError(t, err)

	active, err := f.ledger.ActiveRentals(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	assert.Equal(t, recA.ID, active[0].Record.ID)
	assert.Equal(t, "a", active[0].Item.Name)
	assert.Equal(t, "Kim Minji", active[0].Borrower.Name)
	assert.Equal(t, "12:00", active[0].ReturnDueTime)
	assert.Equal(t, kst(12, 0), active[0].DueAt)

	// Unknown borrowers keep their bare ID.
	assert.Equal(t, "s-2", active[1].Borrower.ID)
	assert.Empty(t, active[1].Borrower.Name)
	assert.Equal(t, "16:40", active[1].ReturnDueTime)

	for _, ar := range active {
		assert.Nil(t, ar.Record.ReturnedAt)
	}
}

func TestLedger_OverdueRentals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t, "a")
	b := f.item(t, "b")

	_, err := f.ledger.Checkout(ctx, checkout(a.ID, "s-1"), kst(9, 30)) // due 12:00
	require.NoError(t, err)
	_, err = f.ledger.Checkout(ctx, checkout(b.ID, "s-1"), kst(14, 0)) // due 16:40
	require.NoError(t, err)

	overdue, err := f.ledger.OverdueRentals(ctx, kst(13, 0))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "a", overdue[0].Item.Name)

	overdue, err = f.ledger.OverdueRentals(ctx, kst(11, 0))
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestLedger_ConcurrentCheckoutSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, "bank")

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Checkout(ctx, checkout(item.ID, "s-1"), kst(9, 0))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if shared.IsConflict(err) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, conflicts)

	active, err := f.ledger.ActiveRentals(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestLedger_ConcurrentDifferentItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items := make([]*inventory.Item, 8)
	for i := range items {
		items[i] = f.item(t, "bank")
	}

	var wg sync.WaitGroup
	errs := make([]error, len(items))
	for i, it := range items {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.ledger.Checkout(ctx, checkout(id, "s-1"), kst(9, 0))
		}(i, it.ID)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	active, err := f.ledger.ActiveRentals(ctx)
	require.NoError(t, err)
	assert.Len(t, active, len(items))
}
