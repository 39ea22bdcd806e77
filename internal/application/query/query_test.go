package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classup/rental-desk/internal/application/query"
	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/period"
	"github.com/classup/rental-desk/internal/domain/shared"
	"github.com/classup/rental-desk/internal/infrastructure/persistence/memory"
	"github.com/classup/rental-desk/pkg/timeutil"
)

func kst(hour, min int) time.Time {
	return time.Date(2024, 3, 4, hour, min, 0, 0, timeutil.SeoulTZ)
}

func seed(t *testing.T) (*inventory.Registry, *inventory.Ledger, []*inventory.Item) {
	t.Helper()
	ctx := context.Background()
	reg := inventory.NewRegistry(memory.NewStore(), nil)
	ledger := inventory.NewLedger(reg, period.DefaultClock(),
		memory.NewDirectory(inventory.Borrower{ID: "s-1", Name: "Kim Minji", SeatNumber: "A12"}))

	var items []*inventory.Item
	for _, in := range []inventory.NewItem{
		{Name: "bank-1", Category: inventory.CategoryPowerBank},
		{Name: "bank-2", Category: inventory.CategoryPowerBank},
		{Name: "umbrella", Category: inventory.CategoryUmbrella},
	} {
		it, err := reg.Create(ctx, in)
		require.NoError(t, err)
		items = append(items, it)
	}
	return reg, ledger, items
}

func TestListItems_Filters(t *testing.T) {
	reg, ledger, items := seed(t)
	ctx := context.Background()
	_, err := ledger.Checkout(ctx, inventory.CheckoutRequest{ItemID: items[0].ID, BorrowerID: "s-1", DeliveredBy: "desk"}, kst(9, 0))
	require.NoError(t, err)

	h := query.NewListItemsHandler(reg)

	all, err := h.Handle(ctx, query.ListItemsQuery{Category: "All"})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, 2, all.AvailableCount)

	banks, err := h.Handle(ctx, query.ListItemsQuery{Category: "보조배터리", AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, banks.Items, 1)
	assert.Equal(t, "bank-2", banks.Items[0].Name)

	_, err = h.Handle(ctx, query.ListItemsQuery{Category: "Laptop"})
	assert.True(t, shared.IsValidation(err))
}

func TestGetItem(t *testing.T) {
	reg, _, items := seed(t)
	h := query.NewGetItemHandler(reg)

	got, err := h.Handle(context.Background(), query.GetItemQuery{ItemID: items[2].ID})
	require.NoError(t, err)
	assert.Equal(t, "umbrella", got.Name)

	_, err = h.Handle(context.Background(), query.GetItemQuery{ItemID: "nope"})
	assert.True(t, shared.IsNotFound(err))
}

func TestRentalQueries(t *testing.T) {
	_, ledger, items := seed(t)
	ctx := context.Background()
	rec, err := ledger.Checkout(ctx, inventory.CheckoutRequest{ItemID: items[0].ID, BorrowerID: "s-1", DeliveredBy: "desk"}, kst(9, 30))
	require.NoError(t, err)
	_, err = ledger.Checkout(ctx, inventory.CheckoutRequest{ItemID: items[1].ID, BorrowerID: "s-1", DeliveredBy: "desk"}, kst(14, 0))
	require.NoError(t, err)
	_, err = ledger.Return(ctx, rec.ID, kst(11, 0))
	require.NoError(t, err)

	active, err := query.NewGetActiveRentalsHandler(ledger).Handle(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, active.Total)
	assert.Equal(t, "A12", active.Rentals[0].Borrower.SeatNumber)
	assert.Equal(t, "16:40", active.Rentals[0].ReturnDueTime)

	overdue, err := query.NewGetOverdueRentalsHandler(ledger).Handle(ctx, query.GetOverdueRentalsQuery{At: kst(17, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, overdue.Total)

	history, err := query.NewGetBorrowerHistoryHandler(ledger).Handle(ctx, query.GetBorrowerHistoryQuery{BorrowerID: "s-1", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, history.Total)
	assert.Equal(t, 1, history.OpenCount)
	require.Len(t, history.Records, 1)
	assert.Equal(t, items[1].ID, history.Records[0].ItemID)

	_, err = query.NewGetBorrowerHistoryHandler(ledger).Handle(ctx, query.GetBorrowerHistoryQuery{})
	assert.True(t, shared.IsValidation(err))
}

func TestDueEstimate(t *testing.T) {
	h := query.NewGetDueEstimateHandler(nil)

	tests := []struct {
		at      time.Time
		current period.Index
		due     period.Index
		dueTime string
	}{
		{kst(7, 0), 0, 1, "10:00"},
		{kst(10, 10), 0, 1, "10:00"},
		{kst(21, 0), 7, 7, "22:00"},
	}
	for _, tt := range tests {
		got := h.Handle(query.GetDueEstimateQuery{At: tt.at})
		assert.Equal(t, tt.current, got.CurrentPeriod, tt.at.String())
		assert.Equal(t, tt.due, got.ReturnDuePeriod, tt.at.String())
		assert.Equal(t, tt.dueTime, got.ReturnDueTime, tt.at.String())
	}
}

func TestPeriodTable(t *testing.T) {
	got := query.NewGetPeriodTableHandler(nil).Handle()
	require.Len(t, got.Periods, 8)
	assert.Equal(t, "Asia/Seoul", got.Timezone)
	assert.Equal(t, query.PeriodView{Index: 3, Name: "period 3", Start: "13:00", End: "15:00"}, got.Periods[3])
}
