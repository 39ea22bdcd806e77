package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/shared"
)

func newItem(id string) *inventory.Item {
	return &inventory.Item{ID: id, Name: id, Category: inventory.CategoryStand, IsAvailable: true}
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Items().Create(ctx, newItem("a")))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx inventory.Store) error {
		it, err := tx.Items().GetForUpdate(ctx, "a")
		require.NoError(t, err)
		it.IsAvailable = false
		require.NoError(t, tx.Items().Update(ctx, it))
		require.NoError(t, tx.Items().Create(ctx, newItem("b")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	it, err := s.Items().GetByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, it.IsAvailable)

	_, err = s.Items().GetByID(ctx, "b")
	assert.ErrorIs(t, err, shared.ErrItemNotFound)

	list, err := s.Items().List(ctx, inventory.ItemFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Items().Create(ctx, newItem("a")))

	it, err := s.Items().GetByID(ctx, "a")
	require.NoError(t, err)
	it.Name = "mutated"

	again, err := s.Items().GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Name)
}

func TestStore_OneOpenRentalPerItem(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Rentals().Create(ctx, &inventory.RentalRecord{ID: "r1", ItemID: "a", DeliveredAt: now}))
	err := s.Rentals().Create(ctx, &inventory.RentalRecord{ID: "r2", ItemID: "a", DeliveredAt: now})
	assert.ErrorIs(t, err, shared.ErrRentalAlreadyOpen)

	open, err := s.Rentals().FindOpenByItem(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "r1", open.ID)
}

func TestStore_DeletePreservesOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Items().Create(ctx, newItem(id)))
	}
	require.NoError(t, s.Items().Delete(ctx, "b"))

	list, err := s.Items().List(ctx, inventory.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "c", list[1].ID)
}

func TestMarker_MarkOnce(t *testing.T) {
	m := NewMarker()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := m.MarkOnce(ctx, "overdue:r-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, _ := m.MarkOnce(ctx, "overdue:r-1", time.Hour)
	assert.False(t, again)

	now = now.Add(2 * time.Hour)
	expired, _ := m.MarkOnce(ctx, "overdue:r-1", time.Hour)
	assert.True(t, expired)
}

func TestMarker_Unmark(t *testing.T) {
	m := NewMarker()
	ctx := context.Background()

	first, _ := m.MarkOnce(ctx, "overdue:r-1", time.Hour)
	require.True(t, first)
	require.NoError(t, m.Unmark(ctx, "overdue:r-1"))

	again, _ := m.MarkOnce(ctx, "overdue:r-1", time.Hour)
	assert.True(t, again)
}
