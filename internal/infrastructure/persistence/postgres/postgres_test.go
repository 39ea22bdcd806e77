package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/period"
	"github.com/classup/rental-desk/internal/domain/shared"
)

func TestGetMigrations_Ordered(t *testing.T) {
	migs := GetMigrations()

	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL, m.Name)
		assert.NotEmpty(t, m.DownSQL, m.Name)
	}
}

func TestMigrations_OpenRentalIndex(t *testing.T) {
	assert.True(t, strings.Contains(migration002Up, "rental_records_one_open_per_item"))
	assert.True(t, strings.Contains(migration002Up, "WHERE returned_at IS NULL"))
	assert.True(t, strings.Contains(migration001Up, "items_serial_number_key"))
}

func TestMigrations_ColumnWidthsMatchDomain(t *testing.T) {
	assert.Contains(t, migration001Up, fmt.Sprintf("name VARCHAR(%d)", inventory.MaxNameLength))
	assert.Contains(t, migration001Up, fmt.Sprintf("serial_number VARCHAR(%d)", inventory.MaxSerialLength))
	assert.Contains(t, migration002Up, fmt.Sprintf("requested_accessory VARCHAR(%d)", inventory.MaxAccessoryLength))
	assert.Contains(t, migration002Up, fmt.Sprintf("delivered_by VARCHAR(%d)", inventory.MaxDeliveredByLength))
}

// rentalRow feeds scanRental the columns of one rental_records row.
type rentalRow struct {
	due int16
}

func (r rentalRow) Scan(dest ...any) error {
	*dest[0].(*string) = "r-1"
	*dest[1].(*string) = "i-1"
	*dest[2].(*string) = "s-1"
	*dest[3].(**string) = nil
	*dest[4].(*time.Time) = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	*dest[5].(*string) = "desk"
	*dest[6].(*int16) = r.due
	*dest[7].(**time.Time) = nil
	return nil
}

func TestScanRental_DuePeriodRange(t *testing.T) {
	rec, err := scanRental(rentalRow{due: 3})
	require.NoError(t, err)
	assert.Equal(t, period.Index(3), rec.ReturnDuePeriod)

	for _, due := range []int16{0, 8, -1} {
		_, err := scanRental(rentalRow{due: due})
		assert.ErrorIs(t, err, shared.ErrInvalidPeriodIndex, "due %d", due)
	}
}

func TestErrorHelpers(t *testing.T) {
	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "rental_records_one_open_per_item"}
	wrapped := fmt.Errorf("exec: %w", unique)

	assert.True(t, IsUniqueViolation(wrapped))
	assert.Equal(t, "rental_records_one_open_per_item", constraintOf(wrapped))
	assert.Empty(t, constraintOf(errors.New("plain")))

	assert.True(t, IsNoRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(unique))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&pgconn.PgError{Code: pgerrcode.ConnectionFailure}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: pgerrcode.DeadlockDetected}))
	assert.False(t, IsTransient(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.False(t, IsTransient(errors.New("boom")))
}

func TestItemRepository_MapWriteError(t *testing.T) {
	r := &ItemRepository{}

	err := r.mapWriteError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "items_serial_number_key"}, "create")
	assert.EqualError(t, err, "item.Save: serial number already registered")

	err = r.mapWriteError(errors.New("boom"), "update")
	assert.EqualError(t, err, "failed to update item: boom")
}
