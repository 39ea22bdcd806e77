package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/period"
	"github.com/classup/rental-desk/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RENTAL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const rentalColumns = `id, item_id, borrower_id, requested_accessory, delivered_at, delivered_by, return_due_period, returned_at`

// RentalRepository implements inventory.RentalRepository for PostgreSQL.
type RentalRepository struct {
	q Querier
}

// Create inserts a record. The partial unique index rejects a second open record.
func (r *RentalRepository) Create(ctx context.Context, rec *inventory.RentalRecord) error {
	query := `
		INSERT INTO rental_records (` + rentalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		rec.ID,
		rec.ItemID,
		rec.BorrowerID,
		rec.RequestedAccessory,
		rec.DeliveredAt,
		rec.DeliveredBy,
		int16(rec.ReturnDuePeriod),
		rec.ReturnedAt,
	)
	if err != nil {
		if constraintOf(err) == "rental_records_one_open_per_item" {
			return shared.ErrRentalAlreadyOpen
		}
		return fmt.Errorf("failed to create rental record: %w", err)
	}
	return nil
}

// Update overwrites a record.
func (r *RentalRepository) Update(ctx context.Context, rec *inventory.RentalRecord) error {
	query := `
		UPDATE rental_records SET
			requested_accessory = $1,
			delivered_by = $2,
			return_due_period = $3,
			returned_at = $4
		WHERE id = $5
	`

	result, err := r.q.Exec(ctx, query,
		rec.RequestedAccessory,
		rec.DeliveredBy,
		int16(rec.ReturnDuePeriod),
		rec.ReturnedAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rental record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrRentalNotFound
	}
	return nil
}

// GetByID returns a record by ID.
func (r *RentalRepository) GetByID(ctx context.Context, id string) (*inventory.RentalRecord, error) {
	row := r.q.QueryRow(ctx, `SELECT `+rentalColumns+` FROM rental_records WHERE id = $1`, id)
	return scanRental(row)
}

// FindOpenByItem returns the item's open record.
func (r *RentalRepository) FindOpenByItem(ctx context.Context, itemID string) (*inventory.RentalRecord, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+rentalColumns+` FROM rental_records WHERE item_id = $1 AND returned_at IS NULL`,
		itemID,
	)
	return scanRental(row)
}

// ListOpen returns open records, oldest delivery first.
func (r *RentalRepository) ListOpen(ctx context.Context) ([]*inventory.RentalRecord, error) {
	return r.list(ctx,
		`SELECT `+rentalColumns+` FROM rental_records WHERE returned_at IS NULL ORDER BY delivered_at, id`,
	)
}

// ListByBorrower returns a borrower's records, newest delivery first.
func (r *RentalRepository) ListByBorrower(ctx context.Context, borrowerID string) ([]*inventory.RentalRecord, error) {
	return r.list(ctx,
		`SELECT `+rentalColumns+` FROM rental_records WHERE borrower_id = $1 ORDER BY delivered_at DESC, id DESC`,
		borrowerID,
	)
}

func (r *RentalRepository) list(ctx context.Context, query string, args ...any) ([]*inventory.RentalRecord, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rental records: %w", err)
	}
	defer rows.Close()

	var out []*inventory.RentalRecord
	for rows.Next() {
		rec, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRental(row pgx.Row) (*inventory.RentalRecord, error) {
	var (
		rec inventory.RentalRecord
		due int16
	)
	err := row.Scan(
		&rec.ID,
		&rec.ItemID,
		&rec.BorrowerID,
		&rec.RequestedAccessory,
		&rec.DeliveredAt,
		&rec.DeliveredBy,
		&due,
		&rec.ReturnedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrRentalNotFound
		}
		return nil, fmt.Errorf("failed to scan rental record: %w", err)
	}
	rec.ReturnDuePeriod = period.Index(due)
	if rec.ReturnDuePeriod < period.First || rec.ReturnDuePeriod > period.Last {
		return nil, fmt.Errorf("rental record %s has return_due_period %d: %w", rec.ID, due, shared.ErrInvalidPeriodIndex)
	}
	return &rec, nil
}
