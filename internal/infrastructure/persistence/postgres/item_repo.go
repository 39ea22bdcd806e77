package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ITEM REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const itemColumns = `id, name, category, serial_number, notes, is_available, created_at, updated_at`

// ItemRepository implements inventory.ItemRepository for PostgreSQL.
type ItemRepository struct {
	q    Querier
	inTx bool
}

// Create inserts a new item.
func (r *ItemRepository) Create(ctx context.Context, item *inventory.Item) error {
	query := `
		INSERT INTO items (id, name, category, serial_number, notes, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.Exec(ctx, query,
		item.ID,
		item.Name,
		string(item.Category),
		item.SerialNumber,
		item.Notes,
		item.IsAvailable,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return r.mapWriteError(err, "create")
	}
	return nil
}

// GetByID returns an item by ID.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*inventory.Item, error) {
	row := r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	return scanItem(row)
}

// GetForUpdate locks the item's row until the transaction ends.
func (r *ItemRepository) GetForUpdate(ctx context.Context, id string) (*inventory.Item, error) {
	if !r.inTx {
		return r.GetByID(ctx, id)
	}
	row := r.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id)
	return scanItem(row)
}

// Update overwrites the item's mutable columns.
func (r *ItemRepository) Update(ctx context.Context, item *inventory.Item) error {
	query := `
		UPDATE items SET
			name = $1,
			category = $2,
			serial_number = $3,
			notes = $4,
			is_available = $5,
			updated_at = $6
		WHERE id = $7
	`

	result, err := r.q.Exec(ctx, query,
		item.Name,
		string(item.Category),
		item.SerialNumber,
		item.Notes,
		item.IsAvailable,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		return r.mapWriteError(err, "update")
	}
	if result.RowsAffected() == 0 {
		return shared.ErrItemNotFound
	}
	return nil
}

// Delete removes an item.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrItemNotFound
	}
	return nil
}

// List returns items in registration order.
func (r *ItemRepository) List(ctx context.Context, filter inventory.ItemFilter) ([]*inventory.Item, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.AvailableOnly {
		where = append(where, "is_available")
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*inventory.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ItemRepository) mapWriteError(err error, op string) error {
	switch constraintOf(err) {
	case "items_serial_number_key":
		return shared.ErrDuplicateSerial
	case "items_pkey":
		return shared.NewDomainError("item", "Create", shared.ErrConflict, "item ID already exists")
	}
	return fmt.Errorf("failed to %s item: %w", op, err)
}

func scanItem(row pgx.Row) (*inventory.Item, error) {
	var (
		item     inventory.Item
		category string
	)
	err := row.Scan(
		&item.ID,
		&item.Name,
		&category,
		&item.SerialNumber,
		&item.Notes,
		&item.IsAvailable,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	item.Category = inventory.Category(category)
	return &item, nil
}
