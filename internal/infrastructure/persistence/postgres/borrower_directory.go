package postgres

import (
	"context"
	"fmt"

	"github.com/classup/rental-desk/internal/domain/inventory"
)

// BorrowerDirectory resolves borrower IDs from the borrowers table.
type BorrowerDirectory struct {
	conn *Connection
}

var _ inventory.BorrowerDirectory = (*BorrowerDirectory)(nil)

// NewBorrowerDirectory creates a directory on conn.
func NewBorrowerDirectory(conn *Connection) *BorrowerDirectory {
	return &BorrowerDirectory{conn: conn}
}

// Lookup implements inventory.BorrowerDirectory.
func (d *BorrowerDirectory) Lookup(ctx context.Context, ids []string) (map[string]inventory.Borrower, error) {
	out := make(map[string]inventory.Borrower, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := d.conn.Query(ctx, `SELECT id, name, seat_number FROM borrowers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup borrowers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b inventory.Borrower
		if err := rows.Scan(&b.ID, &b.Name, &b.SeatNumber); err != nil {
			return nil, fmt.Errorf("failed to scan borrower: %w", err)
		}
		out[b.ID] = b
	}
	return out, rows.Err()
}
