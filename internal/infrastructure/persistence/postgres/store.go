package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/classup/rental-desk/internal/domain/inventory"
)

// Store implements inventory.Store over a Connection.
// Inside WithinTx the repositories run on the transaction instead of the pool.
type Store struct {
	conn *Connection
	q    Querier
	inTx bool
}

var _ inventory.Store = (*Store)(nil)

// NewStore creates a store on conn.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn, q: conn}
}

// Items implements inventory.Store.
func (s *Store) Items() inventory.ItemRepository {
	return &ItemRepository{q: s.q, inTx: s.inTx}
}

// Rentals implements inventory.Store.
func (s *Store) Rentals() inventory.RentalRepository {
	return &RentalRepository{q: s.q}
}

// WithinTx implements inventory.Store. Nested calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx inventory.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&Store{conn: s.conn, q: tx, inTx: true})
	})
}
