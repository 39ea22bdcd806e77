package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// Migration is one forward/backward schema step.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations in version order.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator over GetMigrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var at time.Time
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		out[version] = at
	}
	return out, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}

	last := 0
	for v := range done {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return nil
	}

	var mig *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			mig = &m.migrations[i]
			break
		}
	}
	if mig == nil || mig.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
}

// Status lists every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	for i := range out {
		if at, ok := done[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out, nil
}

// GetMigrations returns all embedded migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_items", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_rental_records", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_borrowers", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ITEMS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    seq BIGSERIAL NOT NULL,
    name VARCHAR(100) NOT NULL,
    category VARCHAR(20) NOT NULL,
    serial_number VARCHAR(100),
    notes TEXT,
    is_available BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_category CHECK (category IN ('PowerBank', 'Stand', 'Umbrella', 'Other')),
    CONSTRAINT items_serial_number_key UNIQUE (serial_number)
);

-- Registration order for listings
CREATE INDEX IF NOT EXISTS idx_items_seq ON items(seq);
CREATE INDEX IF NOT EXISTS idx_items_category ON items(category, seq);
`

const migration001Down = `
DROP TABLE IF EXISTS items;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: RENTAL RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS rental_records (
    id TEXT PRIMARY KEY,
    -- No foreign key: history outlives deleted items
    item_id TEXT NOT NULL,
    borrower_id TEXT NOT NULL,
    requested_accessory VARCHAR(100),
    delivered_at TIMESTAMP WITH TIME ZONE NOT NULL,
    delivered_by VARCHAR(100) NOT NULL,
    return_due_period SMALLINT NOT NULL,
    returned_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_due_period CHECK (return_due_period BETWEEN 1 AND 7),
    CONSTRAINT returned_after_delivery CHECK (returned_at IS NULL OR returned_at >= delivered_at)
);

-- At most one open rental per item
CREATE UNIQUE INDEX IF NOT EXISTS rental_records_one_open_per_item
    ON rental_records(item_id) WHERE returned_at IS NULL;

CREATE INDEX IF NOT EXISTS idx_rental_records_open ON rental_records(delivered_at) WHERE returned_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_rental_records_borrower ON rental_records(borrower_id, delivered_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS rental_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: BORROWERS
// Read-only mirror of the roster, filled by the roster system.
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS borrowers (
    id TEXT PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    seat_number VARCHAR(20) NOT NULL DEFAULT ''
);
`

const migration003Down = `
DROP TABLE IF EXISTS borrowers;
`
