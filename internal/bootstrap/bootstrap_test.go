package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classup/rental-desk/config"
	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/shared"
	"github.com/classup/rental-desk/internal/infrastructure/messaging"
	"github.com/classup/rental-desk/internal/infrastructure/persistence/memory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestOpenStorage_InMemory(t *testing.T) {
	cfg := testConfig(t)

	storage, err := OpenStorage(context.Background(), cfg, quietLogger(), false)
	require.NoError(t, err)
	defer storage.Close()

	assert.Nil(t, storage.Database)
	assert.IsType(t, &memory.Store{}, storage.Store)

	_, err = OpenStorage(context.Background(), cfg, quietLogger(), true)
	assert.ErrorIs(t, err, ErrDatabaseRequired)
}

func TestWithoutRedis(t *testing.T) {
	cfg := testConfig(t)

	rds, err := ConnectRedis(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, rds)

	assert.IsType(t, &inventory.LocalLocker{}, ItemLocker(cfg, nil, quietLogger()))
	assert.IsType(t, &memory.Marker{}, NoticeMarker(nil))

	dir := memory.NewDirectory()
	assert.Same(t, dir, Borrowers(cfg, nil, dir))

	bus, err := NewEventBus(cfg, nil, quietLogger())
	require.NoError(t, err)
	defer bus.Close()
	assert.IsType(t, &messaging.InMemoryEventBus{}, bus)
}

func TestOverdueSource_InMemoryUsesLedger(t *testing.T) {
	ledger := inventory.NewLedger(inventory.NewRegistry(memory.NewStore(), inventory.NewLocalLocker()), nil, nil)
	storage := &Storage{Store: memory.NewStore()}

	assert.Same(t, ledger, OverdueSource(storage, ledger))
}

func TestAuditEvents_DeliversOverdue(t *testing.T) {
	cfg := messaging.DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	bus := messaging.NewInMemoryEventBus(cfg)
	defer bus.Close()

	d, err := AuditEvents(bus, quietLogger())
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []shared.EventType
	require.NoError(t, d.RegisterAll("probe", func(e shared.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.EventType())
		return nil
	}))

	now := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	require.NoError(t, bus.Publish(shared.NewRentalOverdueEvent("r-1", "i-1", "s-1", now.Add(-time.Hour), now)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []shared.EventType{shared.EventRentalOverdue}, seen)
	assert.Zero(t, d.DeadLetterQueue().Size())
}
