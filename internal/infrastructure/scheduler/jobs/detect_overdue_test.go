package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
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

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func setup(t *testing.T) (*inventory.Ledger, string) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	reg := inventory.NewRegistry(store, nil)
	ledger := inventory.NewLedger(reg, period.DefaultClock(), memory.NewDirectory())

	item, err := reg.Create(ctx, inventory.NewItem{Name: "Anker 10000", Category: inventory.CategoryPowerBank})
	require.NoError(t, err)
	rec, err := ledger.Checkout(ctx, inventory.CheckoutRequest{ItemID: item.ID, BorrowerID: "s-1", DeliveredBy: "desk"}, kst(9, 30))
	require.NoError(t, err)
	return ledger, rec.ID
}

func TestDetectOverdue_PublishesOncePerRecord(t *testing.T) {
	ledger, recordID := setup(t)
	pub := &recorder{}
	now := kst(12, 5)

	job := NewDetectOverdueJob(ledger, memory.NewMarker(), pub, slog.New(slog.NewTextHandler(io.Discard, nil)),
		DetectOverdueConfig{Now: func() time.Time { return now }})

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, shared.EventRentalOverdue, ev.EventType())
	assert.Equal(t, recordID, ev.AggregateID())
	assert.Equal(t, "s-1", ev.Payload()["borrower_id"])

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 1, stats.Suppressed)
}

func TestDetectOverdue_NothingBeforeDue(t *testing.T) {
	ledger, _ := setup(t)
	pub := &recorder{}

	job := NewDetectOverdueJob(ledger, memory.NewMarker(), pub, nil,
		DetectOverdueConfig{Now: func() time.Time { return kst(11, 59) }})

	require.NoError(t, job.Run(context.Background()))
	assert.Empty(t, pub.events)
	assert.Equal(t, "detect_overdue", job.Name())
}

func TestDetectOverdue_ReportsPublishFailures(t *testing.T) {
	ledger, _ := setup(t)
	pub := &recorder{err: errors.New("bus closed")}

	job := NewDetectOverdueJob(ledger, memory.NewMarker(), pub, slog.New(slog.NewTextHandler(io.Discard, nil)),
		DetectOverdueConfig{Now: func() time.Time { return kst(13, 0) }})

	err := job.Run(context.Background())
	assert.EqualError(t, err, "1 of 1 overdue notices failed")
	assert.Equal(t, 1, job.LastRunStats().Errors)
}

func TestDetectOverdue_RetriesAfterPublishFailure(t *testing.T) {
	ledger, recordID := setup(t)
	pub := &recorder{err: errors.New("bus closed")}

	job := NewDetectOverdueJob(ledger, memory.NewMarker(), pub, slog.New(slog.NewTextHandler(io.Discard, nil)),
		DetectOverdueConfig{Now: func() time.Time { return kst(13, 0) }})

	require.Error(t, job.Run(context.Background()))

	pub.mu.Lock()
	pub.err = nil
	pub.mu.Unlock()

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, pub.events, 1)
	assert.Equal(t, recordID, pub.events[0].AggregateID())
	assert.Equal(t, 1, job.LastRunStats().NoticesSent)
	assert.Zero(t, job.LastRunStats().Suppressed)
}
