// Package jobs contains the rental desk's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DETECT OVERDUE JOB
// ══════════════════════════════════════════════════════════════════════════════

// OverdueSource lists rentals past their due time.
type OverdueSource interface {
	OverdueRentals(ctx context.Context, now time.Time) ([]inventory.ActiveRental, error)
}

// NoticeMarker records that a notice went out. The Redis cache and
// memory.Marker both implement it. Unmark releases a mark whose notice
// could not be published.
type NoticeMarker interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unmark(ctx context.Context, key string) error
}

// DetectOverdueJob publishes rental.overdue once for every open rental
// that is past its due time.
type DetectOverdueJob struct {
	source    OverdueSource
	marker    NoticeMarker
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    DetectOverdueConfig

	lastRunStats atomic.Pointer[DetectOverdueStats]
}

// DetectOverdueConfig contains configuration for the job.
type DetectOverdueConfig struct {
	// NoticeTTL is how long a sent notice suppresses repeats.
	NoticeTTL time.Duration

	// KeyFunc builds the marker key for a record.
	KeyFunc func(recordID string) string

	// Timeout is the maximum duration of one run.
	Timeout time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultDetectOverdueConfig returns sensible defaults.
func DefaultDetectOverdueConfig() DetectOverdueConfig {
	return DetectOverdueConfig{
		NoticeTTL: 24 * time.Hour,
		KeyFunc:   func(id string) string { return "overdue:" + id },
		Timeout:   time.Minute,
		Now:       time.Now,
	}
}

// DetectOverdueStats contains statistics from a run.
type DetectOverdueStats struct {
	StartedAt   time.Time
	Duration    time.Duration
	Overdue     int
	NoticesSent int
	Suppressed  int
	Errors      int
}

// NewDetectOverdueJob creates the job. Zero config fields take defaults.
func NewDetectOverdueJob(
	source OverdueSource,
	marker NoticeMarker,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config DetectOverdueConfig,
) *DetectOverdueJob {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	def := DefaultDetectOverdueConfig()
	if config.NoticeTTL <= 0 {
		config.NoticeTTL = def.NoticeTTL
	}
	if config.KeyFunc == nil {
		config.KeyFunc = def.KeyFunc
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Now == nil {
		config.Now = def.Now
	}

	return &DetectOverdueJob{
		source:    source,
		marker:    marker,
		publisher: publisher,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *DetectOverdueJob) Name() string {
	return "detect_overdue"
}

// Description returns a human-readable description.
func (j *DetectOverdueJob) Description() string {
	return "Publishes rental.overdue for rentals past their return period"
}

// Run executes one sweep.
func (j *DetectOverdueJob) Run(ctx context.Context) error {
	now := j.config.Now()
	stats := &DetectOverdueStats{StartedAt: now}

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	overdue, err := j.source.OverdueRentals(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list overdue rentals: %w", err)
	}
	stats.Overdue = len(overdue)

	for _, r := range overdue {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := j.config.KeyFunc(r.Record.ID)
		first, err := j.marker.MarkOnce(ctx, key, j.config.NoticeTTL)
		if err != nil {
			stats.Errors++
			j.logger.Error("failed to mark overdue notice", "rental_id", r.Record.ID, "error", err)
			continue
		}
		if !first {
			stats.Suppressed++
			continue
		}

		event := shared.NewRentalOverdueEvent(r.Record.ID, r.Item.ID, r.Borrower.ID, r.DueAt, now)
		if err := j.publisher.Publish(event); err != nil {
			stats.Errors++
			j.logger.Error("failed to publish overdue event", "rental_id", r.Record.ID, "error", err)
			// The next sweep retries this record.
			if err := j.marker.Unmark(ctx, key); err != nil {
				j.logger.Error("failed to release overdue notice mark", "rental_id", r.Record.ID, "error", err)
			}
			continue
		}
		stats.NoticesSent++

		j.logger.Info("rental overdue",
			"rental_id", r.Record.ID,
			"item_id", r.Item.ID,
			"borrower_id", r.Borrower.ID,
			"due_at", r.DueAt.Format(time.RFC3339),
		)
	}

	stats.Duration = j.config.Now().Sub(now)
	j.lastRunStats.Store(stats)

	if stats.Errors > 0 {
		return fmt.Errorf("%d of %d overdue notices failed", stats.Errors, stats.Overdue)
	}
	return nil
}

// LastRunStats returns statistics from the last completed run, or nil.
func (j *DetectOverdueJob) LastRunStats() *DetectOverdueStats {
	return j.lastRunStats.Load()
}
