// Package main is the entry point of the rental desk background worker.
//
// The worker runs the overdue sweep against the shared PostgreSQL ledger so
// API servers can run with SCHEDULER_ENABLED=false. Notices are deduplicated
// in Redis when it is available, and with events.fanout on they reach every
// server over pub/sub.
//
// Usage:
//
//	worker          sweep after every period until stopped
//	worker -once    run a single sweep and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/classup/rental-desk/config"
	"github.com/classup/rental-desk/internal/bootstrap"
	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/period"
	redisstore "github.com/classup/rental-desk/internal/infrastructure/persistence/redis"
	"github.com/classup/rental-desk/internal/infrastructure/scheduler"
	"github.com/classup/rental-desk/internal/infrastructure/scheduler/jobs"
)

func main() {
	once := flag.Bool("once", false, "run a single overdue sweep and exit")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, *once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, once bool) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.SetupLogger(cfg).With("component", "worker")
	log.Info("starting rental desk worker",
		"env", string(cfg.App.Environment),
		"timezone", cfg.App.Location.String(),
		"once", once,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE (required)
	// ─────────────────────────────────────────────────────────────────────────
	// An in-memory ledger would never see the server's rentals.
	storage, err := bootstrap.OpenStorage(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer storage.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	rds, err := bootstrap.ConnectRedis(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable, notices deduplicated in this process only", "error", err)
	}
	if rds != nil {
		defer rds.Close()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus, err := bootstrap.NewEventBus(cfg, rds, log)
	if err != nil {
		return err
	}
	defer bus.Close()

	if _, err := bootstrap.AuditEvents(bus, log); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. OVERDUE JOB
	// ─────────────────────────────────────────────────────────────────────────
	clock := period.NewClock(period.DefaultTable(), cfg.App.Location)
	registry := inventory.NewRegistry(storage.Store, bootstrap.ItemLocker(cfg, rds, log))
	ledger := inventory.NewLedger(registry, clock, bootstrap.Borrowers(cfg, rds, storage.Borrowers))

	job := jobs.NewDetectOverdueJob(
		bootstrap.OverdueSource(storage, ledger),
		bootstrap.NoticeMarker(rds),
		bus,
		log,
		jobs.DetectOverdueConfig{
			NoticeTTL: cfg.Scheduler.NoticeTTL,
			KeyFunc:   redisstore.OverdueNoticeKey,
			Timeout:   cfg.Scheduler.JobTimeout,
		},
	)

	if once {
		if err := job.Run(ctx); err != nil {
			return fmt.Errorf("overdue sweep failed: %w", err)
		}
		if stats := job.LastRunStats(); stats != nil {
			log.Info("overdue sweep finished",
				"overdue", stats.Overdue,
				"notices_sent", stats.NoticesSent,
				"suppressed", stats.Suppressed,
				"duration", stats.Duration.String(),
			)
		}
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	var schedule scheduler.Schedule = scheduler.NewPeriodEndSchedule(clock, cfg.Scheduler.OverdueGrace)
	if cfg.Scheduler.OverdueInterval > 0 {
		schedule = scheduler.NewIntervalSchedule(cfg.Scheduler.OverdueInterval)
	}
	if err := sched.Register(job, schedule); err != nil {
		return fmt.Errorf("failed to register overdue job: %w", err)
	}
	sched.OnJobError(func(jobName string, err error) {
		log.Error("scheduled job failed", "job", jobName, "error", err)
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("worker is running", "job", job.Name())

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	if err := sched.Stop(); err != nil {
		log.Warn("shutdown completed with errors", "error", err)
		return nil
	}
	log.Info("shutdown completed successfully")
	return nil
}
