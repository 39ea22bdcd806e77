// Package main is the entry point of the rental desk API server.
//
// The server answers the period clock queries and runs the item registry
// and the rental ledger over HTTP. Unless the scheduler is disabled it also
// sweeps for overdue rentals after every period ends.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Configuration
	"github.com/classup/rental-desk/config"

	// Application layer
	"github.com/classup/rental-desk/internal/application/command"
	"github.com/classup/rental-desk/internal/application/query"
	"github.com/classup/rental-desk/internal/bootstrap"

	// Domain layer
	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/period"

	// Infrastructure layer
	redisstore "github.com/classup/rental-desk/internal/infrastructure/persistence/redis"
	"github.com/classup/rental-desk/internal/infrastructure/scheduler"
	"github.com/classup/rental-desk/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/classup/rental-desk/internal/interface/http"
	"github.com/classup/rental-desk/internal/interface/http/handlers"

	// Packages
	"github.com/classup/rental-desk/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
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
	log := bootstrap.SetupLogger(cfg)
	log.Info("starting rental desk server",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Location.String(),
		"features", cfg.Features.Enabled(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	storage, err := bootstrap.OpenStorage(ctx, cfg, log, cfg.IsProduction())
	if err != nil {
		return err
	}
	defer storage.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	rds, err := bootstrap.ConnectRedis(ctx, cfg)
	if err != nil {
		log.Warn("redis unavailable, continuing without it", "error", err)
	}
	if rds != nil {
		log.Info("connected to Redis", "host", cfg.Redis.Host, "port", cfg.Redis.Port)
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
	// 6. DOMAIN
	// ─────────────────────────────────────────────────────────────────────────
	clock := period.NewClock(period.DefaultTable(), cfg.App.Location)
	locker := bootstrap.ItemLocker(cfg, rds, log)
	registry := inventory.NewRegistry(storage.Store, locker)
	ledger := inventory.NewLedger(registry, clock, bootstrap.Borrowers(cfg, rds, storage.Borrowers))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION HANDLERS (CQRS)
	// ─────────────────────────────────────────────────────────────────────────
	appLog := logger.FromSlog(log)

	deps := httpserver.Dependencies{
		CreateItemHandler:   command.NewCreateItemHandler(registry, bus, appLog),
		UpdateItemHandler:   command.NewUpdateItemHandler(registry, bus, appLog),
		DeleteItemHandler:   command.NewDeleteItemHandler(registry, bus, appLog),
		CheckoutItemHandler: command.NewCheckoutItemHandler(ledger, bus, appLog),
		ReturnItemHandler:   command.NewReturnItemHandler(ledger, bus, appLog),

		ListItemsHandler:          query.NewListItemsHandler(registry),
		GetItemHandler:            query.NewGetItemHandler(registry),
		GetActiveRentalsHandler:   query.NewGetActiveRentalsHandler(ledger),
		GetOverdueRentalsHandler:  query.NewGetOverdueRentalsHandler(ledger),
		GetBorrowerHistoryHandler: query.NewGetBorrowerHistoryHandler(ledger),
		GetDueEstimateHandler:     query.NewGetDueEstimateHandler(clock),
		GetPeriodTableHandler:     query.NewGetPeriodTableHandler(clock),

		Logger: appLog,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if storage.Database != nil {
		health.AddCheck("postgres", handlers.NewPingCheck(storage.Database))
	}
	if rds != nil {
		// Without Redis the desk degrades to the in-process lock.
		health.AddOptionalCheck("redis", handlers.NewPingCheck(rds.Cache))
	}
	deps.HealthChecker = health

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled && cfg.Features.IsEnabled(config.FeatureOverdueNotices) {
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:   log,
			Timezone: cfg.App.Location,
		})

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
		log.Info("scheduler started", "job", job.Name())
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.AdminKeyHashes = cfg.HTTP.AdminKeyHashes

	server := httpserver.NewServer(httpCfg, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("rental desk server is running", "http_address", server.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("http server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// HTTP first, then the scheduler.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		shutdownErr = err
	}

	if sched != nil {
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler", "error", err)
			shutdownErr = err
		}
	}

	// Event bus, Redis and the database close through defer.

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}
	return nil
}
