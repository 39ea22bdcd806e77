// Package bootstrap builds the infrastructure shared by the server and the
// worker from a loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/classup/rental-desk/config"
	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/domain/shared"
	"github.com/classup/rental-desk/internal/infrastructure/messaging"
	"github.com/classup/rental-desk/internal/infrastructure/persistence/memory"
	"github.com/classup/rental-desk/internal/infrastructure/persistence/postgres"
	redisstore "github.com/classup/rental-desk/internal/infrastructure/persistence/redis"
	"github.com/classup/rental-desk/internal/infrastructure/scheduler/jobs"
	"github.com/classup/rental-desk/pkg/circuitbreaker"
	"github.com/classup/rental-desk/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// SetupLogger builds the process logger and installs it as slog's default.
// JSON goes to log aggregators, text is for a terminal.
func SetupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", cfg.App.Name)
	slog.SetDefault(log)
	return log
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// ErrDatabaseRequired is returned when a component cannot run in memory.
var ErrDatabaseRequired = errors.New("DATABASE_URL is required")

// Storage is the persistence the desk runs on.
type Storage struct {
	Store     inventory.Store
	Borrowers inventory.BorrowerDirectory

	// Database is nil when running in memory.
	Database *postgres.Connection
}

// Close releases the database pool, if any.
func (s *Storage) Close() {
	if s.Database != nil {
		s.Database.Close()
	}
}

// OpenStorage connects to PostgreSQL and applies migrations. Without a
// DATABASE_URL it falls back to in-memory storage unless requireDB is set.
func OpenStorage(ctx context.Context, cfg *config.Config, log *slog.Logger, requireDB bool) (*Storage, error) {
	if cfg.Database.URL == "" {
		if requireDB {
			return nil, ErrDatabaseRequired
		}
		log.Warn("DATABASE_URL not set, using in-memory storage; data is lost on restart")
		return &Storage{Store: memory.NewStore(), Borrowers: memory.NewDirectory()}, nil
	}

	conn, err := ConnectPostgres(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.Database.RunMigrations {
		log.Info("applying database migrations")
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	return &Storage{
		Store:     postgres.NewStore(conn),
		Borrowers: postgres.NewBorrowerDirectory(conn),
		Database:  conn,
	}, nil
}

// ConnectPostgres opens the pool, retrying while the database boots.
func ConnectPostgres(ctx context.Context, cfg *config.Config, log *slog.Logger) (*postgres.Connection, error) {
	opts := postgres.DefaultPoolOptions()
	if cfg.Database.MaxOpenConns > 0 {
		opts.MaxConns = int32(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		opts.MinConns = int32(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		opts.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime > 0 {
		opts.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	}

	connectCtx := ctx
	if cfg.Database.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()
	}

	retrier := retry.StartupRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
	})

	var conn *postgres.Connection
	err := retrier.Do(connectCtx, func(ctx context.Context) error {
		var err error
		conn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	log.Info("connected to PostgreSQL", "max_conns", opts.MaxConns)
	return conn, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS
// ══════════════════════════════════════════════════════════════════════════════

// Redis holds the shared client and the cache built on it.
type Redis struct {
	Client *goredis.Client
	Cache  *redisstore.Cache
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.Client.Close()
}

// ConnectRedis connects when Redis is enabled. A nil result with a nil error
// means Redis is disabled. A connection failure is returned so the caller
// decides whether to continue without it.
func ConnectRedis(ctx context.Context, cfg *config.Config) (*Redis, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}

	rc := redisstore.DefaultConfig()
	rc.Host = cfg.Redis.Host
	rc.Port = cfg.Redis.Port
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		rc.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.DialTimeout > 0 {
		rc.DialTimeout = cfg.Redis.DialTimeout
	}
	if cfg.Redis.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.Redis.ReadTimeout
	}
	if cfg.Redis.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.Redis.WriteTimeout
	}

	client, err := redisstore.Connect(ctx, rc)
	if err != nil {
		return nil, err
	}
	return &Redis{Client: client, Cache: redisstore.NewCacheFromClient(client)}, nil
}

// ItemLocker picks the lock that serializes item changes. With Redis and
// the lock.distributed flag it is the Redis lock behind a breaker that
// falls back to the in-process lock.
func ItemLocker(cfg *config.Config, rds *Redis, log *slog.Logger) inventory.ItemLocker {
	local := inventory.NewLocalLocker()
	if rds == nil || !cfg.Features.IsEnabled(config.FeatureDistributedLock) {
		return local
	}

	breaker := circuitbreaker.RedisBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	})
	primary := redisstore.NewItemLock(rds.Client, cfg.Redis.LockTTL, 0)

	return redisstore.NewGuardedLocker(primary, local, breaker, func(itemID string, err error) {
		log.Warn("redis lock unavailable, using in-process lock", "item_id", itemID, "error", err)
	})
}

// Borrowers wraps dir in the Redis read-through cache when enabled.
func Borrowers(cfg *config.Config, rds *Redis, dir inventory.BorrowerDirectory) inventory.BorrowerDirectory {
	if rds == nil || !cfg.Features.IsEnabled(config.FeatureBorrowerCache) {
		return dir
	}
	return redisstore.NewBorrowerCache(rds.Cache, dir, cfg.Redis.BorrowerCacheTTL)
}

// NoticeMarker is where overdue notices are remembered: Redis when
// connected so every instance agrees, otherwise this process.
func NoticeMarker(rds *Redis) jobs.NoticeMarker {
	if rds == nil {
		return memory.NewMarker()
	}
	return rds.Cache
}

// OverdueSource retries transient database failures when the sweep reads
// from PostgreSQL.
func OverdueSource(storage *Storage, ledger *inventory.Ledger) jobs.OverdueSource {
	if storage.Database == nil {
		return ledger
	}
	return retryingSource{next: ledger, retrier: retry.DatabaseRetrier(postgres.IsTransient)}
}

type retryingSource struct {
	next    jobs.OverdueSource
	retrier *retry.Retrier
}

func (s retryingSource) OverdueRentals(ctx context.Context, now time.Time) ([]inventory.ActiveRental, error) {
	var out []inventory.ActiveRental
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.next.OverdueRentals(ctx, now)
		return err
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// EventBus is a bus that can be shut down.
type EventBus interface {
	shared.EventBus
	Close() error
}

// NewEventBus returns the Redis fan-out bus when Redis is connected and
// events.fanout is on, otherwise an in-process async bus.
func NewEventBus(cfg *config.Config, rds *Redis, log *slog.Logger) (EventBus, error) {
	local := messaging.DefaultInMemoryEventBusConfig()
	local.Logger = log

	if rds == nil || !cfg.Features.IsEnabled(config.FeatureEventFanout) {
		return messaging.NewInMemoryEventBus(local), nil
	}

	bus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
		Client:         messaging.NewGoRedisClient(rds.Client),
		ChannelName:    messaging.DefaultChannel,
		LocalBusConfig: local,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("start redis event bus: %w", err)
	}
	return bus, nil
}

// AuditEvents logs every event and warns on overdue ones. Handlers run
// through the dispatcher so failures are retried and dead-lettered.
func AuditEvents(bus shared.EventSubscriber, log *slog.Logger) (*messaging.Dispatcher, error) {
	d := messaging.NewDispatcher(messaging.DispatcherConfig{Bus: bus, Logger: log})

	if err := d.RegisterAll("audit_log", func(e shared.Event) error {
		log.Info("domain event",
			"type", string(e.EventType()),
			"aggregate_id", e.AggregateID(),
			"occurred_at", e.OccurredAt().Format(time.RFC3339),
		)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := d.Register(shared.EventRentalOverdue, "overdue_notice", func(e shared.Event) error {
		p := e.Payload()
		log.Warn("rental overdue",
			"record_id", e.AggregateID(),
			"item_id", p["item_id"],
			"borrower_id", p["borrower_id"],
			"due_at", p["due_at"],
		)
		return nil
	}); err != nil {
		return nil, err
	}

	return d, nil
}
