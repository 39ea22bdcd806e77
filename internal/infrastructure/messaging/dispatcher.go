package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/classup/rental-desk/internal/domain/shared"
	"github.com/classup/rental-desk/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Dispatcher registers named handlers on a bus and wraps each one with
// middleware: panic recovery, logging, retries, and a dead letter queue
// for events that still fail.
type Dispatcher struct {
	bus         shared.EventSubscriber
	middlewares []Middleware
	retry       []retry.Option
	deadLetters *DeadLetterQueue
	logger      *slog.Logger
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	Bus shared.EventSubscriber

	// MaxAttempts per event and handler, counting the first. Default 3.
	MaxAttempts int

	// InitialBackoff before the second attempt. Default 100ms.
	InitialBackoff time.Duration

	// DeadLetterQueueSize bounds the DLQ. Default 100.
	DeadLetterQueueSize int

	Logger *slog.Logger
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 100 * time.Millisecond
	}
	if config.DeadLetterQueueSize <= 0 {
		config.DeadLetterQueueSize = 100
	}

	d := &Dispatcher{
		bus: config.Bus,
		retry: []retry.Option{
			retry.WithMaxAttempts(config.MaxAttempts),
			retry.WithInitialDelay(config.InitialBackoff),
			retry.WithMaxDelay(5 * time.Second),
		},
		deadLetters: NewDeadLetterQueue(config.DeadLetterQueueSize),
		logger:      config.Logger,
	}
	d.middlewares = []Middleware{LoggingMiddleware(d.logger)}
	return d
}

// Use adds middleware applied to handlers registered afterwards.
func (d *Dispatcher) Use(middleware Middleware) {
	d.middlewares = append(d.middlewares, middleware)
}

// Register subscribes handler to eventType under name.
func (d *Dispatcher) Register(eventType shared.EventType, name string, handler shared.EventHandler) error {
	return d.bus.Subscribe(eventType, d.wrap(name, handler))
}

// RegisterAll subscribes handler to every event under name.
func (d *Dispatcher) RegisterAll(name string, handler shared.EventHandler) error {
	return d.bus.SubscribeAll(d.wrap(name, handler))
}

func (d *Dispatcher) wrap(name string, handler shared.EventHandler) shared.EventHandler {
	h := handler
	for i := len(d.middlewares) - 1; i >= 0; i-- {
		h = d.middlewares[i](h)
	}
	inner := RecoveryMiddleware()(h)

	return func(event shared.Event) error {
		err := retry.Do(context.Background(), func(context.Context) error {
			return inner(event)
		}, d.retry...)
		if err != nil {
			d.deadLetters.Add(DeadLetterEntry{
				Handler:  name,
				Event:    event,
				Error:    err.Error(),
				FailedAt: time.Now(),
			})
			d.logger.Error("event handler gave up",
				slog.String("handler", name),
				slog.String("event_type", string(event.EventType())),
				slog.String("aggregate_id", event.AggregateID()),
				slog.String("error", err.Error()),
			)
		}
		return err
	}
}

// DeadLetterQueue returns the dead letter queue.
func (d *Dispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetters
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// Middleware wraps handler execution.
type Middleware func(shared.EventHandler) shared.EventHandler

// RecoveryMiddleware turns a handler panic into an error.
func RecoveryMiddleware() Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			return safeCall(next, event)
		}
	}
}

// LoggingMiddleware logs failed attempts at warn and successes at debug.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next shared.EventHandler) shared.EventHandler {
		return func(event shared.Event) error {
			start := time.Now()
			err := next(event)
			attrs := []any{
				slog.String("event_type", string(event.EventType())),
				slog.String("aggregate_id", event.AggregateID()),
				slog.String("latency", time.Since(start).String()),
			}
			if err != nil {
				logger.Warn("event handler failed", append(attrs, slog.String("error", err.Error()))...)
				return err
			}
			logger.Debug("event handled", attrs...)
			return nil
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry represents a failed event.
type DeadLetterEntry struct {
	Handler  string
	Event    shared.Event
	Error    string
	FailedAt time.Time
}

func (e DeadLetterEntry) String() string {
	return fmt.Sprintf("%s %s/%s: %s", e.Handler, e.Event.EventType(), e.Event.AggregateID(), e.Error)
}

// DeadLetterQueue keeps the most recent failures, dropping the oldest.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a new dead letter queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	return &DeadLetterQueue{
		entries: make([]DeadLetterEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add adds an entry to the queue.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of all entries, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Size returns the current queue size.
func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
