// Package circuitbreaker stops calling a dependency that keeps failing and
// probes it again after a cool-down. The desk wraps Redis with it so a Redis
// outage degrades to in-process locking instead of failing checkouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down passes.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the circuit. Default 5.
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it. Default 2.
	SuccessThreshold int

	// Timeout is the open-state cool-down. Default 30s.
	Timeout time.Duration

	// MaxHalfOpenRequests bounds concurrent probes. Default 1.
	MaxHalfOpenRequests int

	OnStateChange func(name string, from, to State)

	// IsFailure decides which errors count. Nil counts every error.
	IsFailure func(error) bool

	now func() time.Time
}

// Option is a functional option for configuring the circuit breaker.
type Option func(*Config)

// WithFailureThreshold sets the failure threshold.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the success threshold.
func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

// WithTimeout sets the open-state cool-down.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithOnStateChange sets the state change callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnStateChange = fn
	}
}

// WithIsFailure sets the failure detection function.
func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) {
		c.IsFailure = fn
	}
}

// withClock overrides time for tests.
func withClock(now func() time.Time) Option {
	return func(c *Config) {
		c.now = now
	}
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	config Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	openedAt    time.Time
	halfOpenIn  int
	rejectCount int64
}

// New creates a new CircuitBreaker with the given name and options.
func New(name string, opts ...Option) *CircuitBreaker {
	config := Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &CircuitBreaker{config: config}
}

// Execute runs fn if the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.after(err)
	return err
}

// ExecuteWithFallback runs fallback instead of fn while the circuit is open.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if errors.Is(err, ErrCircuitOpen) {
		return fallback(err)
	}
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.config.now().Sub(cb.openedAt) < cb.config.Timeout {
			cb.rejectCount++
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.halfOpenIn = 1
		return nil
	case StateHalfOpen:
		if cb.halfOpenIn >= cb.config.MaxHalfOpenRequests {
			cb.rejectCount++
			return ErrCircuitOpen
		}
		cb.halfOpenIn++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil
	if failed && cb.config.IsFailure != nil {
		failed = cb.config.IsFailure(err)
	}

	if failed {
		cb.successes = 0
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.openedAt = cb.config.now()
			cb.setState(StateOpen)
		}
		return
	}

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenIn = 0

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Rejected returns how many calls the open circuit has turned away.
func (cb *CircuitBreaker) Rejected() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.rejectCount
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// RedisBreaker trips quickly and probes again after a few seconds.
// A caller giving up (cancelled or expired context) is not a Redis failure.
func RedisBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"redis",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithTimeout(5*time.Second),
		WithOnStateChange(onStateChange),
		WithIsFailure(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
}
