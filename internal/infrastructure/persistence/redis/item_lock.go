package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/pkg/circuitbreaker"
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired holder cannot release a lock someone else has since taken.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// LockClient is the subset of go-redis the item lock needs.
type LockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// ITEM LOCK
// ══════════════════════════════════════════════════════════════════════════════

// ItemLock is an inventory.ItemLocker shared by every process using the same Redis.
type ItemLock struct {
	client       LockClient
	ttl          time.Duration
	pollInterval time.Duration
	newToken     func() string
}

var _ inventory.ItemLocker = (*ItemLock)(nil)

// NewItemLock creates an item lock. Zero ttl or poll uses the defaults.
func NewItemLock(client LockClient, ttl, poll time.Duration) *ItemLock {
	if ttl <= 0 {
		ttl = TTLItemLock
	}
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}
	return &ItemLock{
		client:       client,
		ttl:          ttl,
		pollInterval: poll,
		newToken:     uuid.NewString,
	}
}

// Lock implements inventory.ItemLocker.
func (l *ItemLock) Lock(ctx context.Context, itemID string) (func(), error) {
	key := ItemLockKey(itemID)
	token := l.newToken()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *ItemLock) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be done; release on our own deadline.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			// On failure the key still expires after ttl.
			_ = l.client.Eval(ctx, releaseScript, []string{key}, token).Err()
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BREAKER-GUARDED LOCKER
// ══════════════════════════════════════════════════════════════════════════════

// GuardedLocker prefers the Redis lock and falls back to an in-process lock
// while Redis is failing. Row locks in the store still serialize writers
// when processes disagree about which lock they hold.
type GuardedLocker struct {
	primary  inventory.ItemLocker
	fallback inventory.ItemLocker
	breaker  *circuitbreaker.CircuitBreaker
	onFall   func(itemID string, err error)
}

var _ inventory.ItemLocker = (*GuardedLocker)(nil)

// NewGuardedLocker wraps primary. A nil fallback uses an inventory.LocalLocker.
// onFallback, if set, is told each time the fallback is used.
func NewGuardedLocker(primary, fallback inventory.ItemLocker, breaker *circuitbreaker.CircuitBreaker, onFallback func(itemID string, err error)) *GuardedLocker {
	if fallback == nil {
		fallback = inventory.NewLocalLocker()
	}
	if breaker == nil {
		breaker = circuitbreaker.RedisBreaker(nil)
	}
	return &GuardedLocker{primary: primary, fallback: fallback, breaker: breaker, onFall: onFallback}
}

// Lock implements inventory.ItemLocker.
func (g *GuardedLocker) Lock(ctx context.Context, itemID string) (func(), error) {
	var unlock func()
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		u, err := g.primary.Lock(ctx, itemID)
		unlock = u
		return err
	})
	if err == nil {
		return unlock, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	if g.onFall != nil {
		g.onFall(itemID, err)
	}
	return g.fallback.Lock(ctx, itemID)
}

// BreakerState reports the state of the Redis breaker.
func (g *GuardedLocker) BreakerState() circuitbreaker.State {
	return g.breaker.State()
}
