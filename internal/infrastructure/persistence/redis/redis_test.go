package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classup/rental-desk/internal/domain/inventory"
	"github.com/classup/rental-desk/internal/infrastructure/persistence/memory"
	"github.com/classup/rental-desk/pkg/circuitbreaker"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeLockClient struct {
	mu   sync.Mutex
	keys map[string]string
	down error
}

func newFakeLockClient() *fakeLockClient {
	return &fakeLockClient{keys: map[string]string{}}
}

func (f *fakeLockClient) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down != nil {
		return redis.NewBoolResult(false, f.down)
	}
	if _, taken := f.keys[key]; taken {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLockClient) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[keys[0]] == args[0].(string) {
		delete(f.keys, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeLockClient) holder(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.keys[key]
	return v, ok
}

type fakeValueStore struct {
	mu     sync.Mutex
	values map[string]inventory.Borrower
	gets   int
	broken bool
}

func newFakeValueStore() *fakeValueStore {
	return &fakeValueStore{values: map[string]inventory.Borrower{}}
}

func (f *fakeValueStore) Get(_ context.Context, key string, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.broken {
		return ErrCacheConnection
	}
	b, ok := f.values[key]
	if !ok {
		return ErrCacheMiss
	}
	*(dest.(*inventory.Borrower)) = b
	return nil
}

func (f *fakeValueStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return ErrCacheConnection
	}
	f.values[key] = value.(inventory.Borrower)
	return nil
}

func (f *fakeValueStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

type countingDirectory struct {
	inner *memory.Directory
	calls int
	asked []string
}

func (d *countingDirectory) Lookup(ctx context.Context, ids []string) (map[string]inventory.Borrower, error) {
	d.calls++
	d.asked = append(d.asked, ids...)
	return d.inner.Lookup(ctx, ids)
}

// ─────────────────────────────────────────────────────────────────────────────
// Keys
// ─────────────────────────────────────────────────────────────────────────────

func TestKeys(t *testing.T) {
	assert.Equal(t, "lock:item:it-1", ItemLockKey("it-1"))
	assert.Equal(t, "borrower:s-1", BorrowerKey("s-1"))
	assert.Equal(t, "overdue:r-1", OverdueNoticeKey("r-1"))
	assert.Equal(t, "pubsub:rental.opened", PubSubChannel("rental.opened"))
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}

// ─────────────────────────────────────────────────────────────────────────────
// ItemLock
// ─────────────────────────────────────────────────────────────────────────────

func TestItemLock_AcquireAndRelease(t *testing.T) {
	client := newFakeLockClient()
	lock := NewItemLock(client, time.Second, time.Millisecond)

	unlock, err := lock.Lock(context.Background(), "it-1")
	require.NoError(t, err)

	_, held := client.holder("lock:item:it-1")
	assert.True(t, held)

	unlock()
	unlock()
	_, held = client.holder("lock:item:it-1")
	assert.False(t, held)
}

func TestItemLock_WaitsForHolder(t *testing.T) {
	client := newFakeLockClient()
	lock := NewItemLock(client, time.Second, time.Millisecond)

	unlock, err := lock.Lock(context.Background(), "it-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := lock.Lock(context.Background(), "it-1")
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
}

func TestItemLock_ContextTimeout(t *testing.T) {
	client := newFakeLockClient()
	lock := NewItemLock(client, time.Second, time.Millisecond)

	_, err := lock.Lock(context.Background(), "it-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = lock.Lock(ctx, "it-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestItemLock_ReleaseIgnoresForeignToken(t *testing.T) {
	client := newFakeLockClient()
	lock := NewItemLock(client, time.Second, time.Millisecond)

	unlock, err := lock.Lock(context.Background(), "it-1")
	require.NoError(t, err)

	// Simulate expiry followed by another holder.
	client.mu.Lock()
	client.keys["lock:item:it-1"] = "someone-else"
	client.mu.Unlock()

	unlock()
	owner, held := client.holder("lock:item:it-1")
	assert.True(t, held)
	assert.Equal(t, "someone-else", owner)
}

// ─────────────────────────────────────────────────────────────────────────────
// GuardedLocker
// ─────────────────────────────────────────────────────────────────────────────

func TestGuardedLocker_UsesRedisWhenHealthy(t *testing.T) {
	client := newFakeLockClient()
	g := NewGuardedLocker(NewItemLock(client, time.Second, time.Millisecond), nil, nil, nil)

	unlock, err := g.Lock(context.Background(), "it-1")
	require.NoError(t, err)
	_, held := client.holder("lock:item:it-1")
	assert.True(t, held)
	unlock()
}

func TestGuardedLocker_FallsBackWhenRedisDown(t *testing.T) {
	client := newFakeLockClient()
	client.down = errors.New("connection refused")

	var fellBack []string
	breaker := circuitbreaker.New("redis", circuitbreaker.WithFailureThreshold(2))
	g := NewGuardedLocker(NewItemLock(client, time.Second, time.Millisecond), nil, breaker, func(itemID string, err error) {
		fellBack = append(fellBack, itemID)
	})

	for i := 0; i < 3; i++ {
		unlock, err := g.Lock(context.Background(), "it-1")
		require.NoError(t, err)
		unlock()
	}

	assert.Equal(t, []string{"it-1", "it-1", "it-1"}, fellBack)
	assert.Equal(t, circuitbreaker.StateOpen, g.BreakerState())
}

func TestGuardedLocker_FallbackStillExcludes(t *testing.T) {
	client := newFakeLockClient()
	client.down = errors.New("connection refused")
	g := NewGuardedLocker(NewItemLock(client, time.Second, time.Millisecond), nil, nil, nil)

	unlock, err := g.Lock(context.Background(), "it-1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Lock(ctx, "it-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ─────────────────────────────────────────────────────────────────────────────
// BorrowerCache
// ─────────────────────────────────────────────────────────────────────────────

func TestBorrowerCache_ReadThrough(t *testing.T) {
	store := newFakeValueStore()
	dir := &countingDirectory{inner: memory.NewDirectory(
		inventory.Borrower{ID: "s-1", Name: "Kim Minji", SeatNumber: "A12"},
		inventory.Borrower{ID: "s-2", Name: "Lee Joon"},
	)}
	cache := NewBorrowerCache(store, dir, 0)
	ctx := context.Background()

	got, err := cache.Lookup(ctx, []string{"s-1", "s-2", "s-1", "ghost"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "A12", got["s-1"].SeatNumber)
	assert.Equal(t, []string{"s-1", "s-2", "ghost"}, dir.asked)

	dir.asked = nil
	got, err = cache.Lookup(ctx, []string{"s-1", "s-2"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, dir.calls)
	assert.Empty(t, dir.asked)
}

func TestBorrowerCache_IgnoresBrokenCache(t *testing.T) {
	store := newFakeValueStore()
	store.broken = true
	dir := &countingDirectory{inner: memory.NewDirectory(inventory.Borrower{ID: "s-1", Name: "Kim Minji"})}
	cache := NewBorrowerCache(store, dir, time.Minute)

	got, err := cache.Lookup(context.Background(), []string{"s-1"})
	require.NoError(t, err)
	assert.Equal(t, "Kim Minji", got["s-1"].Name)
}

func TestBorrowerCache_Invalidate(t *testing.T) {
	store := newFakeValueStore()
	inner := memory.NewDirectory(inventory.Borrower{ID: "s-1", Name: "Old"})
	cache := NewBorrowerCache(store, inner, time.Minute)
	ctx := context.Background()

	_, err := cache.Lookup(ctx, []string{"s-1"})
	require.NoError(t, err)

	inner.Put(inventory.Borrower{ID: "s-1", Name: "New"})
	require.NoError(t, cache.Invalidate(ctx, "s-1"))

	got, err := cache.Lookup(ctx, []string{"s-1"})
	require.NoError(t, err)
	assert.Equal(t, "New", got["s-1"].Name)
}
