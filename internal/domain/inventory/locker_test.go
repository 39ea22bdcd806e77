package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "item-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(ctx, "item-1")
		if err == nil {
			close(acquired)
			u()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the released key")
	}
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	u1, err := l.Lock(ctx, "a")
	require.NoError(t, err)
	u2, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, l.held())

	u1()
	u2()
	assert.Equal(t, 0, l.held())
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, l.held())
}

func TestLocalLocker_UnlockIdempotent(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlock()
	unlock()

	assert.Equal(t, 0, l.held())
}
