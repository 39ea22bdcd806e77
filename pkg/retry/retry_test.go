package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fast(opts ...Option) []Option {
	return append([]Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}, opts...)
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, fast(WithMaxAttempts(5))...)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanent(t *testing.T) {
	boom := errors.New("bad config")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(boom)
	}, fast(WithMaxAttempts(5))...)

	assert.Same(t, boom, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIf(t *testing.T) {
	transient := errors.New("transient")
	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return transient
		}
		return fatal
	}, fast(WithMaxAttempts(5), WithRetryIf(func(err error) bool { return errors.Is(err, transient) }))...)

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 2, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var retries []int
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("down")
	}, fast(WithMaxAttempts(3), WithOnRetry(func(attempt int, err error, delay time.Duration) {
		retries = append(retries, attempt)
	}))...)

	assert.EqualError(t, err, "down")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(ctx context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	v, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}
