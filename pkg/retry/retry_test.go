package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fast(opts ...Option) *Retrier {
	base := []Option{WithBaseDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
	return New(append(base, opts...)...)
}

func TestDo_SucceedsAfterRetryableFailures(t *testing.T) {
	calls := 0
	var retried []int
	r := fast(WithMaxAttempts(4), WithOnRetry(func(attempt int, err error, _ time.Duration) {
		retried = append(retried, attempt)
		assert.ErrorIs(t, err, errFlaky)
	}))

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errFlaky)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ExhaustsAttemptsAndUnwraps(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(3)).Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errFlaky)
	})

	assert.Equal(t, 3, calls)
	assert.Same(t, errFlaky, err)
	assert.False(t, IsRetryable(err))
}

func TestDo_PlainErrorIsNotRetriedByDefault(t *testing.T) {
	calls := 0
	err := fast().Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errFlaky)
}

func TestDo_PermanentWinsOverRetryIf(t *testing.T) {
	calls := 0
	r := fast(WithRetryIf(func(error) bool { return true }))
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errFlaky)
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, errFlaky, err)
}

func TestDo_RetryIfClassifiesPlainErrors(t *testing.T) {
	calls := 0
	r := fast(WithMaxAttempts(2), WithRetryIf(func(err error) bool { return errors.Is(err, errFlaky) }))
	_ = r.Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.Equal(t, 2, calls)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fast().Do(ctx, func(context.Context) error {
		calls++
		return nil
	})

	assert.Zero(t, calls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDo_CancelDuringBackoffReturnsLastError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(WithBaseDelay(time.Hour), WithMaxDelay(time.Hour), WithJitter(0))

	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, func(context.Context) error { return Retryable(errFlaky) })
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Same(t, errFlaky, err)
	case <-time.After(time.Second):
		t.Fatal("retrier did not observe cancellation")
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	r := New(WithBaseDelay(100*time.Millisecond), WithMaxDelay(300*time.Millisecond), WithMultiplier(2), WithJitter(0))

	assert.Equal(t, 100*time.Millisecond, r.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, r.Backoff(2))
	assert.Equal(t, 300*time.Millisecond, r.Backoff(3))
	assert.Equal(t, 300*time.Millisecond, r.Backoff(10))
}

func TestBackoff_JitterStaysInBand(t *testing.T) {
	r := New(WithBaseDelay(100*time.Millisecond), WithJitter(0.5))
	for range 50 {
		d := r.Backoff(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestOptions_IgnoreInvalidValues(t *testing.T) {
	p := New(WithMaxAttempts(0), WithMultiplier(0.5), WithJitter(2), WithBaseDelay(-1)).Policy()
	def := DefaultPolicy()

	assert.Equal(t, def.MaxAttempts, p.MaxAttempts)
	assert.Equal(t, def.Multiplier, p.Multiplier)
	assert.Equal(t, def.Jitter, p.Jitter)
	assert.Equal(t, def.BaseDelay, p.BaseDelay)
}

func TestDoValue(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), fast(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errFlaky)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestMarkers_NilPassThrough(t *testing.T) {
	assert.NoError(t, Retryable(nil))
	assert.NoError(t, Permanent(nil))
}

func TestDatabaseRetrier_OptionsOverrideBase(t *testing.T) {
	p := DatabaseRetrier().Policy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, p.BaseDelay)
	assert.Nil(t, p.RetryIf)

	transient := func(err error) bool { return errors.Is(err, errFlaky) }
	p = DatabaseRetrier(WithMaxAttempts(2), WithRetryIf(transient)).Policy()
	assert.Equal(t, 2, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.MaxDelay)
	require.NotNil(t, p.RetryIf)
	assert.True(t, p.RetryIf(errFlaky))
}
