package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(clock *fakeClock) *RateLimiter {
	return NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         2,
		IdleTTL:           time.Minute,
		WhitelistedUsers:  map[int64]bool{99: true},
		Now:               clock.Now,
	})
}

func TestRateLimiter_BurstThenBlock(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	rl := newLimiter(clock)

	assert.True(t, rl.Check(1).Allowed)
	assert.True(t, rl.Check(1).Allowed)

	res := rl.Check(1)
	assert.False(t, res.Allowed)
	assert.InDelta(t, time.Second, res.RetryAfter, float64(10*time.Millisecond))

	// other users have their own bucket
	assert.True(t, rl.Check(2).Allowed)

	clock.Advance(time.Second)
	assert.True(t, rl.Check(1).Allowed)
}

func TestRateLimiter_RejectionDoesNotConsume(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	rl := newLimiter(clock)

	rl.Check(1)
	rl.Check(1)
	for range 5 {
		assert.False(t, rl.Check(1).Allowed)
	}

	clock.Advance(time.Second)
	assert.True(t, rl.Check(1).Allowed)
}

func TestRateLimiter_Whitelist(t *testing.T) {
	rl := newLimiter(&fakeClock{now: time.Unix(0, 0)})
	for range 10 {
		assert.True(t, rl.Check(99).Allowed)
	}
	assert.Zero(t, rl.Tracked())
}

func TestRateLimiter_Cleanup(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	rl := newLimiter(clock)

	rl.Check(1)
	clock.Advance(30 * time.Second)
	rl.Check(2)
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, rl.Cleanup())
	assert.Equal(t, 1, rl.Tracked())
}

func TestRecovery_ConvertsPanic(t *testing.T) {
	var seen *PanicInfo
	m := NewRecoveryMiddleware(RecoveryConfig{
		EnableStackTrace: true,
		OnPanic:          func(_ context.Context, info *PanicInfo) { seen = info },
	})

	res := m.Recover(context.Background(), 5, "command:submit", func() error {
		panic("boom")
	})

	assert.True(t, res.Recovered)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
	require.NotNil(t, seen)
	assert.Equal(t, int64(5), seen.UserID)
	assert.Equal(t, "command:submit", seen.Route)
	assert.NotEmpty(t, seen.StackTrace)
}

func TestRecovery_PassesErrorsThrough(t *testing.T) {
	m := NewRecoveryMiddleware(DefaultRecoveryConfig())
	want := errors.New("plain")

	res := m.Recover(context.Background(), 1, "text", func() error { return want })

	assert.False(t, res.Recovered)
	assert.ErrorIs(t, res.Err, want)
}

func TestRecovery_PanicWithError(t *testing.T) {
	cause := errors.New("nil map")
	res := NewRecoveryMiddleware(DefaultRecoveryConfig()).Recover(context.Background(), 1, "x", func() error {
		panic(cause)
	})
	assert.ErrorIs(t, res.Err, cause)
}

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Observe("command:start", OutcomeOK, time.Now())
	m.Observe("command:start", OutcomeOK, time.Now())
	m.Observe("command:start", OutcomeError, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Count("command:start", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Count("command:start", OutcomeError)))

	n, err := testutil.GatherAndCount(reg, "telegram_updates_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe("x", OutcomeOK, time.Now()) })
}
