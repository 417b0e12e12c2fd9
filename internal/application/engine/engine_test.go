package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/domain/shared"
	"github.com/createathon/challenge-hub/internal/infrastructure/persistence/memory"
)

type fakeSource struct {
	metrics challenge.Metrics
	err     error
	calls   int
}

func (f *fakeSource) FetchMetrics(_ context.Context, _ string) (challenge.Metrics, error) {
	f.calls++
	return f.metrics, f.err
}

type fakeScorer struct{}

func (fakeScorer) Score(_ context.Context, _ string) (Score, error) {
	return Score{Label: "POSITIVE", Confidence: 0.9}, nil
}

type fakeCache struct {
	mu          sync.Mutex
	entries     []challenge.LeaderboardEntry
	has         bool
	sets        int
	invalidates int
}

func (c *fakeCache) GetLeaderboard(_ context.Context) ([]challenge.LeaderboardEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.has {
		return nil, errors.New("miss")
	}
	return c.entries, nil
}

func (c *fakeCache) SetLeaderboard(_ context.Context, entries []challenge.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries, c.has = entries, true
	c.sets++
	return nil
}

func (c *fakeCache) InvalidateLeaderboard(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries, c.has = nil, false
	c.invalidates++
	return nil
}

func newEngine(t *testing.T, opts ...func(*Config)) *Engine {
	t.Helper()
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	cfg := Config{
		Store:  memory.NewProgressStore(memory.WithClock(now)),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(&cfg)
	}
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func submitDays(t *testing.T, e *Engine, id challenge.UserID, days int, m challenge.Metrics) {
	t.Helper()
	for d := 1; d <= days; d++ {
		_, err := e.OnSubmission(context.Background(), id, d, m)
		require.NoError(t, err)
	}
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestScenarioA_EligibleAfterFullChallenge(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.OnStart(ctx, 1, "Aisha")
	require.NoError(t, err)
	submitDays(t, e, 1, 21, challenge.Metrics{Views: 500})

	ev, err := e.OnEvaluateRequest(ctx, 1)
	require.NoError(t, err)

	assert.True(t, ev.Verdict.Eligible)
	assert.Equal(t, 21, ev.State.TotalDays)
	assert.Equal(t, int64(10500), ev.State.TotalViews)
	assert.True(t, ev.NewlyEligible)

	u, err := e.Store().GetUser(ctx, 1)
	require.NoError(t, err)
	assert.True(t, u.Eligible)

	again, err := e.OnEvaluateRequest(ctx, 1)
	require.NoError(t, err)
	assert.True(t, again.Verdict.Eligible)
	assert.False(t, again.NewlyEligible)
}

func TestScenarioB_NotEnoughViews(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.OnStart(ctx, 1, "Bek")
	require.NoError(t, err)
	submitDays(t, e, 1, 21, challenge.Metrics{Views: 400})

	ev, err := e.OnEvaluateRequest(ctx, 1)
	require.NoError(t, err)

	assert.False(t, ev.Verdict.Eligible)
	assert.Equal(t, int64(8400), ev.State.TotalViews)
	assert.Equal(t, 0, ev.Verdict.MissingDays)
	assert.False(t, ev.NewlyEligible)

	u, err := e.Store().GetUser(ctx, 1)
	require.NoError(t, err)
	assert.False(t, u.Eligible)
}

func TestScenarioC_TieBrokenByRegistration(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.OnStart(ctx, 2, "A")
	require.NoError(t, err)
	_, err = e.OnStart(ctx, 1, "B")
	require.NoError(t, err)

	_, err = e.OnSubmission(ctx, 1, 1, challenge.Metrics{Views: 300})
	require.NoError(t, err)
	_, err = e.OnSubmission(ctx, 2, 1, challenge.Metrics{Views: 100, Likes: 100, Comments: 100})
	require.NoError(t, err)

	board, err := e.OnLeaderboardRequest(ctx)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "A", board[0].DisplayName)
	assert.Equal(t, "B", board[1].DisplayName)
	assert.Equal(t, board[0].EngagementScore, board[1].EngagementScore)
}

func TestScenarioD_UnknownUser(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	_, err := e.OnSubmission(ctx, 99, 1, challenge.Metrics{Views: 1})
	assert.True(t, shared.IsNotFound(err))

	_, err = e.OnEvaluateRequest(ctx, 99)
	assert.ErrorIs(t, err, challenge.ErrUserNotFound)

	users, err := e.Store().AllUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestOnStart_DefaultsDisplayName(t *testing.T) {
	u, err := newEngine(t).OnStart(context.Background(), 5, "   ")
	require.NoError(t, err)
	assert.Equal(t, "Creator", u.DisplayName)
}

func TestOnChallengeStart_ResetsProgress(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	_, err := e.OnStart(ctx, 1, "Aisha")
	require.NoError(t, err)
	submitDays(t, e, 1, 3, challenge.Metrics{Views: 10})

	require.NoError(t, e.OnChallengeStart(ctx, 1))

	_, state, err := e.UserState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, state.TotalDays)

	assert.ErrorIs(t, e.OnChallengeStart(ctx, 2), challenge.ErrUserNotFound)
}

func TestOnResubmission(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	_, err := e.OnStart(ctx, 1, "Aisha")
	require.NoError(t, err)

	_, err = e.OnSubmission(ctx, 1, 1, challenge.Metrics{Views: 10})
	require.NoError(t, err)
	_, err = e.OnSubmission(ctx, 1, 1, challenge.Metrics{Views: 20})
	assert.ErrorIs(t, err, challenge.ErrDuplicateDay)

	state, err := e.OnResubmission(ctx, 1, 1, challenge.Metrics{Views: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(20), state.TotalViews)
}

func TestOnProfileInput_Steps(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	_, err := e.OnStart(ctx, 1, "Aisha")
	require.NoError(t, err)

	step, err := e.OnProfileInput(ctx, 1, "@aisha")
	require.NoError(t, err)
	assert.Equal(t, SocialHandleSaved, step)

	step, err = e.OnProfileInput(ctx, 1, "https://youtube.com/watch?v=abc 1M views")
	require.NoError(t, err)
	assert.Equal(t, ViralContentSaved, step)

	step, err = e.OnProfileInput(ctx, 1, "anything else")
	require.NoError(t, err)
	assert.Equal(t, ProfileComplete, step)

	u, err := e.Store().GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "@aisha", u.SocialHandle)
	assert.True(t, u.HasProfile())

	_, err = e.OnProfileInput(ctx, 1, "  ")
	assert.True(t, shared.IsValidation(err))

	_, err = e.OnProfileInput(ctx, 2, "@ghost")
	assert.True(t, shared.IsNotFound(err))
}

func TestOnSubmitContent(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{metrics: challenge.Metrics{Views: 700, Likes: 30, Comments: 4}}
	e := newEngine(t, func(c *Config) {
		c.Metrics = src
		c.Scorer = fakeScorer{}
	})
	_, err := e.OnStart(ctx, 1, "Aisha")
	require.NoError(t, err)

	sub, err := e.OnSubmitContent(ctx, 1, 4, "https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.Equal(t, int64(700), sub.Metrics.Views)
	assert.Equal(t, 1, sub.State.TotalDays)
	require.NotNil(t, sub.Score)
	assert.Equal(t, "POSITIVE", sub.Score.Label)

	_, err = e.OnSubmitContent(ctx, 1, 40, "ref")
	assert.ErrorIs(t, err, challenge.ErrInvalidDay)
	_, err = e.OnSubmitContent(ctx, 7, 1, "ref")
	assert.ErrorIs(t, err, challenge.ErrUserNotFound)
	assert.Equal(t, 1, src.calls)
}

func TestOnSubmitContent_SourceFailure(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, func(c *Config) {
		c.Metrics = &fakeSource{err: shared.ErrYouTubeUnavailable}
	})
	_, err := e.OnStart(ctx, 1, "Aisha")
	require.NoError(t, err)

	_, err = e.OnSubmitContent(ctx, 1, 1, "ref")
	assert.True(t, shared.IsExternalService(err))

	_, state, err := e.UserState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, state.TotalDays)
}

func TestOnSubmitContent_NoSource(t *testing.T) {
	_, err := newEngine(t).OnSubmitContent(context.Background(), 1, 1, "ref")
	assert.ErrorIs(t, err, ErrNoMetricsSource)
}

func TestLeaderboard_UsesAndInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}
	e := newEngine(t, func(c *Config) { c.Cache = cache })

	_, err := e.OnStart(ctx, 1, "Aisha")
	require.NoError(t, err)

	first, err := e.OnLeaderboardRequest(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, cache.sets)

	_, err = e.OnLeaderboardRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	_, err = e.OnSubmission(ctx, 1, 1, challenge.Metrics{Views: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.invalidates)

	board, err := e.OnLeaderboardRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), board[0].EngagementScore)
	assert.Equal(t, 2, cache.sets)
}

// racingStore runs afterSnapshot once, right after AllUsers has copied the
// users, to model a write landing between the snapshot and the cache fill.
type racingStore struct {
	*memory.ProgressStore
	afterSnapshot func()
}

func (s *racingStore) AllUsers(ctx context.Context) ([]challenge.User, error) {
	users, err := s.ProgressStore.AllUsers(ctx)
	if hook := s.afterSnapshot; hook != nil {
		s.afterSnapshot = nil
		hook()
	}
	return users, err
}

func TestLeaderboard_WriteDuringSnapshotIsNotCached(t *testing.T) {
	ctx := context.Background()
	cache := &fakeCache{}
	store := &racingStore{ProgressStore: memory.NewProgressStore()}
	e := newEngine(t, func(c *Config) {
		c.Store = store
		c.Cache = cache
	})

	_, err := e.OnStart(ctx, 1, "Aisha")
	require.NoError(t, err)

	store.afterSnapshot = func() {
		_, err := e.OnSubmission(ctx, 1, 1, challenge.Metrics{Views: 500})
		require.NoError(t, err)
	}

	stale, err := e.OnLeaderboardRequest(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, int64(0), stale[0].EngagementScore)
	assert.Equal(t, 0, cache.sets)

	board, err := e.OnLeaderboardRequest(ctx)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, int64(500), board[0].EngagementScore)
	assert.Equal(t, 1, cache.sets)
}

func TestEvaluate_DoesNotMark(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	_, err := e.OnStart(ctx, 1, "Aisha")
	require.NoError(t, err)
	submitDays(t, e, 1, 21, challenge.Metrics{Views: 1000})

	ev, err := e.Evaluate(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ev.Verdict.Eligible)

	u, err := e.Store().GetUser(ctx, 1)
	require.NoError(t, err)
	assert.False(t, u.Eligible)
}

func TestCustomPolicy(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, func(c *Config) {
		c.Evaluator = challenge.Policy{MinDays: 2, MinViews: 10}
	})
	_, err := e.OnStart(ctx, 1, "Aisha")
	require.NoError(t, err)
	submitDays(t, e, 1, 2, challenge.Metrics{Views: 6})

	ev, err := e.OnEvaluateRequest(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ev.Verdict.Eligible)
}
