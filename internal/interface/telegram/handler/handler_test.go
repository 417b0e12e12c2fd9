package handler

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/createathon/challenge-hub/internal/application/engine"
	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/domain/shared"
	"github.com/createathon/challenge-hub/internal/infrastructure/persistence/memory"
	"github.com/createathon/challenge-hub/internal/interface/telegram/presenter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMetrics struct {
	metrics challenge.Metrics
	err     error
	calls   int
}

func (s *stubMetrics) FetchMetrics(_ context.Context, _ string) (challenge.Metrics, error) {
	s.calls++
	return s.metrics, s.err
}

func newEngine(t *testing.T, src engine.MetricsSource) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Config{
		Store:   memory.NewProgressStore(),
		Metrics: src,
	})
	require.NoError(t, err)
	return e
}

func register(t *testing.T, e *engine.Engine, id challenge.UserID, name string) {
	t.Helper()
	_, err := e.OnStart(context.Background(), id, name)
	require.NoError(t, err)
}

func TestStartHandler(t *testing.T) {
	e := newEngine(t, nil)
	h := NewStartHandler(e)

	resp, err := h.Handle(context.Background(), Request{UserID: 7, ChatID: 7, FirstName: "Ann"})

	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Hi Ann!")
	assert.Equal(t, presenter.ParseModeHTML, resp.ParseMode)
	require.NotNil(t, resp.Keyboard)
	assert.Len(t, resp.Keyboard.Rows, 4)

	user, _, err := e.UserState(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.DisplayName)
}

func TestStartHandler_KeepsProgress(t *testing.T) {
	e := newEngine(t, nil)
	register(t, e, 7, "Ann")
	_, err := e.OnSubmission(context.Background(), 7, 1, challenge.Metrics{Views: 10})
	require.NoError(t, err)

	_, err = NewStartHandler(e).Handle(context.Background(), Request{UserID: 7, FirstName: "Ann"})
	require.NoError(t, err)

	_, state, err := e.UserState(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, state.TotalDays)
}

func TestProfileHandler_Steps(t *testing.T) {
	e := newEngine(t, nil)
	h := NewProfileHandler(e)
	ctx := context.Background()

	resp, err := h.Handle(ctx, Request{UserID: 1, Text: "@ann"})
	require.NoError(t, err)
	assert.Equal(t, presenter.RegisterFirst(), resp.Text)

	register(t, e, 1, "Ann")

	resp, err = h.Handle(ctx, Request{UserID: 1, Text: "@ann"})
	require.NoError(t, err)
	assert.Equal(t, presenter.SocialHandleSaved(), resp.Text)

	resp, err = h.Handle(ctx, Request{UserID: 1, Text: "https://youtu.be/x 50k views"})
	require.NoError(t, err)
	assert.Equal(t, presenter.ViralContentSaved(challenge.ChallengeDays), resp.Text)

	resp, err = h.Handle(ctx, Request{UserID: 1, Text: "hello"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "profile is complete")

	user, _, err := e.UserState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "@ann", user.SocialHandle)
	assert.Equal(t, "https://youtu.be/x 50k views", user.ViralContent)
}

func TestProfileHandler_BlankTextIgnored(t *testing.T) {
	e := newEngine(t, nil)
	register(t, e, 1, "Ann")

	resp, err := NewProfileHandler(e).Handle(context.Background(), Request{UserID: 1, Text: "   "})

	require.NoError(t, err)
	assert.True(t, resp.IsEmpty())
}

func TestChallengeHandler_ResetsProgress(t *testing.T) {
	e := newEngine(t, nil)
	register(t, e, 1, "Ann")
	_, err := e.OnSubmission(context.Background(), 1, 1, challenge.Metrics{Views: 5})
	require.NoError(t, err)

	resp, err := NewChallengeHandler(e).Handle(context.Background(), Request{UserID: 1})

	require.NoError(t, err)
	assert.Contains(t, resp.Text, "21-day Createathon Challenge has started")
	_, state, err := e.UserState(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, state.TotalDays)
}

func TestSubmitHandler(t *testing.T) {
	src := &stubMetrics{metrics: challenge.Metrics{Views: 1500, Likes: 40, Comments: 3}}
	e := newEngine(t, src)
	register(t, e, 1, "Ann")
	h := NewSubmitHandler(e)
	ctx := context.Background()

	resp, err := h.Handle(ctx, Request{UserID: 1, Args: "3 https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Day 3 recorded")
	assert.Contains(t, resp.Text, "1,500 views")
	assert.Contains(t, resp.Text, "Days: 1/21")

	resp, err = h.Handle(ctx, Request{UserID: 1, Args: "3 https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "already submitted")

	resp, err = h.Handle(ctx, Request{UserID: 1, Args: "22 https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "between 1 and 21")
}

func TestSubmitHandler_Usage(t *testing.T) {
	src := &stubMetrics{}
	e := newEngine(t, src)
	register(t, e, 1, "Ann")
	h := NewSubmitHandler(e)

	for _, args := range []string{"", "3", "three https://youtu.be/x", "1 a b"} {
		resp, err := h.Handle(context.Background(), Request{UserID: 1, Args: args})
		require.NoError(t, err)
		assert.Contains(t, resp.Text, "/submit", args)
	}
	assert.Zero(t, src.calls)
}

func TestSubmitHandler_SourceFailure(t *testing.T) {
	src := &stubMetrics{err: shared.ErrYouTubeUnavailable}
	e := newEngine(t, src)
	register(t, e, 1, "Ann")

	resp, err := NewSubmitHandler(e).Handle(context.Background(), Request{UserID: 1, Args: "1 https://youtu.be/x"})

	require.NoError(t, err)
	assert.Contains(t, resp.Text, "YouTube isn't answering")
	_, state, err := e.UserState(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, state.TotalDays)
}

func TestParseSubmitArgs(t *testing.T) {
	day, link, ok := parseSubmitArgs("  #4   https://youtu.be/abc ")
	assert.True(t, ok)
	assert.Equal(t, 4, day)
	assert.Equal(t, "https://youtu.be/abc", link)
}

func TestEvaluateHandler_NotStarted(t *testing.T) {
	e := newEngine(t, nil)
	h := NewEvaluateHandler(e, Reward{})

	resp, err := h.Handle(context.Background(), Request{UserID: 9})
	require.NoError(t, err)
	assert.Equal(t, presenter.NotStarted(), resp.Text)

	register(t, e, 9, "Zed")
	resp, err = h.Handle(context.Background(), Request{UserID: 9})
	require.NoError(t, err)
	assert.Equal(t, presenter.NotStarted(), resp.Text)
}

func TestEvaluateHandler_GoodEffort(t *testing.T) {
	e := newEngine(t, nil)
	register(t, e, 1, "Ann")
	_, err := e.OnSubmission(context.Background(), 1, 1, challenge.Metrics{Views: 20000})
	require.NoError(t, err)

	resp, err := NewEvaluateHandler(e, Reward{AnimationURL: "gif"}).Handle(context.Background(), Request{UserID: 1})

	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Good effort, Ann!")
	assert.Nil(t, resp.Animation)
	assert.Nil(t, resp.Keyboard)
}

func TestEvaluateHandler_RewardSentOnce(t *testing.T) {
	e := newEngine(t, nil)
	register(t, e, 1, "Ann")
	for day := 1; day <= challenge.ChallengeDays; day++ {
		_, err := e.OnSubmission(context.Background(), 1, day, challenge.Metrics{Views: 500})
		require.NoError(t, err)
	}
	h := NewEvaluateHandler(e, Reward{AnimationURL: "https://example.com/win.gif", FormURL: "https://example.com/form"})

	resp, err := h.Handle(context.Background(), Request{UserID: 1})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Congratulations, Ann!")
	assert.Contains(t, resp.Text, "Total Views: 10500")
	require.NotNil(t, resp.Animation)
	assert.Equal(t, "https://example.com/win.gif", resp.Animation.URL)
	assert.Contains(t, resp.Animation.Caption, "https://example.com/form")
	assert.True(t, resp.Reward)
	require.NotNil(t, resp.Keyboard)

	resp, err = h.Handle(context.Background(), Request{UserID: 1})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Congratulations")
	assert.Nil(t, resp.Animation)
	assert.False(t, resp.Reward)
}

func TestLeaderboardHandler(t *testing.T) {
	e := newEngine(t, nil)
	h := NewLeaderboardHandler(e, 0)
	ctx := context.Background()

	resp, err := h.Handle(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, presenter.EmptyLeaderboard, resp.Text)

	register(t, e, 1, "Ann")
	register(t, e, 2, "Bob")
	_, err = e.OnSubmission(ctx, 2, 1, challenge.Metrics{Views: 100, Likes: 10, Comments: 1})
	require.NoError(t, err)

	resp, err = h.Handle(ctx, Request{IsCallback: true})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "1. Bob: 111 points")
	assert.Contains(t, resp.Text, "2. Ann: 0 points")
	assert.NotNil(t, resp.Keyboard)
}

func TestTipsHandler(t *testing.T) {
	h := NewTipsHandler(presenter.CreatorTips2025, rand.New(rand.NewPCG(3, 4)))

	resp, err := h.Handle(context.Background(), Request{IsCallback: true, Data: presenter.CallbackCreatorTips})

	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Creator Tips for 2025")
	count := 0
	for _, tip := range presenter.CreatorTips2025.Tips {
		if slices.Contains(strings.Split(resp.Text, "\n"), tip) {
			count++
		}
	}
	assert.Equal(t, presenter.TipsPerView, count)
}

func TestMenuHandler_EditsCallbackMessage(t *testing.T) {
	h := NewMenuHandler(21)

	resp, err := h.Handle(context.Background(), Request{IsCallback: true, MessageID: 12})
	require.NoError(t, err)
	assert.True(t, resp.EditInPlace)
	assert.Equal(t, presenter.MainMenu(), resp.Text)

	resp, err = h.Handle(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, resp.EditInPlace)
}
