package presenter

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/createathon/challenge-hub/internal/application/engine"
	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboard_Empty(t *testing.T) {
	assert.Equal(t, EmptyLeaderboard, Leaderboard(nil, 10))
}

func TestLeaderboard_Lines(t *testing.T) {
	entries := []challenge.LeaderboardEntry{
		{Rank: 1, UserID: 1, DisplayName: "Ann", EngagementScore: 300},
		{Rank: 2, UserID: 2, DisplayName: "<Bob>", EngagementScore: 120},
		{Rank: 3, UserID: 3, DisplayName: "Cy", EngagementScore: 0},
		{Rank: 4, UserID: 4, DisplayName: "Dee", EngagementScore: 0},
	}

	text := Leaderboard(entries, 3)

	assert.Contains(t, text, "1. Ann: 300 points")
	assert.Contains(t, text, "2. &lt;Bob&gt;: 120 points")
	assert.Contains(t, text, "3. Cy: 0 points")
	assert.NotContains(t, text, "Dee")
	assert.Contains(t, text, "and 1 more")
}

func TestLeaderboardLine_Medals(t *testing.T) {
	assert.Equal(t, "🥇 1. Ann: 5 points", LeaderboardLine(challenge.LeaderboardEntry{Rank: 1, DisplayName: "Ann", EngagementScore: 5}))
	assert.Equal(t, "7. Zed: 0 points", LeaderboardLine(challenge.LeaderboardEntry{Rank: 7, DisplayName: "Zed"}))
}

func TestEvaluation_Eligible(t *testing.T) {
	ev := engine.Evaluation{
		User:    challenge.User{DisplayName: "Ann"},
		State:   challenge.ChallengeState{TotalDays: 21, TotalViews: 10001},
		Verdict: challenge.Verdict{Eligible: true, TotalDays: 21, TotalViews: 10001},
	}

	text := Evaluation(ev, "https://forms.example.com/x")

	assert.Contains(t, text, "Congratulations, Ann!")
	assert.Contains(t, text, "Total Days: 21")
	assert.Contains(t, text, "Total Views: 10001")
	assert.Contains(t, text, `href="https://forms.example.com/x"`)
}

func TestEvaluation_GoodEffort(t *testing.T) {
	ev := engine.Evaluation{
		User:    challenge.User{DisplayName: "Bob"},
		State:   challenge.ChallengeState{TotalDays: 20, TotalViews: 10000},
		Verdict: challenge.Verdict{TotalDays: 20, TotalViews: 10000, MissingDays: 1, MissingViews: 1},
	}

	text := Evaluation(ev, "https://forms.example.com/x")

	assert.Contains(t, text, "Good effort, Bob!")
	assert.Contains(t, text, "1 more day(s)")
	assert.Contains(t, text, "1 more view(s)")
	assert.NotContains(t, text, "forms.example.com")
}

func TestRewardCaption(t *testing.T) {
	assert.Contains(t, RewardCaption("https://f.example.com"), "https://f.example.com")
	assert.NotContains(t, RewardCaption(""), "form to proceed")
}

func TestFormatCount(t *testing.T) {
	cases := map[int64]string{
		0:          "0",
		999:        "999",
		1000:       "1,000",
		123456:     "123,456",
		1234567:    "1,234,567",
		-12345:     "-12,345",
		1000000000: "1,000,000,000",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatCount(in), fmt.Sprint(in))
	}
}

func TestTipDeck_SampleDistinct(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, deck := range []TipDeck{ContentCreationGuide, CreatorTips2025} {
		tips := deck.Sample(TipsPerView, rng)
		require.Len(t, tips, TipsPerView)

		seen := make(map[string]bool)
		for _, tip := range tips {
			assert.False(t, seen[tip], "duplicate tip %q", tip)
			seen[tip] = true
			assert.Contains(t, deck.Tips, tip)
		}
	}
}

func TestTipDeck_SampleBounds(t *testing.T) {
	deck := TipDeck{Title: "x", Tips: []string{"a", "b"}}
	assert.Len(t, deck.Sample(5, nil), 2)
	assert.Nil(t, deck.Sample(0, nil))
}

func TestTips_Render(t *testing.T) {
	text := Tips("Guide", []string{"one", "two"})
	assert.Contains(t, text, "<b>Guide</b>")
	assert.Contains(t, text, "one\n\ntwo")
	assert.Equal(t, "❌ No suggestions available at the moment.", Tips("Guide", nil))
}

func TestErrorText(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{challenge.ErrUserNotFound, "/start"},
		{challenge.ErrInvalidDay, "between 1 and 21"},
		{fmt.Errorf("record: %w", challenge.ErrDuplicateDay), "already submitted"},
		{engine.ErrNoMetricsSource, "not configured"},
		{fmt.Errorf("fetch metrics: %w", shared.ErrYouTubeVideoNotFound), "couldn't find"},
		{fmt.Errorf("%w: quota", shared.ErrYouTubeRateLimited), "YouTube isn't answering"},
		{shared.WrapError("youtube", "ParseVideoID", shared.ErrValidation, "bad", shared.ErrInvalidFormat), "YouTube video link"},
	}
	for _, tc := range cases {
		text, ok := ErrorText(tc.err, 21)
		assert.True(t, ok, tc.err.Error())
		assert.Contains(t, text, tc.want)
	}

	_, ok := ErrorText(fmt.Errorf("boom"), 21)
	assert.False(t, ok)
}

func TestMainMenuKeyboard(t *testing.T) {
	kb := MainMenuKeyboard(21)
	require.Len(t, kb.Rows, 4)
	assert.Equal(t, CallbackGuide, kb.Rows[0][0].CallbackData)
	assert.Equal(t, "🎯 Start 21-Day Challenge", kb.Rows[1][0].Text)
	assert.Equal(t, CallbackLeaderboard, kb.Rows[3][0].CallbackData)
	assert.Nil(t, RewardKeyboard(""))
}
