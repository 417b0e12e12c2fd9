package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/createathon/challenge-hub/internal/domain/shared"
)

func userWith(id UserID, seq int64, registered time.Time, days map[int]Metrics) User {
	u := User{
		ID:           id,
		DisplayName:  "user-" + id.String(),
		Progress:     make(map[int]DailyEntry, len(days)),
		RegisteredAt: registered,
		Seq:          seq,
	}
	for d, m := range days {
		u.Progress[d] = DailyEntry{Day: d, Metrics: m, SubmittedAt: registered}
	}
	return u
}

func TestAggregate_SumsAllDays(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	u := userWith(1, 1, now, map[int]Metrics{
		1: {Views: 100, Likes: 10, Comments: 1},
		2: {Views: 250, Likes: 20, Comments: 2},
		5: {Views: 50, Likes: 0, Comments: 7},
	})

	state := Aggregate(u)

	assert.Equal(t, 3, state.TotalDays)
	assert.Equal(t, int64(400), state.TotalViews)
	assert.Equal(t, int64(30), state.TotalLikes)
	assert.Equal(t, int64(10), state.TotalComments)
	assert.Equal(t, int64(440), state.Engagement())
}

func TestAggregate_EmptyProgress(t *testing.T) {
	state := Aggregate(User{ID: 1})
	assert.Equal(t, ChallengeState{}, state)
}

func TestAggregate_LargeValuesDoNotOverflow(t *testing.T) {
	days := make(map[int]Metrics, ChallengeDays)
	for d := 1; d <= ChallengeDays; d++ {
		days[d] = Metrics{Views: 3_000_000_000}
	}
	state := Aggregate(userWith(1, 1, time.Now(), days))
	assert.Equal(t, int64(63_000_000_000), state.TotalViews)
}

func TestLeaderboard_OrdersByEngagement(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	users := []User{
		userWith(1, 1, base, map[int]Metrics{1: {Views: 10}}),
		userWith(2, 2, base.Add(time.Minute), map[int]Metrics{1: {Views: 500, Likes: 5}}),
		userWith(3, 3, base.Add(2*time.Minute), map[int]Metrics{1: {Views: 100}, 2: {Comments: 1}}),
	}

	board := Leaderboard(users)

	require.Len(t, board, 3)
	assert.Equal(t, UserID(2), board[0].UserID)
	assert.Equal(t, int64(505), board[0].EngagementScore)
	assert.Equal(t, shared.Rank(1), board[0].Rank)
	assert.Equal(t, UserID(3), board[1].UserID)
	assert.Equal(t, UserID(1), board[2].UserID)
	assert.Equal(t, shared.Rank(3), board[2].Rank)
}

func TestLeaderboard_TieBrokenByRegistration(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := userWith(10, 1, base, map[int]Metrics{1: {Views: 200, Likes: 100}})
	b := userWith(5, 2, base.Add(time.Hour), map[int]Metrics{1: {Views: 300}})

	// Input order must not matter.
	for _, input := range [][]User{{a, b}, {b, a}} {
		board := Leaderboard(input)
		require.Len(t, board, 2)
		assert.Equal(t, int64(300), board[0].EngagementScore)
		assert.Equal(t, int64(300), board[1].EngagementScore)
		assert.Equal(t, UserID(10), board[0].UserID)
		assert.Equal(t, UserID(5), board[1].UserID)
	}
}

func TestLeaderboard_SameTimestampUsesSequence(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := userWith(7, 2, ts, nil)
	b := userWith(9, 1, ts, nil)

	board := Leaderboard([]User{a, b})

	require.Len(t, board, 2)
	assert.Equal(t, UserID(9), board[0].UserID)
	assert.Equal(t, UserID(7), board[1].UserID)
}

func TestLeaderboard_StableAcrossCalls(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	users := []User{
		userWith(1, 1, ts, map[int]Metrics{1: {Views: 1}}),
		userWith(2, 2, ts, map[int]Metrics{1: {Views: 1}}),
		userWith(3, 3, ts, map[int]Metrics{1: {Views: 1}}),
	}

	first := Leaderboard(users)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Leaderboard(users))
	}
}

func TestTop(t *testing.T) {
	entries := make([]LeaderboardEntry, 5)
	assert.Len(t, Top(entries, 3), 3)
	assert.Len(t, Top(entries, 0), 5)
	assert.Len(t, Top(entries, 10), 5)
}
