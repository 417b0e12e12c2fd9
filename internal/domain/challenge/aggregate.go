package challenge

import (
	"cmp"
	"slices"

	"github.com/createathon/challenge-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE STATE
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeState - агрегат по всем записям пользователя. Не хранится,
// вычисляется по запросу.
type ChallengeState struct {
	TotalDays     int   `json:"total_days"`
	TotalViews    int64 `json:"total_views"`
	TotalLikes    int64 `json:"total_likes"`
	TotalComments int64 `json:"total_comments"`
}

// Engagement возвращает очки вовлечённости: просмотры + лайки + комментарии.
func (s ChallengeState) Engagement() int64 {
	return s.TotalViews + s.TotalLikes + s.TotalComments
}

// Aggregate суммирует метрики по Progress. Накопление в int64.
func Aggregate(u User) ChallengeState {
	state := ChallengeState{TotalDays: len(u.Progress)}
	for _, e := range u.Progress {
		state.TotalViews += e.Metrics.Views
		state.TotalLikes += e.Metrics.Likes
		state.TotalComments += e.Metrics.Comments
	}
	return state
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardEntry - строка таблицы лидеров.
type LeaderboardEntry struct {
	Rank            shared.Rank `json:"rank"`
	UserID          UserID      `json:"user_id"`
	DisplayName     string      `json:"display_name"`
	EngagementScore int64       `json:"engagement_score"`
	TotalDays       int         `json:"total_days"`
}

// Leaderboard строит таблицу лидеров.
//
// Порядок полный: очки по убыванию, затем более ранняя регистрация, затем
// порядковый номер регистрации, затем id. Результат не зависит от порядка
// входного среза.
func Leaderboard(users []User) []LeaderboardEntry {
	type scored struct {
		user  User
		state ChallengeState
	}

	rows := make([]scored, 0, len(users))
	for _, u := range users {
		rows = append(rows, scored{user: u, state: Aggregate(u)})
	}

	slices.SortFunc(rows, func(a, b scored) int {
		if c := cmp.Compare(b.state.Engagement(), a.state.Engagement()); c != 0 {
			return c
		}
		if c := a.user.RegisteredAt.Compare(b.user.RegisteredAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.user.Seq, b.user.Seq); c != 0 {
			return c
		}
		return cmp.Compare(a.user.ID, b.user.ID)
	})

	entries := make([]LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = LeaderboardEntry{
			Rank:            shared.Rank(i + 1),
			UserID:          r.user.ID,
			DisplayName:     r.user.DisplayName,
			EngagementScore: r.state.Engagement(),
			TotalDays:       r.state.TotalDays,
		}
	}
	return entries
}

// Top возвращает первые n строк. n <= 0 означает всю таблицу.
func Top(entries []LeaderboardEntry, n int) []LeaderboardEntry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
