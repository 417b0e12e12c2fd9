package presenter

import (
	"fmt"
	"html"
	"strings"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD PRESENTER
// Форматирует таблицу лидеров: "N. имя: X points".
// ══════════════════════════════════════════════════════════════════════════════

// EmptyLeaderboard - ответ, когда никто ещё не зарегистрирован.
const EmptyLeaderboard = "No leaderboard data yet. Start posting content to join!"

// Leaderboard форматирует первые limit строк. limit <= 0 - вся таблица.
// Если строк больше, чем показано, внизу выводится число скрытых.
func Leaderboard(entries []challenge.LeaderboardEntry, limit int) string {
	if len(entries) == 0 {
		return EmptyLeaderboard
	}

	shown := challenge.Top(entries, limit)

	var sb strings.Builder
	sb.WriteString("🏆 <b>Leaderboard:</b>\n\n")
	for i, e := range shown {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(LeaderboardLine(e))
	}

	if hidden := len(entries) - len(shown); hidden > 0 {
		fmt.Fprintf(&sb, "\n\n…and %d more", hidden)
	}
	return sb.String()
}

// LeaderboardLine renders one row, with a medal for the top three.
func LeaderboardLine(e challenge.LeaderboardEntry) string {
	line := fmt.Sprintf("%d. %s: %d points", e.Rank.Int(), html.EscapeString(e.DisplayName), e.EngagementScore)
	if medal := e.Rank.Medal(); medal != "" {
		line = medal + " " + line
	}
	return line
}
