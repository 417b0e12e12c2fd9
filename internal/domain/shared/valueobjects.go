package shared

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank is a 1-based position on the leaderboard.
type Rank int

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// Medal returns a medal emoji for the podium, empty otherwise.
func (r Rank) Medal() string {
	switch r {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return ""
	}
}
