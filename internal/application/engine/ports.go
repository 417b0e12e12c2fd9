package engine

import (
	"context"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// Внешние зависимости движка. Реализации живут в infrastructure.
// ══════════════════════════════════════════════════════════════════════════════

// MetricsSource получает метрики контента по ссылке (например, YouTube).
// Вызывается вне любых блокировок хранилища.
type MetricsSource interface {
	FetchMetrics(ctx context.Context, contentRef string) (challenge.Metrics, error)
}

// Score - оценка качества контента.
type Score struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ContentScorer - опциональная оценка текста публикации (например,
// модель тональности). Ни один инвариант от неё не зависит.
type ContentScorer interface {
	Score(ctx context.Context, content string) (Score, error)
}

// LeaderboardCache кеширует вычисленную таблицу лидеров.
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context) ([]challenge.LeaderboardEntry, error)
	SetLeaderboard(ctx context.Context, entries []challenge.LeaderboardEntry) error
	InvalidateLeaderboard(ctx context.Context) error
}
