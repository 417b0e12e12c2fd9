package redis

import (
	"context"
	"time"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
)

// TTLLeaderboard bounds staleness if an invalidation is lost.
const TTLLeaderboard = 5 * time.Minute

// LeaderboardCache stores the fully ranked leaderboard as one JSON value.
// The ranking itself stays in the domain, so ties keep their order.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewLeaderboardCache uses TTLLeaderboard when ttl is not positive.
func NewLeaderboardCache(cache *Cache, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = TTLLeaderboard
	}
	return &LeaderboardCache{cache: cache, ttl: ttl}
}

func (l *LeaderboardCache) key() string {
	return l.cache.Key("leaderboard")
}

// GetLeaderboard returns ErrCacheMiss when nothing is cached.
func (l *LeaderboardCache) GetLeaderboard(ctx context.Context) ([]challenge.LeaderboardEntry, error) {
	var entries []challenge.LeaderboardEntry
	if err := l.cache.GetJSON(ctx, l.key(), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (l *LeaderboardCache) SetLeaderboard(ctx context.Context, entries []challenge.LeaderboardEntry) error {
	if entries == nil {
		entries = []challenge.LeaderboardEntry{}
	}
	return l.cache.SetJSON(ctx, l.key(), entries, l.ttl)
}

func (l *LeaderboardCache) InvalidateLeaderboard(ctx context.Context) error {
	return l.cache.Delete(ctx, l.key())
}
