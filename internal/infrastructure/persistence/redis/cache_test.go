package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/createathon/challenge-hub/internal/domain/challenge"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache needs a Redis at TEST_REDIS_ADDR, e.g. localhost:6379.
// Each test gets its own key prefix so runs never collide.
func newTestCache(t *testing.T) *Cache {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	return NewCacheFromClient(client, "test:"+uuid.NewString()+":")
}

func TestConfig_Addr(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr())
	assert.Equal(t, "challenge:", cfg.KeyPrefix)
}

func TestCache_Key(t *testing.T) {
	c := NewCacheFromClient(nil, "p:")
	assert.Equal(t, "p:reminder:42:7", c.Key("reminder", "42", "7"))
	assert.Equal(t, "p:", c.Key())
}

func TestCache_JSONRoundTripAndMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	var out map[string]int
	assert.ErrorIs(t, c.GetJSON(ctx, c.Key("missing"), &out), ErrCacheMiss)
	assert.ErrorIs(t, c.SetJSON(ctx, "", 1, 0), ErrCacheKeyEmpty)

	require.NoError(t, c.SetJSON(ctx, c.Key("k"), map[string]int{"a": 1}, time.Minute))
	require.NoError(t, c.GetJSON(ctx, c.Key("k"), &out))
	assert.Equal(t, map[string]int{"a": 1}, out)
}

func TestLeaderboardCache_SetGetInvalidate(t *testing.T) {
	lc := NewLeaderboardCache(newTestCache(t), time.Minute)
	ctx := context.Background()

	_, err := lc.GetLeaderboard(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)

	entries := []challenge.LeaderboardEntry{
		{Rank: 1, UserID: 2, DisplayName: "B", EngagementScore: 50, TotalDays: 3},
		{Rank: 2, UserID: 1, DisplayName: "A", EngagementScore: 50, TotalDays: 2},
	}
	require.NoError(t, lc.SetLeaderboard(ctx, entries))

	got, err := lc.GetLeaderboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	require.NoError(t, lc.InvalidateLeaderboard(ctx))
	_, err = lc.GetLeaderboard(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLeaderboardCache_EmptyBoardIsAHit(t *testing.T) {
	lc := NewLeaderboardCache(newTestCache(t), 0)
	ctx := context.Background()

	require.NoError(t, lc.SetLeaderboard(ctx, nil))
	got, err := lc.GetLeaderboard(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReminderLedger_ClaimOncePerSlot(t *testing.T) {
	cache := newTestCache(t)
	ledger := NewReminderLedger(cache, time.Minute)
	ctx := context.Background()

	ok, err := ledger.Claim(ctx, 7, "1000")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Claim(ctx, 7, "1000")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ledger.Claim(ctx, 7, "2000")
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := cache.client.TTL(ctx, cache.Key("reminder", "1000", "7")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
