// Package middleware contains Telegram bot middlewares for update processing.
package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER MIDDLEWARE
// Per-user token bucket. A user who double-taps a button is fine; a user
// flooding /submit is slowed down before any YouTube quota is spent.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per user.
	RequestsPerMinute int

	// BurstSize is how many requests a fresh user can send at once.
	BurstSize int

	// IdleTTL drops buckets of users who have been quiet this long.
	IdleTTL time.Duration

	// CleanupInterval is how often idle buckets are swept by Run.
	CleanupInterval time.Duration

	// WhitelistedUsers bypass the limiter (e.g., admins).
	WhitelistedUsers map[int64]bool

	// Now is the clock. Default time.Now.
	Now func() time.Time
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		BurstSize:         5,
		IdleTTL:           10 * time.Minute,
		CleanupInterval:   5 * time.Minute,
		WhitelistedUsers:  make(map[int64]bool),
		Now:               time.Now,
	}
}

// RateLimiter implements per-user rate limiting.
type RateLimiter struct {
	config RateLimitConfig
	limit  rate.Limit

	mu      sync.Mutex
	buckets map[int64]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter. Call Run to sweep idle buckets.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = defaults.BurstSize
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &RateLimiter{
		config:  config,
		limit:   rate.Every(time.Minute / time.Duration(config.RequestsPerMinute)),
		buckets: make(map[int64]*bucket),
	}
}

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	Allowed bool

	// RetryAfter is how long the user should wait when not allowed.
	RetryAfter time.Duration
}

// Check consumes a token for the user if one is available. A rejected
// request does not consume anything.
func (rl *RateLimiter) Check(userID int64) RateLimitResult {
	if rl.config.WhitelistedUsers[userID] {
		return RateLimitResult{Allowed: true}
	}

	now := rl.config.Now()

	rl.mu.Lock()
	b, ok := rl.buckets[userID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.config.BurstSize)}
		rl.buckets[userID] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return RateLimitResult{Allowed: false, RetryAfter: time.Minute}
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return RateLimitResult{Allowed: false, RetryAfter: delay}
	}
	return RateLimitResult{Allowed: true}
}

// Cleanup drops buckets idle longer than IdleTTL and returns how many.
func (rl *RateLimiter) Cleanup() int {
	cutoff := rl.config.Now().Add(-rl.config.IdleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for id, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, id)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Tracked returns the number of users with a live bucket.
func (rl *RateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
