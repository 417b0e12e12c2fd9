package redis

import (
	"context"
	"time"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
)

// ReminderLedger remembers which users were reminded in a slot so a
// restart inside the same interval does not remind them twice.
type ReminderLedger struct {
	cache *Cache
	ttl   time.Duration
}

// NewReminderLedger keeps claims for ttl, normally the reminder interval.
func NewReminderLedger(cache *Cache, ttl time.Duration) *ReminderLedger {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReminderLedger{cache: cache, ttl: ttl}
}

// Claim is a SETNX on reminder:{slot}:{user}. True means "send it".
func (r *ReminderLedger) Claim(ctx context.Context, userID challenge.UserID, slot string) (bool, error) {
	return r.cache.SetNX(ctx, r.cache.Key("reminder", slot, userID.String()), 1, r.ttl)
}
