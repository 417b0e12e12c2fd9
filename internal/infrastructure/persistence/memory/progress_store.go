// Package memory provides an in-process ProgressStore.
// It is the default backend and the reference implementation for the
// store contract: one mutex guards the whole table and every read returns
// a deep copy.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS STORE
// ══════════════════════════════════════════════════════════════════════════════

// ProgressStore is a mutex-guarded challenge.ProgressStore.
type ProgressStore struct {
	mu    sync.RWMutex
	users map[challenge.UserID]*challenge.User
	order []challenge.UserID
	seq   int64

	challengeLength int
	now             func() time.Time
}

// Option configures a ProgressStore.
type Option func(*ProgressStore)

// WithChallengeLength sets the highest accepted day index.
func WithChallengeLength(days int) Option {
	return func(s *ProgressStore) {
		if days > 0 {
			s.challengeLength = days
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *ProgressStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewProgressStore creates an empty store.
func NewProgressStore(opts ...Option) *ProgressStore {
	s := &ProgressStore{
		users:           make(map[challenge.UserID]*challenge.User),
		challengeLength: challenge.ChallengeDays,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterUser creates the user if absent and returns the stored record.
func (s *ProgressStore) RegisterUser(_ context.Context, id challenge.UserID, displayName string) (challenge.User, error) {
	if !id.IsValid() {
		return challenge.User{}, challenge.ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		return u.Clone(), nil
	}

	s.seq++
	u := &challenge.User{
		ID:           id,
		DisplayName:  displayName,
		Progress:     make(map[int]challenge.DailyEntry),
		RegisteredAt: s.now(),
		Seq:          s.seq,
	}
	s.users[id] = u
	s.order = append(s.order, id)

	return u.Clone(), nil
}

// RecordSubmission stores metrics for a day that has no entry yet.
func (s *ProgressStore) RecordSubmission(_ context.Context, id challenge.UserID, day int, metrics challenge.Metrics) error {
	if err := challenge.ValidateSubmission(day, s.challengeLength, metrics); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, challenge.ErrUserNotFound)
	}
	if _, exists := u.Progress[day]; exists {
		return fmt.Errorf("user %s day %d: %w", id, day, challenge.ErrDuplicateDay)
	}

	u.Progress[day] = challenge.DailyEntry{
		Day:         day,
		Metrics:     metrics,
		SubmittedAt: s.now(),
	}
	return nil
}

// UpdateSubmission overwrites metrics for a day that already has an entry.
func (s *ProgressStore) UpdateSubmission(_ context.Context, id challenge.UserID, day int, metrics challenge.Metrics) error {
	if err := challenge.ValidateSubmission(day, s.challengeLength, metrics); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, challenge.ErrUserNotFound)
	}
	if _, exists := u.Progress[day]; !exists {
		return fmt.Errorf("user %s day %d: %w", id, day, challenge.ErrDayNotSubmitted)
	}

	u.Progress[day] = challenge.DailyEntry{
		Day:         day,
		Metrics:     metrics,
		SubmittedAt: s.now(),
	}
	return nil
}

// ResetProgress drops every daily entry of the user.
func (s *ProgressStore) ResetProgress(_ context.Context, id challenge.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, challenge.ErrUserNotFound)
	}
	u.Progress = make(map[int]challenge.DailyEntry)
	return nil
}

// SetProfile updates the social profile fields.
func (s *ProgressStore) SetProfile(_ context.Context, id challenge.UserID, update challenge.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, challenge.ErrUserNotFound)
	}
	update.Apply(u)
	return nil
}

// GetUser returns a copy of the user.
func (s *ProgressStore) GetUser(_ context.Context, id challenge.UserID) (challenge.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return challenge.User{}, fmt.Errorf("user %s: %w", id, challenge.ErrUserNotFound)
	}
	return u.Clone(), nil
}

// AllUsers returns a point-in-time snapshot in registration order.
func (s *ProgressStore) AllUsers(_ context.Context) ([]challenge.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]challenge.User, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.users[id].Clone())
	}
	return out, nil
}

// MarkEligible sets the eligible flag and reports whether it was newly set.
func (s *ProgressStore) MarkEligible(_ context.Context, id challenge.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, fmt.Errorf("user %s: %w", id, challenge.ErrUserNotFound)
	}
	if u.Eligible {
		return false, nil
	}
	u.Eligible = true
	return true, nil
}

// Len returns the number of registered users.
func (s *ProgressStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Ping always succeeds. It lets the store take part in health checks.
func (s *ProgressStore) Ping(_ context.Context) error {
	return nil
}

var _ challenge.ProgressStore = (*ProgressStore)(nil)
