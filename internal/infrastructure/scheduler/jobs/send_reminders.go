// Package jobs contains implementations of scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND REMINDERS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReminderSink accepts reminder events without blocking.
type ReminderSink interface {
	// TryPublish returns false when the event was dropped.
	TryPublish(evt challenge.ReminderEvent) bool
}

// ReminderLedger records which users were already reminded in a slot.
// It guards against double reminders when the process restarts mid-interval.
type ReminderLedger interface {
	// Claim returns true if the user has not been reminded in this slot yet.
	Claim(ctx context.Context, userID challenge.UserID, slot string) (bool, error)
}

// FireTimes reports the latest scheduled firing at or before t. The cron
// schedule implements it, so every firing gets a slot of its own.
type FireTimes interface {
	Prev(t time.Time) time.Time
}

// UserSnapshotter is the part of the progress store the job reads.
type UserSnapshotter interface {
	AllUsers(ctx context.Context) ([]challenge.User, error)
}

// SendRemindersJob emits one ReminderEvent per started user per cycle.
// Delivery is somebody else's job: the sink is non-blocking and nothing is
// retried here.
type SendRemindersJob struct {
	store  UserSnapshotter
	sink   ReminderSink
	ledger ReminderLedger
	logger *slog.Logger
	config SendRemindersConfig

	lastRunStats atomic.Pointer[SendRemindersStats]
	cycles       atomic.Int64
}

// SendRemindersConfig contains configuration for the reminder job.
type SendRemindersConfig struct {
	// Interval is the reminder period. It sizes ledger slots unless
	// FireTimes is set.
	Interval time.Duration

	// FireTimes keys ledger slots by the firing that started the cycle.
	FireTimes FireTimes

	// Timeout bounds a single cycle.
	Timeout time.Duration

	// Location anchors slots at local midnight. Default UTC.
	Location *time.Location

	// Clock overrides time.Now.
	Clock func() time.Time
}

// DefaultSendRemindersConfig returns sensible defaults.
func DefaultSendRemindersConfig() SendRemindersConfig {
	return SendRemindersConfig{
		Interval: 24 * time.Hour,
		Timeout:  2 * time.Minute,
		Clock:    time.Now,
	}
}

// SendRemindersStats contains statistics from one cycle.
type SendRemindersStats struct {
	CycleID        string
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	UsersScanned   int
	ActiveUsers    int
	Emitted        int
	Dropped        int
	AlreadySent    int
	LedgerErrors   int
	SnapshotFailed bool
}

// NewSendRemindersJob creates the job. ledger may be nil.
func NewSendRemindersJob(
	store UserSnapshotter,
	sink ReminderSink,
	ledger ReminderLedger,
	logger *slog.Logger,
	config SendRemindersConfig,
) *SendRemindersJob {
	def := DefaultSendRemindersConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Clock == nil {
		config.Clock = def.Clock
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SendRemindersJob{
		store:  store,
		sink:   sink,
		ledger: ledger,
		logger: logger.With("job", "send_reminders"),
		config: config,
	}
}

// Name returns the job name.
func (j *SendRemindersJob) Name() string {
	return "send_reminders"
}

// Description returns a human-readable description.
func (j *SendRemindersJob) Description() string {
	return "Reminds every user with challenge progress to post today's content"
}

// Run executes one reminder cycle. A failed snapshot skips the cycle and is
// not reported as an error, so the next tick still fires.
func (j *SendRemindersJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	now := j.config.Clock()
	stats := &SendRemindersStats{
		CycleID:   uuid.NewString(),
		StartedAt: now,
	}
	defer func() {
		stats.CompletedAt = j.config.Clock()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastRunStats.Store(stats)
		j.cycles.Add(1)
	}()

	users, err := j.store.AllUsers(ctx)
	if err != nil {
		stats.SnapshotFailed = true
		j.logger.Error("failed to snapshot users, skipping cycle",
			"cycle_id", stats.CycleID,
			"error", err,
		)
		return nil
	}
	stats.UsersScanned = len(users)

	slot := j.slot(now)
	for _, u := range users {
		if !challenge.NeedsReminder(u) {
			continue
		}
		stats.ActiveUsers++

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("reminder cycle interrupted after %d events: %w", stats.Emitted, err)
		}

		if j.ledger != nil {
			fresh, err := j.ledger.Claim(ctx, u.ID, slot)
			switch {
			case err != nil:
				// Ledger outage must not silence reminders.
				stats.LedgerErrors++
				j.logger.Warn("reminder ledger unavailable", "user_id", u.ID, "error", err)
			case !fresh:
				stats.AlreadySent++
				continue
			}
		}

		evt := challenge.ReminderEvent{
			UserID:   u.ID,
			CycleID:  stats.CycleID,
			IssuedAt: now,
		}
		if j.sink.TryPublish(evt) {
			stats.Emitted++
		} else {
			stats.Dropped++
			j.logger.Warn("reminder queue full, event dropped", "user_id", u.ID)
		}
	}

	j.logger.Info("reminder cycle finished",
		"cycle_id", stats.CycleID,
		"users", stats.UsersScanned,
		"active", stats.ActiveUsers,
		"emitted", stats.Emitted,
		"dropped", stats.Dropped,
		"already_sent", stats.AlreadySent,
	)
	return nil
}

// slot identifies the reminder cycle that contains t: the firing that
// started it when FireTimes is set, the fixed interval otherwise.
func (j *SendRemindersJob) slot(t time.Time) string {
	if j.config.FireTimes != nil {
		if fired := j.config.FireTimes.Prev(t.In(j.config.Location)); !fired.IsZero() {
			return strconv.FormatInt(fired.Unix(), 10)
		}
	}
	return strconv.FormatInt(timeutil.SlotStart(t, j.config.Interval, j.config.Location).Unix(), 10)
}

// LastRunStats returns statistics of the most recent cycle, or nil.
func (j *SendRemindersJob) LastRunStats() *SendRemindersStats {
	return j.lastRunStats.Load()
}

// Cycles returns how many cycles have run.
func (j *SendRemindersJob) Cycles() int64 {
	return j.cycles.Load()
}
