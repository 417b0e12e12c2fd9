package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

// Notifier delivers a reminder to a user. Retries, if any, are its concern.
type Notifier interface {
	NotifyReminder(ctx context.Context, evt challenge.ReminderEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, evt challenge.ReminderEvent) error

// NotifyReminder calls f.
func (f NotifierFunc) NotifyReminder(ctx context.Context, evt challenge.ReminderEvent) error {
	return f(ctx, evt)
}

// DeliverFunc handles one event.
type DeliverFunc func(ctx context.Context, evt challenge.ReminderEvent) error

// Middleware wraps a DeliverFunc.
type Middleware func(DeliverFunc) DeliverFunc

// ReminderDispatcher drains a ReminderQueue with a fixed worker pool.
// A failed delivery is recorded in the dead letter queue and never blocks
// other users' reminders.
type ReminderDispatcher struct {
	queue       *ReminderQueue
	deliver     DeliverFunc
	workers     int
	deadLetterQ *DeadLetterQueue
	metrics     *DispatcherMetrics
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// DispatcherConfig contains configuration for the ReminderDispatcher.
type DispatcherConfig struct {
	// Workers is the number of concurrent deliveries.
	Workers int

	// DeliveryTimeout bounds a single delivery.
	DeliveryTimeout time.Duration

	// DeadLetterQueueSize is the max size of the DLQ.
	DeadLetterQueueSize int

	Logger *slog.Logger
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:             4,
		DeliveryTimeout:     30 * time.Second,
		DeadLetterQueueSize: 1000,
	}
}

// NewReminderDispatcher creates a dispatcher. Middlewares run outermost first.
func NewReminderDispatcher(queue *ReminderQueue, notifier Notifier, config DispatcherConfig, middlewares ...Middleware) *ReminderDispatcher {
	def := DefaultDispatcherConfig()
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = def.DeliveryTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("component", "reminder_dispatcher")

	metrics := NewDispatcherMetrics()
	chain := []Middleware{
		RecoveryMiddleware(logger),
		MetricsMiddleware(metrics),
		TimeoutMiddleware(config.DeliveryTimeout),
	}
	chain = append(chain, middlewares...)

	deliver := DeliverFunc(notifier.NotifyReminder)
	for i := len(chain) - 1; i >= 0; i-- {
		deliver = chain[i](deliver)
	}

	return &ReminderDispatcher{
		queue:       queue,
		deliver:     deliver,
		workers:     config.Workers,
		deadLetterQ: NewDeadLetterQueue(config.DeadLetterQueueSize),
		metrics:     metrics,
		logger:      logger,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryMiddleware turns a panicking notifier into an error.
func RecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next DeliverFunc) DeliverFunc {
		return func(ctx context.Context, evt challenge.ReminderEvent) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("notifier panic recovered",
						"user_id", evt.UserID,
						"panic", r,
						"stack", string(debug.Stack()),
					)
					err = fmt.Errorf("notifier panic: %v", r)
				}
			}()
			return next(ctx, evt)
		}
	}
}

// LoggingMiddleware traces every delivery at debug level with its latency.
// Failures are reported again by the worker when they reach the dead letter
// queue.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next DeliverFunc) DeliverFunc {
		return func(ctx context.Context, evt challenge.ReminderEvent) error {
			start := time.Now()
			err := next(ctx, evt)
			if err != nil {
				logger.Debug("reminder delivery failed",
					"user_id", evt.UserID,
					"cycle_id", evt.CycleID,
					"duration", time.Since(start),
					"error", err,
				)
			} else {
				logger.Debug("reminder delivered",
					"user_id", evt.UserID,
					"cycle_id", evt.CycleID,
					"duration", time.Since(start),
				)
			}
			return err
		}
	}
}

// MetricsMiddleware records delivery outcomes.
func MetricsMiddleware(metrics *DispatcherMetrics) Middleware {
	return func(next DeliverFunc) DeliverFunc {
		return func(ctx context.Context, evt challenge.ReminderEvent) error {
			start := time.Now()
			err := next(ctx, evt)
			metrics.RecordDelivery(time.Since(start), err == nil)
			return err
		}
	}
}

// TimeoutMiddleware bounds each delivery with a context deadline.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next DeliverFunc) DeliverFunc {
		return func(ctx context.Context, evt challenge.ReminderEvent) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, evt)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start launches the workers. Deliveries use a context derived from ctx
// that is cancelled only if Stop gives up waiting.
func (d *ReminderDispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrDispatcherRunning
	}

	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.running = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(workCtx, i)
	}

	d.logger.Info("reminder dispatcher started", "workers", d.workers, "queue_capacity", d.queue.Cap())
	return nil
}

func (d *ReminderDispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	for evt := range d.queue.Events() {
		if err := d.deliver(ctx, evt); err != nil {
			d.deadLetterQ.Add(DeadLetterEntry{
				ID:       uuid.NewString(),
				Event:    evt,
				Error:    err,
				FailedAt: time.Now(),
			})
			d.logger.Warn("reminder moved to dead letter queue",
				"worker", id,
				"user_id", evt.UserID,
				"error", err,
			)
		}
	}
}

// Stop closes the queue and waits until buffered reminders are delivered.
// If ctx expires first, in-flight deliveries are cancelled.
func (d *ReminderDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrDispatcherNotRunning
	}
	d.running = false
	d.mu.Unlock()

	d.queue.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		d.cancel()
		<-done
		err = fmt.Errorf("reminder dispatcher drain: %w", ctx.Err())
	}
	d.cancel()

	snap := d.metrics.Snapshot()
	d.logger.Info("reminder dispatcher stopped",
		"delivered", snap.Delivered,
		"failed", snap.Failed,
		"dead_letters", d.deadLetterQ.Size(),
	)
	return err
}

// Metrics returns dispatcher metrics.
func (d *ReminderDispatcher) Metrics() *DispatcherMetrics {
	return d.metrics
}

// DeadLetterQueue returns the dead letter queue.
func (d *ReminderDispatcher) DeadLetterQueue() *DeadLetterQueue {
	return d.deadLetterQ
}

// Queue returns the queue the dispatcher drains.
func (d *ReminderDispatcher) Queue() *ReminderQueue {
	return d.queue
}

// ══════════════════════════════════════════════════════════════════════════════
// DEAD LETTER QUEUE
// ══════════════════════════════════════════════════════════════════════════════

// DeadLetterEntry represents a reminder that could not be delivered.
type DeadLetterEntry struct {
	ID       string
	Event    challenge.ReminderEvent
	Error    error
	FailedAt time.Time
}

// DeadLetterQueue stores failed reminders, evicting the oldest at capacity.
type DeadLetterQueue struct {
	mu      sync.RWMutex
	entries []DeadLetterEntry
	maxSize int
}

// NewDeadLetterQueue creates a new dead letter queue.
func NewDeadLetterQueue(maxSize int) *DeadLetterQueue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &DeadLetterQueue{maxSize: maxSize}
}

// Add adds an entry to the queue.
func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.maxSize {
		q.entries = q.entries[1:]
	}
	q.entries = append(q.entries, entry)
}

// Entries returns a copy of all entries.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]DeadLetterEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Size returns the current queue size.
func (q *DeadLetterQueue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER METRICS
// ══════════════════════════════════════════════════════════════════════════════

// DispatcherMetrics tracks delivery outcomes.
type DispatcherMetrics struct {
	mu            sync.RWMutex
	delivered     int64
	failed        int64
	totalDuration time.Duration
}

// NewDispatcherMetrics creates a new metrics tracker.
func NewDispatcherMetrics() *DispatcherMetrics {
	return &DispatcherMetrics{}
}

// RecordDelivery records one delivery attempt.
func (m *DispatcherMetrics) RecordDelivery(duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDuration += duration
	if success {
		m.delivered++
	} else {
		m.failed++
	}
}

// Snapshot returns a point-in-time copy.
func (m *DispatcherMetrics) Snapshot() DispatcherMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := DispatcherMetricsSnapshot{
		Delivered: m.delivered,
		Failed:    m.failed,
	}
	if total := m.delivered + m.failed; total > 0 {
		snap.AverageDuration = m.totalDuration / time.Duration(total)
	}
	return snap
}

// DispatcherMetricsSnapshot is a point-in-time copy of DispatcherMetrics.
type DispatcherMetricsSnapshot struct {
	Delivered       int64
	Failed          int64
	AverageDuration time.Duration
}

var (
	ErrDispatcherRunning    = errors.New("reminder dispatcher is already running")
	ErrDispatcherNotRunning = errors.New("reminder dispatcher is not running")
)
