// Package messaging moves reminder events from the scheduler to the
// transport: a bounded in-process queue and a worker pool that drains it.
package messaging

import (
	"sync"
	"sync/atomic"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
)

// DefaultQueueSize is used when NewReminderQueue gets a non-positive size.
const DefaultQueueSize = 256

// ReminderQueue is a bounded, non-blocking reminder buffer.
// Publishing never blocks: a full or closed queue drops the event.
type ReminderQueue struct {
	mu     sync.RWMutex
	ch     chan challenge.ReminderEvent
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
}

// NewReminderQueue creates a queue with the given capacity.
func NewReminderQueue(size int) *ReminderQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &ReminderQueue{ch: make(chan challenge.ReminderEvent, size)}
}

// TryPublish enqueues evt and reports whether it was accepted.
func (q *ReminderQueue) TryPublish(evt challenge.ReminderEvent) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.dropped.Add(1)
		return false
	}

	select {
	case q.ch <- evt:
		q.published.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Events returns the consumer side of the queue. It is closed by Close.
func (q *ReminderQueue) Events() <-chan challenge.ReminderEvent {
	return q.ch
}

// Close stops accepting events. Buffered events stay readable.
func (q *ReminderQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Len returns the number of buffered events.
func (q *ReminderQueue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *ReminderQueue) Cap() int { return cap(q.ch) }

// Published returns how many events were accepted.
func (q *ReminderQueue) Published() int64 { return q.published.Load() }

// Dropped returns how many events were rejected.
func (q *ReminderQueue) Dropped() int64 { return q.dropped.Load() }
