// Package retry runs calls to flaky upstreams (YouTube Data API, Telegram Bot
// API) with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// RetryableError marks an error as transient.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so the default policy retries it. Nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err was wrapped with Retryable.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// PermanentError stops the loop immediately, even when RetryIf would say yes.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so it is never retried. Nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var target *PermanentError
	return errors.As(err, &target)
}

// Policy describes how many times and how far apart attempts are made.
type Policy struct {
	// MaxAttempts counts the first call too. Default 3.
	MaxAttempts int
	// BaseDelay is the pause before the second attempt. Default 100ms.
	BaseDelay time.Duration
	// MaxDelay caps a single pause. Default 30s.
	MaxDelay time.Duration
	// Multiplier grows the pause per attempt. Default 2.
	Multiplier float64
	// Jitter is the +/- fraction applied to each pause, 0..1. Default 0.1.
	Jitter float64
	// RetryIf overrides the default "only RetryableError" classification.
	RetryIf func(error) bool
	// OnRetry observes each scheduled retry.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns the baseline policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// Option tweaks a Policy.
type Option func(*Policy)

func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.MaxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.BaseDelay = d
		}
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.MaxDelay = d
		}
	}
}

func WithMultiplier(m float64) Option {
	return func(p *Policy) {
		if m >= 1.0 {
			p.Multiplier = m
		}
	}
}

// WithJitter ignores values outside 0..1.
func WithJitter(j float64) Option {
	return func(p *Policy) {
		if j >= 0 && j <= 1.0 {
			p.Jitter = j
		}
	}
}

func WithRetryIf(fn func(error) bool) Option {
	return func(p *Policy) { p.RetryIf = fn }
}

func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// Retrier executes operations under a fixed Policy. Safe for concurrent use.
type Retrier struct {
	policy Policy
}

// New builds a Retrier from DefaultPolicy plus opts.
func New(opts ...Option) *Retrier {
	p := DefaultPolicy()
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{policy: p}
}

// Policy returns a copy of the effective policy.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do calls op until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. Returned errors have retry markers stripped.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = unwrapMarker(err)

		if IsPermanent(err) || !r.shouldRetry(err) {
			return lastErr
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.Backoff(attempt)
		if r.policy.OnRetry != nil {
			r.policy.OnRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

func (r *Retrier) shouldRetry(err error) bool {
	if r.policy.RetryIf != nil {
		return r.policy.RetryIf(err)
	}
	return IsRetryable(err)
}

// Backoff returns the pause after the given (1-based) failed attempt.
func (r *Retrier) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(r.policy.BaseDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if d > float64(r.policy.MaxDelay) {
		d = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter > 0 {
		d += d * r.policy.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func unwrapMarker(err error) error {
	var re *RetryableError
	if errors.As(err, &re) && re == err {
		return re.Err
	}
	var pe *PermanentError
	if errors.As(err, &pe) && pe == err {
		return pe.Err
	}
	return err
}

// Do is shorthand for New(opts...).Do.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// DoValue retries an operation that yields a value.
func DoValue[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// YouTubeRetrier is tuned for the Data API quota: few attempts, long pauses.
func YouTubeRetrier() *Retrier {
	return New(
		WithMaxAttempts(3),
		WithBaseDelay(500*time.Millisecond),
		WithMaxDelay(10*time.Second),
		WithMultiplier(2.0),
		WithJitter(0.2),
	)
}

// TelegramRetrier is tuned for Bot API hiccups.
func TelegramRetrier() *Retrier {
	return New(
		WithMaxAttempts(5),
		WithBaseDelay(100*time.Millisecond),
		WithMaxDelay(5*time.Second),
		WithMultiplier(1.5),
		WithJitter(0.1),
	)
}

// DatabaseRetrier covers a database that is still starting up and
// transactions aborted by the server. opts are applied on top.
func DatabaseRetrier(opts ...Option) *Retrier {
	base := []Option{
		WithMaxAttempts(5),
		WithBaseDelay(200 * time.Millisecond),
		WithMaxDelay(2 * time.Second),
		WithMultiplier(2.0),
		WithJitter(0.05),
	}
	return New(append(base, opts...)...)
}
