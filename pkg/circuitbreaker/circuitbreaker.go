// Package circuitbreaker stops hammering an upstream that keeps failing.
// The YouTube client wraps every statistics lookup in one so a quota outage
// turns into fast ErrCircuitOpen failures instead of stacked timeouts.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen rejects calls while the breaker cools down.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects calls beyond the half-open probe budget.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Settings configures a breaker.
type Settings struct {
	Name string
	// FailureThreshold consecutive failures open the circuit. Default 5.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it. Default 2.
	SuccessThreshold int
	// Cooldown is the open period before probes are let through. Default 30s.
	Cooldown time.Duration
	// MaxProbes bounds concurrent half-open calls. Default 1.
	MaxProbes int
	// OnStateChange observes transitions. Called with the lock held; keep it cheap.
	OnStateChange func(name string, from, to State)
	// IsFailure decides which errors count. Default: every non-nil error.
	IsFailure func(error) bool
	// Now is the clock. Default time.Now.
	Now func() time.Time
}

func defaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
		MaxProbes:        1,
		Now:              time.Now,
	}
}

// Option tweaks Settings.
type Option func(*Settings)

func WithFailureThreshold(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.FailureThreshold = n
		}
	}
}

func WithSuccessThreshold(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.SuccessThreshold = n
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(s *Settings) {
		if d > 0 {
			s.Cooldown = d
		}
	}
}

func WithMaxProbes(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.MaxProbes = n
		}
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(s *Settings) { s.OnStateChange = fn }
}

func WithIsFailure(fn func(error) bool) Option {
	return func(s *Settings) { s.IsFailure = fn }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Settings) {
		if now != nil {
			s.Now = now
		}
	}
}

// Counts is a snapshot of the breaker's bookkeeping.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
	Rejected             int
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	settings Settings

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	s := defaultSettings(name)
	for _, opt := range opts {
		opt(&s)
	}
	return &CircuitBreaker{settings: s, state: StateClosed}
}

// Execute runs fn unless the breaker rejects it, then records the outcome.
// Rejections are not counted as failures.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// ExecuteValue is Execute for calls that return a value.
func ExecuteValue[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsRejection reports whether err came from the breaker itself.
func IsRejection(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.settings.Now().Sub(cb.openedAt) < cb.settings.Cooldown {
			cb.counts.Rejected++
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
		return nil
	case StateHalfOpen:
		if cb.probes >= cb.settings.MaxProbes {
			cb.counts.Rejected++
			return ErrTooManyRequests
		}
		cb.probes++
		return nil
	}
	return ErrCircuitOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++

	failed := err != nil
	if failed && cb.settings.IsFailure != nil {
		failed = cb.settings.IsFailure(err)
	}

	if !failed {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0
		if cb.state == StateHalfOpen {
			if cb.probes > 0 {
				cb.probes--
			}
			if cb.counts.ConsecutiveSuccesses >= cb.settings.SuccessThreshold {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	switch cb.state {
	case StateClosed:
		if cb.counts.ConsecutiveFailures >= cb.settings.FailureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.settings.Now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.probes = 0
	if cb.settings.OnStateChange != nil {
		cb.settings.OnStateChange(cb.settings.Name, from, to)
	}
}

// State returns the current state without advancing it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Reset forces the breaker closed and clears counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.counts = Counts{}
	cb.probes = 0
}

func (cb *CircuitBreaker) Name() string {
	return cb.settings.Name
}

// YouTubeBreaker trips fast: a spent quota stays spent until the next day.
func YouTubeBreaker(onStateChange func(name string, from, to State), opts ...Option) *CircuitBreaker {
	base := []Option{
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithCooldown(60 * time.Second),
		WithMaxProbes(1),
		WithOnStateChange(onStateChange),
	}
	return New("youtube-api", append(base, opts...)...)
}

// TelegramBreaker is more tolerant; the Bot API is usually stable.
func TelegramBreaker(onStateChange func(name string, from, to State), opts ...Option) *CircuitBreaker {
	base := []Option{
		WithFailureThreshold(5),
		WithSuccessThreshold(1),
		WithCooldown(30 * time.Second),
		WithMaxProbes(2),
		WithOnStateChange(onStateChange),
	}
	return New("telegram-api", append(base, opts...)...)
}
