package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// A panicking handler must not take the polling loop down with it.
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryConfig holds configuration for panic recovery.
type RecoveryConfig struct {
	// EnableStackTrace captures the stack of the panicking goroutine.
	EnableStackTrace bool

	// OnPanic is called after a panic is recovered.
	OnPanic func(ctx context.Context, info *PanicInfo)

	Logger *slog.Logger
}

// DefaultRecoveryConfig returns sensible defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		EnableStackTrace: true,
	}
}

// PanicInfo describes a recovered panic.
type PanicInfo struct {
	Error      error
	PanicValue any
	StackTrace string
	Timestamp  time.Time
	UserID     int64
	Route      string
}

// String formats the panic for logs.
func (p *PanicInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "panic in %s (user %d): %v", p.Route, p.UserID, p.PanicValue)
	if p.StackTrace != "" {
		sb.WriteString("\n")
		sb.WriteString(p.StackTrace)
	}
	return sb.String()
}

// RecoveryMiddleware converts handler panics into errors.
type RecoveryMiddleware struct {
	config RecoveryConfig
	logger *slog.Logger
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &RecoveryMiddleware{
		config: config,
		logger: config.Logger.With("component", "telegram_recovery"),
	}
}

// RecoveryResult is the outcome of a guarded call.
type RecoveryResult struct {
	// Recovered is true if the handler panicked.
	Recovered bool

	// Err is the handler's error, or the panic converted to an error.
	Err error

	PanicInfo *PanicInfo
}

// Recover runs fn and recovers from any panic it raises.
func (m *RecoveryMiddleware) Recover(ctx context.Context, userID int64, route string, fn func() error) RecoveryResult {
	var result RecoveryResult

	func() {
		defer func() {
			if r := recover(); r != nil {
				info := m.capture(r, userID, route)
				result = RecoveryResult{Recovered: true, Err: info.Error, PanicInfo: info}
			}
		}()
		result.Err = fn()
	}()

	if result.Recovered {
		m.logger.Error("panic recovered",
			"route", route,
			"user_id", userID,
			"panic", fmt.Sprint(result.PanicInfo.PanicValue),
			"stack", result.PanicInfo.StackTrace,
		)
		if m.config.OnPanic != nil {
			m.config.OnPanic(ctx, result.PanicInfo)
		}
	}
	return result
}

func (m *RecoveryMiddleware) capture(value any, userID int64, route string) *PanicInfo {
	info := &PanicInfo{
		Error:      toError(value),
		PanicValue: value,
		Timestamp:  time.Now(),
		UserID:     userID,
		Route:      route,
	}
	if m.config.EnableStackTrace {
		info.StackTrace = string(debug.Stack())
	}
	return info
}

func toError(value any) error {
	if err, ok := value.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", value)
}
