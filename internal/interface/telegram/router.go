// Package telegram implements the Telegram bot interface for the challenge hub.
package telegram

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/createathon/challenge-hub/internal/interface/telegram/handler"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Routes commands, button callbacks and free text to handlers.
// ══════════════════════════════════════════════════════════════════════════════

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Logger *slog.Logger

	// Debug enables debug logging for routing decisions.
	Debug bool
}

// Router routes Telegram updates to handlers.
type Router struct {
	config RouterConfig
	logger *slog.Logger

	mu sync.RWMutex

	// commands by name without the leading "/"
	commands map[string]handler.Handler

	// callbacks by exact data, then by prefix
	callbacks        map[string]handler.Handler
	callbackPrefixes map[string]handler.Handler

	text handler.Handler

	defaultCommand handler.Handler
}

// NewRouter creates a new router.
func NewRouter(config RouterConfig) *Router {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Router{
		config:           config,
		logger:           config.Logger.With("component", "telegram_router"),
		commands:         make(map[string]handler.Handler),
		callbacks:        make(map[string]handler.Handler),
		callbackPrefixes: make(map[string]handler.Handler),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Registration
// ─────────────────────────────────────────────────────────────────────────────

// RegisterCommand registers a handler for a command given without "/".
func (r *Router) RegisterCommand(command string, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[strings.ToLower(command)] = h

	if r.config.Debug {
		r.logger.Debug("registered command handler", "command", command)
	}
}

// RegisterCallback registers a handler for exact callback data.
func (r *Router) RegisterCallback(data string, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[data] = h
}

// RegisterCallbackPrefix registers a handler for callback data starting
// with prefix. The longest matching prefix wins.
func (r *Router) RegisterCallbackPrefix(prefix string, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbackPrefixes[prefix] = h
}

// SetTextHandler sets the handler for non-command messages.
func (r *Router) SetTextHandler(h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = h
}

// SetDefaultCommandHandler sets the handler for unknown commands.
func (r *Router) SetDefaultCommandHandler(h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultCommand = h
}

// ─────────────────────────────────────────────────────────────────────────────
// Routing
// ─────────────────────────────────────────────────────────────────────────────

// HandleCommand routes a command. Unknown commands go to the default
// handler, or produce an empty response when none is set.
func (r *Router) HandleCommand(ctx context.Context, command string, req handler.Request) (handler.Response, error) {
	r.mu.RLock()
	h, ok := r.commands[strings.ToLower(command)]
	if !ok {
		h = r.defaultCommand
	}
	r.mu.RUnlock()

	if h == nil {
		if r.config.Debug {
			r.logger.Debug("no handler for command", "command", command)
		}
		return handler.Response{}, nil
	}
	return h.Handle(ctx, req)
}

// HandleCallback routes button presses. Unknown data is ignored.
func (r *Router) HandleCallback(ctx context.Context, req handler.Request) (handler.Response, error) {
	h := r.matchCallback(req.Data)
	if h == nil {
		if r.config.Debug {
			r.logger.Debug("no handler for callback", "data", req.Data)
		}
		return handler.Response{}, nil
	}
	return h.Handle(ctx, req)
}

func (r *Router) matchCallback(data string) handler.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.callbacks[data]; ok {
		return h
	}

	var (
		matched string
		found   handler.Handler
	)
	for prefix, h := range r.callbackPrefixes {
		if strings.HasPrefix(data, prefix) && len(prefix) > len(matched) {
			matched, found = prefix, h
		}
	}
	return found
}

// HandleText routes free text.
func (r *Router) HandleText(ctx context.Context, req handler.Request) (handler.Response, error) {
	r.mu.RLock()
	h := r.text
	r.mu.RUnlock()

	if h == nil {
		return handler.Response{}, nil
	}
	return h.Handle(ctx, req)
}

// ─────────────────────────────────────────────────────────────────────────────
// Introspection
// ─────────────────────────────────────────────────────────────────────────────

// Commands returns registered command names, sorted.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Callbacks returns registered exact callback data values, sorted.
func (r *Router) Callbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data := make([]string, 0, len(r.callbacks))
	for d := range r.callbacks {
		data = append(data, d)
	}
	slices.Sort(data)
	return data
}
