package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/createathon/challenge-hub/internal/application/engine"
	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/infrastructure/external/telegram"
	"github.com/createathon/challenge-hub/internal/interface/telegram/handler"
	"github.com/createathon/challenge-hub/internal/interface/telegram/middleware"
	"github.com/createathon/challenge-hub/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	Logger *slog.Logger

	// Debug enables verbose routing logs.
	Debug bool

	// MaxConcurrentUpdates bounds updates processed at once.
	MaxConcurrentUpdates int

	// GracefulShutdownTimeout bounds how long Stop waits for handlers.
	GracefulShutdownTimeout time.Duration

	// LeaderboardLimit is how many rows /leaderboard shows.
	LeaderboardLimit int

	// Reward is sent on the first eligible evaluation.
	Reward handler.Reward

	RateLimit middleware.RateLimitConfig

	// Metrics may be nil.
	Metrics *middleware.Metrics
}

// DefaultBotConfig returns default bot configuration.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		MaxConcurrentUpdates:    16,
		GracefulShutdownTimeout: 10 * time.Second,
		LeaderboardLimit:        handler.DefaultLeaderboardLimit,
		RateLimit:               middleware.DefaultRateLimitConfig(),
	}
}

// API is the part of the Bot API client the bot uses.
type API interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	StartPolling(ctx context.Context, handler telegram.UpdateHandler) error
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	SendAnimation(ctx context.Context, chatID int64, animation, caption string) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the main Telegram bot instance.
type Bot struct {
	config BotConfig
	api    API
	router *Router
	logger *slog.Logger

	rateLimiter *middleware.RateLimiter
	recovery    *middleware.RecoveryMiddleware
	metrics     *middleware.Metrics

	running   bool
	runningMu sync.RWMutex

	updateSem chan struct{}
	wg        sync.WaitGroup

	stats BotStats
}

// BotStats contains bot runtime statistics.
type BotStats struct {
	mu              sync.RWMutex
	StartedAt       time.Time
	UpdatesReceived int64
	UpdatesHandled  int64
	ErrorsCount     int64
	RateLimited     int64
	CommandsCount   map[string]int64
}

// StatsSnapshot is a copy of BotStats safe to read.
type StatsSnapshot struct {
	StartedAt       time.Time        `json:"started_at"`
	Running         bool             `json:"running"`
	UpdatesReceived int64            `json:"updates_received"`
	UpdatesHandled  int64            `json:"updates_handled"`
	ErrorsCount     int64            `json:"errors_count"`
	RateLimited     int64            `json:"rate_limited"`
	CommandsCount   map[string]int64 `json:"commands_count"`
}

// NewBot wires the handlers for every command and button.
func NewBot(api API, eng *engine.Engine, config BotConfig) (*Bot, error) {
	if api == nil {
		return nil, errors.New("telegram API client is required")
	}
	if eng == nil {
		return nil, errors.New("engine is required")
	}

	defaults := DefaultBotConfig()
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxConcurrentUpdates <= 0 {
		config.MaxConcurrentUpdates = defaults.MaxConcurrentUpdates
	}
	if config.GracefulShutdownTimeout <= 0 {
		config.GracefulShutdownTimeout = defaults.GracefulShutdownTimeout
	}

	days := eng.ChallengeLength()

	router := NewRouter(RouterConfig{Logger: config.Logger, Debug: config.Debug})

	challengeHandler := handler.NewChallengeHandler(eng)
	leaderboardHandler := handler.NewLeaderboardHandler(eng, config.LeaderboardLimit)
	helpHandler := handler.NewHelpHandler(days)

	router.RegisterCommand("start", handler.NewStartHandler(eng))
	router.RegisterCommand("start_challenge", challengeHandler)
	router.RegisterCommand("submit", handler.NewSubmitHandler(eng))
	router.RegisterCommand("progress", handler.NewProgressHandler(eng))
	router.RegisterCommand("evaluate_challenge", handler.NewEvaluateHandler(eng, config.Reward))
	router.RegisterCommand("leaderboard", leaderboardHandler)
	router.RegisterCommand("help", helpHandler)
	router.SetDefaultCommandHandler(helpHandler)

	router.RegisterCallback(presenter.CallbackGuide, handler.NewTipsHandler(presenter.ContentCreationGuide, nil))
	router.RegisterCallback(presenter.CallbackCreatorTips, handler.NewTipsHandler(presenter.CreatorTips2025, nil))
	router.RegisterCallback(presenter.CallbackChallenge, challengeHandler)
	router.RegisterCallback(presenter.CallbackLeaderboard, leaderboardHandler)
	router.RegisterCallback(presenter.CallbackMenu, handler.NewMenuHandler(days))

	router.SetTextHandler(handler.NewProfileHandler(eng))

	return &Bot{
		config:      config,
		api:         api,
		router:      router,
		logger:      config.Logger.With("component", "telegram_bot"),
		rateLimiter: middleware.NewRateLimiter(config.RateLimit),
		recovery:    middleware.NewRecoveryMiddleware(middleware.RecoveryConfig{EnableStackTrace: true, Logger: config.Logger}),
		metrics:     config.Metrics,
		updateSem:   make(chan struct{}, config.MaxConcurrentUpdates),
		stats: BotStats{
			CommandsCount: make(map[string]int64),
		},
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Start verifies the token and long-polls until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.runningMu.Unlock()

	b.stats.mu.Lock()
	b.stats.StartedAt = time.Now()
	b.stats.mu.Unlock()

	defer func() {
		b.runningMu.Lock()
		b.running = false
		b.runningMu.Unlock()
	}()

	if err := b.verifyToken(ctx); err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}

	go b.rateLimiter.Run(ctx)

	b.logger.Info("starting telegram bot", "commands", b.router.Commands())
	return b.api.StartPolling(ctx, b.HandleUpdate)
}

// Stop waits for in-flight handlers. Cancel the context passed to Start first.
func (b *Bot) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
		return nil
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns whether the bot is currently polling.
func (b *Bot) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

func (b *Bot) verifyToken(ctx context.Context) error {
	me, err := b.api.GetMe(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("bot verified", "id", me.ID, "username", me.Username)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// HandleUpdate processes a single Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update *telegram.Update) error {
	select {
	case b.updateSem <- struct{}{}:
		defer func() { <-b.updateSem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	b.wg.Add(1)
	defer b.wg.Done()

	b.stats.mu.Lock()
	b.stats.UpdatesReceived++
	b.stats.mu.Unlock()

	var err error
	switch {
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.handleCallbackQuery(ctx, update.CallbackQuery)
	default:
		return nil
	}

	b.stats.mu.Lock()
	if err != nil {
		b.stats.ErrorsCount++
	} else {
		b.stats.UpdatesHandled++
	}
	b.stats.mu.Unlock()

	return err
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil || msg.Chat == nil || msg.From.IsBot {
		return nil
	}

	started := time.Now()
	userID := msg.From.ID
	chatID := msg.Chat.ID
	command := telegram.ExtractCommand(msg)

	if command == "" && msg.Text == "" {
		return nil
	}

	route := "text"
	if command != "" {
		route = "command:" + command
		b.stats.mu.Lock()
		b.stats.CommandsCount[command]++
		b.stats.mu.Unlock()
	}

	if limited := b.rateLimiter.Check(userID); !limited.Allowed {
		b.onRateLimited(route, started)
		_, err := b.api.SendMessage(ctx, telegram.SendMessageParams{ChatID: chatID, Text: presenter.RateLimited(limited.RetryAfter)})
		return err
	}

	req := handler.Request{
		UserID:    challenge.UserID(userID),
		ChatID:    chatID,
		MessageID: msg.MessageID,
		FirstName: msg.From.FirstName,
		Text:      msg.Text,
	}

	var resp handler.Response
	result := b.recovery.Recover(ctx, userID, route, func() error {
		var err error
		if command != "" {
			req.Args = telegram.ExtractCommandArgs(msg)
			resp, err = b.router.HandleCommand(ctx, command, req)
		} else {
			resp, err = b.router.HandleText(ctx, req)
		}
		return err
	})

	if result.Err != nil {
		b.observe(route, result, started)
		b.logger.Error("handler failed", "route", route, "user_id", userID, "error", result.Err)
		_, sendErr := b.api.SendMessage(ctx, telegram.SendMessageParams{ChatID: chatID, Text: presenter.InternalError()})
		return errors.Join(result.Err, sendErr)
	}

	err := b.send(ctx, userID, chatID, 0, resp)
	b.observe(route, middleware.RecoveryResult{Err: err}, started)
	return err
}

func (b *Bot) handleCallbackQuery(ctx context.Context, cq *telegram.CallbackQuery) error {
	if cq.From == nil {
		return nil
	}

	started := time.Now()
	userID := cq.From.ID
	route := "callback:" + cq.Data

	var chatID, messageID int64
	if cq.Message != nil && cq.Message.Chat != nil {
		chatID = cq.Message.Chat.ID
		messageID = cq.Message.MessageID
	}
	if chatID == 0 {
		chatID = userID
	}

	if limited := b.rateLimiter.Check(userID); !limited.Allowed {
		b.onRateLimited(route, started)
		return b.api.AnswerCallbackQuery(ctx, cq.ID, presenter.RateLimited(limited.RetryAfter))
	}

	// Answer first so the button stops spinning even if the handler is slow.
	if err := b.api.AnswerCallbackQuery(ctx, cq.ID, ""); err != nil {
		b.logger.Warn("failed to answer callback query", "error", err)
	}

	req := handler.Request{
		UserID:     challenge.UserID(userID),
		ChatID:     chatID,
		MessageID:  messageID,
		FirstName:  cq.From.FirstName,
		Data:       cq.Data,
		IsCallback: true,
	}

	var resp handler.Response
	result := b.recovery.Recover(ctx, userID, route, func() error {
		var err error
		resp, err = b.router.HandleCallback(ctx, req)
		return err
	})

	if result.Err != nil {
		b.observe(route, result, started)
		b.logger.Error("callback handler failed", "data", cq.Data, "user_id", userID, "error", result.Err)
		_, sendErr := b.api.SendMessage(ctx, telegram.SendMessageParams{ChatID: chatID, Text: presenter.InternalError()})
		return errors.Join(result.Err, sendErr)
	}

	err := b.send(ctx, userID, chatID, messageID, resp)
	b.observe(route, middleware.RecoveryResult{Err: err}, started)
	return err
}

// send delivers a handler response: text (sent or edited), then animation.
func (b *Bot) send(ctx context.Context, userID, chatID, messageID int64, resp handler.Response) error {
	err := b.deliver(ctx, chatID, messageID, resp)
	if err != nil && resp.Reward {
		// The engine has already recorded the reward as shown.
		b.logger.Error("reward not delivered", "user_id", userID, "chat_id", chatID, "error", err)
	}
	return err
}

func (b *Bot) deliver(ctx context.Context, chatID, messageID int64, resp handler.Response) error {
	if resp.Text != "" {
		markup := convertKeyboard(resp.Keyboard)
		if resp.EditInPlace && messageID != 0 {
			if err := b.api.EditMessageText(ctx, chatID, messageID, resp.Text, resp.ParseMode, markup); err != nil {
				return err
			}
		} else {
			_, err := b.api.SendMessage(ctx, telegram.SendMessageParams{
				ChatID:            chatID,
				Text:              resp.Text,
				ParseMode:         resp.ParseMode,
				DisableWebPreview: true,
				ReplyMarkup:       markup,
			})
			if err != nil {
				return err
			}
		}
	}

	if resp.Animation != nil {
		if _, err := b.api.SendAnimation(ctx, chatID, resp.Animation.URL, resp.Animation.Caption); err != nil {
			return fmt.Errorf("send reward animation: %w", err)
		}
	}
	return nil
}

func (b *Bot) observe(route string, result middleware.RecoveryResult, started time.Time) {
	outcome := middleware.OutcomeOK
	switch {
	case result.Recovered:
		outcome = middleware.OutcomePanic
	case result.Err != nil:
		outcome = middleware.OutcomeError
	}
	b.metrics.Observe(route, outcome, started)
}

func (b *Bot) onRateLimited(route string, started time.Time) {
	b.stats.mu.Lock()
	b.stats.RateLimited++
	b.stats.mu.Unlock()
	b.metrics.Observe(route, middleware.OutcomeRateLimited, started)
}

// convertKeyboard maps the presenter keyboard onto Bot API markup.
func convertKeyboard(kb *presenter.InlineKeyboard) *telegram.InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}
	builder := telegram.NewKeyboard()
	for _, row := range kb.Rows {
		buttons := make([]telegram.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				buttons = append(buttons, telegram.URLButton(btn.Text, btn.URL))
			} else {
				buttons = append(buttons, telegram.Button(btn.Text, btn.CallbackData))
			}
		}
		builder.Row(buttons...)
	}
	return builder.Build()
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// Stats returns a snapshot of bot statistics.
func (b *Bot) Stats() StatsSnapshot {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	commands := make(map[string]int64, len(b.stats.CommandsCount))
	for k, v := range b.stats.CommandsCount {
		commands[k] = v
	}
	return StatsSnapshot{
		StartedAt:       b.stats.StartedAt,
		Running:         b.IsRunning(),
		UpdatesReceived: b.stats.UpdatesReceived,
		UpdatesHandled:  b.stats.UpdatesHandled,
		ErrorsCount:     b.stats.ErrorsCount,
		RateLimited:     b.stats.RateLimited,
		CommandsCount:   commands,
	}
}

// Router returns the router for extra registrations.
func (b *Bot) Router() *Router {
	return b.router
}
