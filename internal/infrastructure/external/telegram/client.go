// Package telegram is a small Telegram Bot API client: the handful of methods
// the challenge bot needs plus a long-polling loop.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/createathon/challenge-hub/internal/domain/shared"
	"github.com/createathon/challenge-hub/pkg/circuitbreaker"
	"github.com/createathon/challenge-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

const defaultBaseURL = "https://api.telegram.org"

type ClientConfig struct {
	Token   string
	BaseURL string
	// Timeout must exceed the long-polling timeout plus network latency.
	Timeout time.Duration
	// PollTimeout is the getUpdates long-poll window in seconds.
	PollTimeout int
	// PollBackoff is the pause after a failed getUpdates.
	PollBackoff time.Duration
	Retrier     *retry.Retrier
	// Breaker wraps the whole retry loop. Only outages count as failures.
	Breaker    *circuitbreaker.CircuitBreaker
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:       token,
		BaseURL:     defaultBaseURL,
		Timeout:     60 * time.Second,
		PollTimeout: 30,
		PollBackoff: 5 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger

	offsetMu sync.Mutex
	offset   int64
}

func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = 30
	}
	if config.PollBackoff <= 0 {
		config.PollBackoff = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	retrier := config.Retrier
	if retrier == nil {
		retrier = retry.TelegramRetrier()
	}
	logger := config.Logger.With("component", "telegram_client")
	breaker := config.Breaker
	if breaker == nil {
		breaker = circuitbreaker.TelegramBreaker(
			func(name string, from, to circuitbreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
			circuitbreaker.WithIsFailure(IsOutage),
		)
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		retrier:    retrier,
		breaker:    breaker,
		logger:     logger,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// METHODS
// ══════════════════════════════════════════════════════════════════════════════

type SendMessageParams struct {
	ChatID              int64
	Text                string
	ParseMode           string
	DisableNotification bool
	DisableWebPreview   bool
	ReplyMarkup         *InlineKeyboardMarkup
}

func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	body := map[string]any{
		"chat_id": params.ChatID,
		"text":    params.Text,
	}
	if params.ParseMode != "" {
		body["parse_mode"] = params.ParseMode
	}
	if params.DisableNotification {
		body["disable_notification"] = true
	}
	if params.DisableWebPreview {
		body["link_preview_options"] = map[string]any{"is_disabled": true}
	}
	if params.ReplyMarkup != nil {
		body["reply_markup"] = params.ReplyMarkup
	}

	var msg Message
	if err := c.callAPI(ctx, "sendMessage", body, &msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &msg, nil
}

// SendText sends plain text with no markup.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) (*Message, error) {
	return c.SendMessage(ctx, SendMessageParams{ChatID: chatID, Text: text})
}

// SendAnimation sends a GIF by URL or file_id with an optional caption.
func (c *Client) SendAnimation(ctx context.Context, chatID int64, animation, caption string) (*Message, error) {
	body := map[string]any{
		"chat_id":   chatID,
		"animation": animation,
	}
	if caption != "" {
		body["caption"] = caption
	}

	var msg Message
	if err := c.callAPI(ctx, "sendAnimation", body, &msg); err != nil {
		return nil, fmt.Errorf("send animation: %w", err)
	}
	return &msg, nil
}

// EditMessageText replaces the text and keyboard of a message the bot sent.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string, markup *InlineKeyboardMarkup) error {
	body := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if parseMode != "" {
		body["parse_mode"] = parseMode
	}
	if markup != nil {
		body["reply_markup"] = markup
	}

	var raw json.RawMessage
	if err := c.callAPI(ctx, "editMessageText", body, &raw); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	body := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		body["text"] = text
	}
	var ok bool
	if err := c.callAPI(ctx, "answerCallbackQuery", body, &ok); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	return nil
}

// GetUpdates long-polls for at most limit updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, limit, timeout int) ([]Update, error) {
	body := map[string]any{
		"timeout":         timeout,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if offset > 0 {
		body["offset"] = offset
	}
	if limit > 0 {
		body["limit"] = limit
	}

	var updates []Update
	if err := c.callAPI(ctx, "getUpdates", body, &updates); err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}
	return updates, nil
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.callAPI(ctx, "getMe", nil, &me); err != nil {
		return nil, fmt.Errorf("get me: %w", err)
	}
	return &me, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LONG POLLING
// ══════════════════════════════════════════════════════════════════════════════

// UpdateHandler processes one update. Errors are logged, never fatal.
type UpdateHandler func(ctx context.Context, update *Update) error

// StartPolling blocks until ctx is cancelled. Updates are handled in order;
// the offset advances before the handler runs so a crashing update is not
// redelivered forever.
func (c *Client) StartPolling(ctx context.Context, handler UpdateHandler) error {
	c.logger.Info("starting long polling")

	for {
		if ctx.Err() != nil {
			c.logger.Info("stopping long polling")
			return nil
		}

		updates, err := c.GetUpdates(ctx, c.Offset(), 100, c.config.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("failed to get updates", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.config.PollBackoff):
			}
			continue
		}

		for i := range updates {
			u := &updates[i]
			c.advance(u.UpdateID)
			if err := handler(ctx, u); err != nil {
				c.logger.Error("failed to handle update", "update_id", u.UpdateID, "error", err)
			}
		}
	}
}

// Offset is the next update id to request.
func (c *Client) Offset() int64 {
	c.offsetMu.Lock()
	defer c.offsetMu.Unlock()
	return c.offset
}

func (c *Client) advance(updateID int64) {
	c.offsetMu.Lock()
	defer c.offsetMu.Unlock()
	if updateID >= c.offset {
		c.offset = updateID + 1
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSPORT
// ══════════════════════════════════════════════════════════════════════════════

// callAPI retries 429, 5xx and network errors. A retry_after hint from
// Telegram is honoured before the retrier's own backoff. While the breaker
// is open calls fail fast without touching the network.
func (c *Client) callAPI(ctx context.Context, method string, body map[string]any, result any) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.callWithRetry(ctx, method, body, result)
	})
	if circuitbreaker.IsRejection(err) {
		return fmt.Errorf("%w: %w", shared.ErrTelegramAPIFailed, err)
	}
	return err
}

func (c *Client) callWithRetry(ctx context.Context, method string, body map[string]any, result any) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		err := c.doCall(ctx, method, body, result)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			select {
			case <-ctx.Done():
				return retry.Permanent(err)
			case <-time.After(time.Duration(apiErr.RetryAfter) * time.Second):
			}
		}

		if isRetryable(err) {
			return retry.Retryable(err)
		}
		return err
	})
}

func (c *Client) doCall(ctx context.Context, method string, body map[string]any, result any) error {
	url := c.config.BaseURL + "/bot" + c.config.Token + "/" + method

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrTelegramAPIFailed, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &APIError{Code: resp.StatusCode, Description: "undecodable response: " + err.Error()}
	}

	if !envelope.OK {
		apiErr := &APIError{Code: envelope.ErrorCode, Description: envelope.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if envelope.Parameters != nil {
			apiErr.RetryAfter = envelope.Parameters.RetryAfter
		}
		return apiErr
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError is a non-OK Bot API response.
type APIError struct {
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Unwrap lets errors.Is(err, shared.ErrTelegramAPIFailed) match.
func (e *APIError) Unwrap() error {
	return shared.ErrTelegramAPIFailed
}

// IsBlocked reports that the user blocked the bot or the chat is gone.
// Such deliveries should not be retried.
func IsBlocked(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusForbidden
}

// IsOutage decides what the breaker counts: server errors, rate limits and
// network failures. Blocked users and bad requests say nothing about the
// API's health, and neither does our own cancellation.
func IsOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return isRetryable(err)
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, shared.ErrTelegramAPIFailed)
}
