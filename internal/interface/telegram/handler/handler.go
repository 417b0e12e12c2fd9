// Package handler contains Telegram command and callback handlers.
// Each handler follows the pattern: parse request → call the engine →
// format a Response. Handlers never call the Bot API; the bot sends what
// they return.
package handler

import (
	"context"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE
// ══════════════════════════════════════════════════════════════════════════════

// Request carries everything a handler may need from an update.
type Request struct {
	UserID    challenge.UserID
	ChatID    int64
	MessageID int64

	// FirstName is the sender's Telegram first name.
	FirstName string

	// Args is the text after the command, trimmed.
	Args string

	// Text is the full message text for non-command input.
	Text string

	// Data is the callback data for button presses.
	Data string

	// IsCallback is true when the request comes from an inline button.
	IsCallback bool
}

// Response is what the bot should send back.
type Response struct {
	Text      string
	ParseMode string
	Keyboard  *presenter.InlineKeyboard

	// Animation, if set, is sent after the text.
	Animation *Animation

	// Reward marks the single response that carries the first eligible
	// verdict. It is not produced again, so a failed send loses it.
	Reward bool

	// EditInPlace asks the bot to edit the message the button belongs to.
	EditInPlace bool
}

// Animation is a GIF sent by URL.
type Animation struct {
	URL     string
	Caption string
}

// IsEmpty reports whether there is nothing to send.
func (r Response) IsEmpty() bool {
	return r.Text == "" && r.Animation == nil
}

// htmlReply builds the common HTML response.
func htmlReply(text string, kb *presenter.InlineKeyboard) Response {
	return Response{Text: text, ParseMode: presenter.ParseModeHTML, Keyboard: kb}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Handler handles one kind of command, callback or text input.
type Handler interface {
	Handle(ctx context.Context, req Request) (Response, error)
}

// Func adapts a function to Handler.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Handle(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// replyError turns expected errors into a reply. Unexpected errors are
// returned for the bot to log.
func replyError(err error, challengeDays int) (Response, error) {
	if text, ok := presenter.ErrorText(err, challengeDays); ok {
		return htmlReply(text, nil), nil
	}
	return Response{}, err
}
