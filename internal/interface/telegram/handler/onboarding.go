package handler

import (
	"context"
	"errors"

	"github.com/createathon/challenge-hub/internal/application/engine"
	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// START HANDLER
// /start: registers the sender and opens the main menu.
// ══════════════════════════════════════════════════════════════════════════════

type StartHandler struct {
	engine *engine.Engine
}

func NewStartHandler(e *engine.Engine) *StartHandler {
	return &StartHandler{engine: e}
}

// Handle registers the user under their first name. Registration is
// idempotent, so a repeated /start keeps existing progress.
func (h *StartHandler) Handle(ctx context.Context, req Request) (Response, error) {
	user, err := h.engine.OnStart(ctx, req.UserID, req.FirstName)
	if err != nil {
		return replyError(err, h.engine.ChallengeLength())
	}
	return htmlReply(
		presenter.Welcome(user.DisplayName),
		presenter.MainMenuKeyboard(h.engine.ChallengeLength()),
	), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MENU HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// MenuHandler returns to the main menu, editing the pressed message.
type MenuHandler struct {
	challengeDays int
}

func NewMenuHandler(challengeDays int) *MenuHandler {
	return &MenuHandler{challengeDays: challengeDays}
}

func (h *MenuHandler) Handle(_ context.Context, req Request) (Response, error) {
	resp := htmlReply(presenter.MainMenu(), presenter.MainMenuKeyboard(h.challengeDays))
	resp.EditInPlace = req.IsCallback && req.MessageID != 0
	return resp, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLER
// Free text: first the social handle, then the most viral content.
// ══════════════════════════════════════════════════════════════════════════════

type ProfileHandler struct {
	engine *engine.Engine
}

func NewProfileHandler(e *engine.Engine) *ProfileHandler {
	return &ProfileHandler{engine: e}
}

func (h *ProfileHandler) Handle(ctx context.Context, req Request) (Response, error) {
	days := h.engine.ChallengeLength()

	step, err := h.engine.OnProfileInput(ctx, req.UserID, req.Text)
	switch {
	case errors.Is(err, challenge.ErrEmptyProfileValue):
		return Response{}, nil
	case err != nil:
		return replyError(err, days)
	}

	switch step {
	case engine.SocialHandleSaved:
		return htmlReply(presenter.SocialHandleSaved(), nil), nil
	case engine.ViralContentSaved:
		return htmlReply(presenter.ViralContentSaved(days), nil), nil
	default:
		return htmlReply(presenter.ProfileAlreadyComplete(days), nil), nil
	}
}
