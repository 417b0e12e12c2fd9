package handler

import (
	"context"
	"errors"

	"github.com/createathon/challenge-hub/internal/application/engine"
	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE HANDLER
// /evaluate_challenge: verdict, and the reward GIF on first eligibility.
// ══════════════════════════════════════════════════════════════════════════════

// Reward configures what an eligible user receives.
type Reward struct {
	// AnimationURL is the GIF sent once, on the first eligible verdict.
	AnimationURL string

	// FormURL is the application form linked from the congratulation.
	FormURL string
}

type EvaluateHandler struct {
	engine *engine.Engine
	reward Reward
}

func NewEvaluateHandler(e *engine.Engine, reward Reward) *EvaluateHandler {
	return &EvaluateHandler{engine: e, reward: reward}
}

func (h *EvaluateHandler) Handle(ctx context.Context, req Request) (Response, error) {
	ev, err := h.engine.OnEvaluateRequest(ctx, req.UserID)
	if errors.Is(err, challenge.ErrUserNotFound) {
		return htmlReply(presenter.NotStarted(), nil), nil
	}
	if err != nil {
		return replyError(err, h.engine.ChallengeLength())
	}
	if ev.State.TotalDays == 0 {
		return htmlReply(presenter.NotStarted(), nil), nil
	}

	var kb *presenter.InlineKeyboard
	if ev.Verdict.Eligible {
		kb = presenter.RewardKeyboard(h.reward.FormURL)
	}
	resp := htmlReply(presenter.Evaluation(ev, h.reward.FormURL), kb)
	resp.Reward = ev.NewlyEligible

	if ev.NewlyEligible && h.reward.AnimationURL != "" {
		resp.Animation = &Animation{
			URL:     h.reward.AnimationURL,
			Caption: presenter.RewardCaption(h.reward.FormURL),
		}
	}
	return resp, nil
}
