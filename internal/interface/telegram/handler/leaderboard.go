package handler

import (
	"context"

	"github.com/createathon/challenge-hub/internal/application/engine"
	"github.com/createathon/challenge-hub/internal/interface/telegram/presenter"
)

// DefaultLeaderboardLimit caps how many rows fit in one Telegram message.
const DefaultLeaderboardLimit = 20

// LeaderboardHandler serves /leaderboard and the "leaderboard" button.
type LeaderboardHandler struct {
	engine *engine.Engine
	limit  int
}

func NewLeaderboardHandler(e *engine.Engine, limit int) *LeaderboardHandler {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return &LeaderboardHandler{engine: e, limit: limit}
}

func (h *LeaderboardHandler) Handle(ctx context.Context, req Request) (Response, error) {
	entries, err := h.engine.OnLeaderboardRequest(ctx)
	if err != nil {
		return Response{}, err
	}

	var kb *presenter.InlineKeyboard
	if req.IsCallback {
		kb = presenter.BackToMenuKeyboard()
	}
	return htmlReply(presenter.Leaderboard(entries, h.limit), kb), nil
}
