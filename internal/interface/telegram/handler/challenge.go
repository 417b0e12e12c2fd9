package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/createathon/challenge-hub/internal/application/engine"
	"github.com/createathon/challenge-hub/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// START CHALLENGE HANDLER
// /start_challenge and the "challenge" button: clears progress for a new run.
// ══════════════════════════════════════════════════════════════════════════════

type ChallengeHandler struct {
	engine *engine.Engine
}

func NewChallengeHandler(e *engine.Engine) *ChallengeHandler {
	return &ChallengeHandler{engine: e}
}

func (h *ChallengeHandler) Handle(ctx context.Context, req Request) (Response, error) {
	days := h.engine.ChallengeLength()
	if err := h.engine.OnChallengeStart(ctx, req.UserID); err != nil {
		return replyError(err, days)
	}
	return htmlReply(presenter.ChallengeStarted(days), nil), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT HANDLER
// /submit <day> <link>
// ══════════════════════════════════════════════════════════════════════════════

type SubmitHandler struct {
	engine *engine.Engine
}

func NewSubmitHandler(e *engine.Engine) *SubmitHandler {
	return &SubmitHandler{engine: e}
}

func (h *SubmitHandler) Handle(ctx context.Context, req Request) (Response, error) {
	days := h.engine.ChallengeLength()

	day, link, ok := parseSubmitArgs(req.Args)
	if !ok {
		return htmlReply(presenter.SubmitUsage(days), nil), nil
	}

	sub, err := h.engine.OnSubmitContent(ctx, req.UserID, day, link)
	if err != nil {
		return replyError(err, days)
	}
	return htmlReply(presenter.SubmissionAccepted(sub, days), nil), nil
}

// parseSubmitArgs accepts "<day> <link>". Extra words are rejected so a
// mistyped command never records the wrong day.
func parseSubmitArgs(args string) (day int, link string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, "", false
	}
	day, err := strconv.Atoi(strings.TrimPrefix(fields[0], "#"))
	if err != nil {
		return 0, "", false
	}
	return day, fields[1], true
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProgressHandler shows /progress: days, views and points so far.
type ProgressHandler struct {
	engine *engine.Engine
}

func NewProgressHandler(e *engine.Engine) *ProgressHandler {
	return &ProgressHandler{engine: e}
}

func (h *ProgressHandler) Handle(ctx context.Context, req Request) (Response, error) {
	days := h.engine.ChallengeLength()
	user, state, err := h.engine.UserState(ctx, req.UserID)
	if err != nil {
		return replyError(err, days)
	}
	return htmlReply(presenter.Progress(user, state, days), nil), nil
}
