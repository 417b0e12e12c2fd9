package handler

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/createathon/challenge-hub/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIPS HANDLER
// "guide" and "creator2025" buttons: a random sample from a tip deck.
// ══════════════════════════════════════════════════════════════════════════════

type TipsHandler struct {
	deck presenter.TipDeck

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTipsHandler uses the global random source when rng is nil.
func NewTipsHandler(deck presenter.TipDeck, rng *rand.Rand) *TipsHandler {
	return &TipsHandler{deck: deck, rng: rng}
}

func (h *TipsHandler) Handle(_ context.Context, _ Request) (Response, error) {
	h.mu.Lock()
	tips := h.deck.Sample(presenter.TipsPerView, h.rng)
	h.mu.Unlock()

	return htmlReply(presenter.Tips(h.deck.Title, tips), presenter.BackToMenuKeyboard()), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELP HANDLER
// ══════════════════════════════════════════════════════════════════════════════

type HelpHandler struct {
	challengeDays int
}

func NewHelpHandler(challengeDays int) *HelpHandler {
	return &HelpHandler{challengeDays: challengeDays}
}

func (h *HelpHandler) Handle(_ context.Context, _ Request) (Response, error) {
	return htmlReply(presenter.Help(h.challengeDays), nil), nil
}
