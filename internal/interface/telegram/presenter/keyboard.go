// Package presenter formats challenge data for Telegram display.
// Presenters turn engine results into message texts and inline keyboards;
// they never talk to the Bot API themselves.
package presenter

// ══════════════════════════════════════════════════════════════════════════════
// INLINE KEYBOARD TYPES
// Library-agnostic keyboards. The bot converts them to Bot API markup.
// ══════════════════════════════════════════════════════════════════════════════

// InlineKeyboard represents an inline keyboard.
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// InlineButton represents a single inline button.
type InlineButton struct {
	Text string

	// CallbackData is sent back to the bot when the button is pressed.
	CallbackData string

	// URL opens a link instead of producing a callback.
	URL string
}

// NewInlineKeyboard creates a new empty inline keyboard.
func NewInlineKeyboard() *InlineKeyboard {
	return &InlineKeyboard{
		Rows: make([][]InlineButton, 0),
	}
}

// AddRow adds a row of buttons.
func (k *InlineKeyboard) AddRow(buttons ...InlineButton) *InlineKeyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

// CallbackButton creates a callback button.
func CallbackButton(text, callbackData string) InlineButton {
	return InlineButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// URLButton creates a URL button.
func URLButton(text, url string) InlineButton {
	return InlineButton{
		Text: text,
		URL:  url,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CALLBACK DATA
// ══════════════════════════════════════════════════════════════════════════════

const (
	CallbackGuide       = "guide"
	CallbackChallenge   = "challenge"
	CallbackCreatorTips = "creator2025"
	CallbackLeaderboard = "leaderboard"
	CallbackMenu        = "menu"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYBOARDS
// ══════════════════════════════════════════════════════════════════════════════

// MainMenuKeyboard is shown after /start and when returning to the menu.
func MainMenuKeyboard(challengeDays int) *InlineKeyboard {
	return NewInlineKeyboard().
		AddRow(CallbackButton("📚 Content Creation Guide", CallbackGuide)).
		AddRow(CallbackButton(fmtChallengeButton(challengeDays), CallbackChallenge)).
		AddRow(CallbackButton("🚀 Creator Tips for 2025", CallbackCreatorTips)).
		AddRow(CallbackButton("📊 View Leaderboard", CallbackLeaderboard))
}

// BackToMenuKeyboard is attached to tips and leaderboard views.
func BackToMenuKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().
		AddRow(CallbackButton("⬅️ Back to menu", CallbackMenu))
}

// RewardKeyboard links to the reward form. Nil when no form is configured.
func RewardKeyboard(formURL string) *InlineKeyboard {
	if formURL == "" {
		return nil
	}
	return NewInlineKeyboard().
		AddRow(URLButton("💌 Fill out the form", formURL))
}
