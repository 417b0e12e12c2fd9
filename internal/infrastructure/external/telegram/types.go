package telegram

import (
	"encoding/json"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// TELEGRAM API TYPES
// ══════════════════════════════════════════════════════════════════════════════

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type Message struct {
	MessageID int64           `json:"message_id"`
	From      *User           `json:"from,omitempty"`
	Chat      *Chat           `json:"chat"`
	Date      int64           `json:"date"`
	Text      string          `json:"text,omitempty"`
	Entities  []MessageEntity `json:"entities,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type MessageEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYBOARD BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// KeyboardBuilder assembles an inline keyboard row by row.
type KeyboardBuilder struct {
	rows [][]InlineKeyboardButton
}

func NewKeyboard() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

func (kb *KeyboardBuilder) Row(buttons ...InlineKeyboardButton) *KeyboardBuilder {
	kb.rows = append(kb.rows, buttons)
	return kb
}

func (kb *KeyboardBuilder) Build() *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: kb.rows}
}

// Button is a callback button.
func Button(text, data string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, CallbackData: data}
}

func URLButton(text, url string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, URL: url}
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// ExtractCommand returns the leading bot command without "/" and "@botname".
func ExtractCommand(msg *Message) string {
	if msg == nil {
		return ""
	}
	for _, e := range msg.Entities {
		if e.Type != "bot_command" || e.Offset != 0 || e.Length < 2 || e.Length > len(msg.Text) {
			continue
		}
		cmd := msg.Text[1:e.Length]
		if at := strings.IndexByte(cmd, '@'); at >= 0 {
			cmd = cmd[:at]
		}
		return cmd
	}
	return ""
}

// ExtractCommandArgs returns the text after the leading command, trimmed.
func ExtractCommandArgs(msg *Message) string {
	if msg == nil {
		return ""
	}
	for _, e := range msg.Entities {
		if e.Type == "bot_command" && e.Offset == 0 && e.Length <= len(msg.Text) {
			return strings.TrimSpace(msg.Text[e.Length:])
		}
	}
	return ""
}

func IsPrivateChat(msg *Message) bool {
	return msg != nil && msg.Chat != nil && msg.Chat.Type == "private"
}
