package telegram

import (
	"context"
	"fmt"

	"github.com/createathon/challenge-hub/internal/domain/challenge"
)

// Sender is the slice of Client the notifier needs.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) (*Message, error)
}

// ReminderNotifier delivers reminder events as private messages. In a
// private chat the chat id equals the user id.
type ReminderNotifier struct {
	sender Sender
	text   string
}

// NewReminderNotifier uses challenge.ReminderText when text is empty.
func NewReminderNotifier(sender Sender, text string) *ReminderNotifier {
	if text == "" {
		text = challenge.ReminderText
	}
	return &ReminderNotifier{sender: sender, text: text}
}

func (n *ReminderNotifier) NotifyReminder(ctx context.Context, evt challenge.ReminderEvent) error {
	if _, err := n.sender.SendText(ctx, evt.UserID.Int64(), n.text); err != nil {
		return fmt.Errorf("remind user %s: %w", evt.UserID, err)
	}
	return nil
}
