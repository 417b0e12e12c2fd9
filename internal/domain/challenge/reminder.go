package challenge

import "time"

// ReminderText - текст ежедневного напоминания.
const ReminderText = "🔔 Reminder: Don't forget to share your content for today's challenge!"

// ReminderEvent - одно напоминание одному пользователю в рамках цикла.
type ReminderEvent struct {
	UserID   UserID    `json:"user_id"`
	CycleID  string    `json:"cycle_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// NeedsReminder сообщает, нужно ли напоминание: пользователь начал челлендж.
func NeedsReminder(u User) bool {
	return u.HasStarted()
}
