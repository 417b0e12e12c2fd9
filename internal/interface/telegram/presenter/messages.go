package presenter

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/createathon/challenge-hub/internal/application/engine"
	"github.com/createathon/challenge-hub/internal/domain/challenge"
)

// ParseModeHTML - все сообщения бота размечены HTML.
const ParseModeHTML = "HTML"

// ══════════════════════════════════════════════════════════════════════════════
// ONBOARDING
// ══════════════════════════════════════════════════════════════════════════════

// Welcome приветствует пользователя после /start.
func Welcome(firstName string) string {
	return fmt.Sprintf(
		"👋 <b>Hi %s!</b> 🎉\n\n"+
			"Welcome to the <b>Content Creator Bot</b>! Let's make you a star 🌟.\n\n"+
			"📥 Share your social handle or viral content to begin.",
		html.EscapeString(firstName),
	)
}

// MainMenu - текст при возврате в меню.
func MainMenu() string {
	return "Welcome back to the main menu! Choose an option below:"
}

func SocialHandleSaved() string {
	return "✅ Social handle saved! Share your most viral content (link + view count)."
}

func ViralContentSaved(challengeDays int) string {
	return fmt.Sprintf("✅ Viral content saved! Now you're ready to start the %d-day challenge.", challengeDays)
}

// ProfileAlreadyComplete отвечает на свободный текст после заполнения профиля.
func ProfileAlreadyComplete(challengeDays int) string {
	return "Your profile is complete. " + SubmitUsage(challengeDays)
}

// RegisterFirst - ответ незарегистрированному пользователю.
func RegisterFirst() string {
	return "Please send /start first so I can set up your profile."
}

func fmtChallengeButton(challengeDays int) string {
	return fmt.Sprintf("🎯 Start %d-Day Challenge", challengeDays)
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeStarted объявляет начало нового захода.
func ChallengeStarted(challengeDays int) string {
	return fmt.Sprintf(
		"🎉 The %d-day Createathon Challenge has started! 🎯\n\n"+
			"Each day, share your content with <code>/submit &lt;day&gt; &lt;link&gt;</code>. "+
			"Let's track your growth!",
		challengeDays,
	)
}

// SubmitUsage подсказывает формат команды /submit.
func SubmitUsage(challengeDays int) string {
	return fmt.Sprintf(
		"Use <code>/submit &lt;day&gt; &lt;link&gt;</code> with a day from 1 to %d, "+
			"for example <code>/submit 1 https://youtu.be/dQw4w9WgXcQ</code>.",
		challengeDays,
	)
}

// SubmissionAccepted подтверждает запись дня и показывает итог.
func SubmissionAccepted(sub engine.Submission, challengeDays int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ <b>Day %d recorded!</b>\n\n", sub.Day)
	fmt.Fprintf(&sb, "👀 %s views  ❤️ %s likes  💬 %s comments\n\n",
		FormatCount(sub.Metrics.Views),
		FormatCount(sub.Metrics.Likes),
		FormatCount(sub.Metrics.Comments),
	)
	fmt.Fprintf(&sb, "📅 Days: %d/%d\n", sub.State.TotalDays, challengeDays)
	fmt.Fprintf(&sb, "👀 Total views: %s", FormatCount(sub.State.TotalViews))
	if sub.Score != nil {
		fmt.Fprintf(&sb, "\n🧠 Content tone: %s (%.0f%%)", html.EscapeString(sub.Score.Label), sub.Score.Confidence*100)
	}
	return sb.String()
}

// Progress - карточка прогресса для /progress.
func Progress(user challenge.User, state challenge.ChallengeState, challengeDays int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>%s</b>\n\n", html.EscapeString(user.DisplayName))
	fmt.Fprintf(&sb, "📅 Days: %d/%d\n", state.TotalDays, challengeDays)
	fmt.Fprintf(&sb, "👀 Views: %s\n", FormatCount(state.TotalViews))
	fmt.Fprintf(&sb, "⭐ Engagement: %s points", FormatCount(state.Engagement()))

	if days := user.Days(); len(days) > 0 {
		parts := make([]string, len(days))
		for i, d := range days {
			parts[i] = fmt.Sprint(d)
		}
		fmt.Fprintf(&sb, "\n✅ Submitted days: %s", strings.Join(parts, ", "))
	}
	if user.Eligible {
		sb.WriteString("\n🏆 Shortlisted for creator opportunities")
	}
	return sb.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// NotStarted - ответ на оценку без единого сданного дня.
func NotStarted() string {
	return "You haven't completed the challenge yet."
}

// Evaluation - поздравление или "good effort" с итогами.
func Evaluation(ev engine.Evaluation, formURL string) string {
	name := html.EscapeString(ev.User.DisplayName)
	totals := fmt.Sprintf("📅 Total Days: %d\n👀 Total Views: %d\n\n", ev.State.TotalDays, ev.State.TotalViews)

	if ev.Verdict.Eligible {
		var sb strings.Builder
		fmt.Fprintf(&sb, "🎉 <b>Congratulations, %s!</b> 🎉\n\n", name)
		sb.WriteString(totals)
		sb.WriteString("🏆 You've been shortlisted for brand deals and creator opportunities!\n")
		if formURL != "" {
			fmt.Fprintf(&sb, "💌 Please fill out <a href=\"%s\">this form</a> to proceed further.\n", html.EscapeString(formURL))
		}
		sb.WriteString("\nKeep up the amazing work! 🌟")
		return sb.String()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👏 <b>Good effort, %s!</b> 👏\n\n", name)
	sb.WriteString(totals)
	if ev.Verdict.MissingDays > 0 {
		fmt.Fprintf(&sb, "⏳ %d more day(s) to go.\n", ev.Verdict.MissingDays)
	}
	if ev.Verdict.MissingViews > 0 {
		fmt.Fprintf(&sb, "📈 %s more view(s) needed.\n", FormatCount(ev.Verdict.MissingViews))
	}
	sb.WriteString("\nKeep improving to unlock more opportunities in the future! 🚀")
	return sb.String()
}

// RewardCaption - подпись к GIF-награде. Отправляется без разметки.
func RewardCaption(formURL string) string {
	caption := "🎉 Congratulations! 🎉\n\nYou've been shortlisted for brand deals and creator opportunities!"
	if formURL != "" {
		caption += "\n\n💌 Please fill out this form to proceed further: " + formURL
	}
	return caption + "\n\nKeep shining! 🌟"
}

// ══════════════════════════════════════════════════════════════════════════════
// SYSTEM MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// Help lists the commands.
func Help(challengeDays int) string {
	return fmt.Sprintf(
		"<b>Commands</b>\n\n"+
			"/start - register and open the menu\n"+
			"/start_challenge - start the %d-day challenge\n"+
			"/submit &lt;day&gt; &lt;link&gt; - log a day's content\n"+
			"/progress - your days, views and points\n"+
			"/evaluate_challenge - check if you qualify for rewards\n"+
			"/leaderboard - top creators by engagement",
		challengeDays,
	)
}

func RateLimited(retryAfter time.Duration) string {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return fmt.Sprintf("⏳ Too many requests! Try again in %d second(s).", seconds)
}

func InternalError() string {
	return "😔 Something went wrong. Please try again later."
}

// FormatCount renders 1234567 as 1,234,567.
func FormatCount(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := fmt.Sprint(n)
	if len(s) <= 3 {
		return sign + s
	}

	var sb strings.Builder
	sb.WriteString(sign)
	head := len(s) % 3
	if head > 0 {
		sb.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if sb.Len() > len(sign) {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
