package presenter

import (
	"errors"
	"fmt"

	"github.com/createathon/challenge-hub/internal/application/engine"
	"github.com/createathon/challenge-hub/internal/domain/challenge"
	"github.com/createathon/challenge-hub/internal/domain/shared"
)

// ErrorText maps expected domain and adapter errors to a user-facing reply.
// ok is false for anything unexpected; the caller should log it and answer
// with InternalError.
func ErrorText(err error, challengeDays int) (text string, ok bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, challenge.ErrUserNotFound):
		return RegisterFirst(), true
	case errors.Is(err, challenge.ErrInvalidDay):
		return fmt.Sprintf("📅 The day must be between 1 and %d.", challengeDays), true
	case errors.Is(err, challenge.ErrDuplicateDay):
		return "✋ You've already submitted content for that day. Pick the next day to keep your streak going!", true
	case errors.Is(err, challenge.ErrNegativeMetric):
		return "Metrics cannot be negative.", true
	case errors.Is(err, engine.ErrNoMetricsSource):
		return "Automatic metrics lookup is not configured right now. Please try again later.", true
	case errors.Is(err, shared.ErrYouTubeVideoNotFound):
		return "🔍 I couldn't find that video. Make sure it's public and the link is correct.", true
	case errors.Is(err, shared.ErrYouTubeRateLimited),
		errors.Is(err, shared.ErrYouTubeUnavailable),
		errors.Is(err, shared.ErrYouTubeInvalidResponse):
		return "⏳ YouTube isn't answering right now. Please try again in a few minutes.", true
	case errors.Is(err, shared.ErrInvalidFormat):
		return "🔗 That doesn't look like a YouTube video link.", true
	}
	return "", false
}
