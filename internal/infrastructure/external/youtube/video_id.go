package youtube

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/createathon/challenge-hub/internal/domain/shared"
)

// ErrInvalidVideoRef is returned when no video id can be found in the input.
var ErrInvalidVideoRef = shared.WrapError("youtube", "ParseVideoID", shared.ErrValidation, "not a YouTube video link", shared.ErrInvalidFormat)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character id from a watch URL (value of v=),
// a youtu.be short link, a /shorts/ or /embed/ path, or a bare id.
func ParseVideoID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if videoIDPattern.MatchString(ref) {
		return ref, nil
	}

	if !strings.Contains(ref, "://") {
		ref = "https://" + ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", ErrInvalidVideoRef
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var candidate string
	switch host {
	case "youtu.be":
		candidate = firstSegment(u.Path)
	case "youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			candidate = v
			break
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				candidate = firstSegment(rest)
				break
			}
		}
	}

	if !videoIDPattern.MatchString(candidate) {
		return "", ErrInvalidVideoRef
	}
	return candidate, nil
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}
