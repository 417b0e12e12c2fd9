package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url with extra params", "https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ"},
		{"mobile host", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short link", "https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ"},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"embed", "youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare id", "  dQw4w9WgXcQ ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVideoID(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVideoID_Rejects(t *testing.T) {
	for _, ref := range []string{
		"",
		"hello world",
		"https://vimeo.com/123456",
		"https://www.youtube.com/watch?v=short",
		"https://www.youtube.com/channel/UC123",
	} {
		_, err := ParseVideoID(ref)
		assert.ErrorIs(t, err, ErrInvalidVideoRef, ref)
	}
}
