package captions

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidURL is returned when no video ID can be found in a URL
var ErrInvalidURL = errors.New("invalid YouTube URL")

const videoIDLength = 11

// idPatterns are tried in order; the ID is the 11 characters after the first match
var idPatterns = []string{"v=", "/embed/", "/live/", "/v/", "/shorts/", "youtu.be/"}

// ExtractVideoID finds the video ID in a watch, embed, live, shorts or
// youtu.be URL.
func ExtractVideoID(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	for _, pattern := range idPatterns {
		pos := strings.Index(rawURL, pattern)
		if pos < 0 {
			continue
		}
		start := pos + len(pattern)
		if len(rawURL) < start+videoIDLength {
			break
		}
		id := rawURL[start : start+videoIDLength]
		if !validID(id) {
			break
		}
		return id, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
}

func validID(id string) bool {
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
