package transcript

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// ErrNoTrackForLanguage matches every *NoTrackError.
var ErrNoTrackForLanguage = errors.New("no caption track for language")

// NoTrackError reports a language with no usable track.
type NoTrackError struct {
	Language  string
	Available []string
}

func (e *NoTrackError) Error() string {
	return fmt.Sprintf("no captions for %q, available: [%s]", e.Language, strings.Join(e.Available, ", "))
}

// Is lets errors.Is match ErrNoTrackForLanguage.
func (e *NoTrackError) Is(target error) bool {
	return target == ErrNoTrackForLanguage
}

// NormalizeLanguage canonicalizes a BCP 47 tag so "EN" and "en" compare
// equal. Text that does not parse is trimmed and lowercased.
func NormalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if tag, err := language.Parse(code); err == nil {
		return tag.String()
	}
	return strings.ToLower(code)
}

// priority ranks kinds; lower wins.
func priority(k CaptionKind) int {
	switch k {
	case Manual:
		return 0
	case AsrPunctuated:
		return 1
	default:
		return 2
	}
}

// SelectTrack returns the best track for lang: a manual track, then
// punctuated ASR, then plain ASR. Among tracks of equal rank the first in
// the list wins.
func SelectTrack(tracks []CaptionTrack, lang string) (CaptionTrack, error) {
	want := NormalizeLanguage(lang)
	best := -1

	for i, track := range tracks {
		if NormalizeLanguage(track.Language) != want {
			continue
		}
		if best < 0 || priority(track.Kind) < priority(tracks[best].Kind) {
			best = i
			if track.Kind == Manual {
				break
			}
		}
	}

	if best < 0 {
		return CaptionTrack{}, &NoTrackError{Language: lang, Available: Languages(tracks)}
	}
	return tracks[best], nil
}

// Languages lists the language codes of tracks in order, without duplicates.
func Languages(tracks []CaptionTrack) []string {
	seen := make(map[string]bool, len(tracks))
	codes := make([]string, 0, len(tracks))
	for _, t := range tracks {
		if seen[t.Language] {
			continue
		}
		seen[t.Language] = true
		codes = append(codes, t.Language)
	}
	return codes
}
