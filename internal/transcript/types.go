// Package transcript picks a caption track and merges its timed entries
// into paragraphs of plain text.
package transcript

// CaptionKind is how a track was produced.
type CaptionKind int

const (
	// Manual tracks are authored by a person.
	Manual CaptionKind = iota
	// AsrPunctuated tracks are machine generated with punctuation restored.
	AsrPunctuated
	// AsrPlain tracks are machine generated without punctuation.
	AsrPlain
)

// String returns the kind name used in logs and CLI output.
func (k CaptionKind) String() string {
	switch k {
	case Manual:
		return "manual"
	case AsrPunctuated:
		return "asr-punctuated"
	case AsrPlain:
		return "asr"
	default:
		return "unknown"
	}
}

// CaptionTrack is one available subtitle stream.
type CaptionTrack struct {
	Language string
	BaseURL  string
	Kind     CaptionKind
	Name     string // display name, informational
}

// Entry is one timed caption fragment. Times are seconds.
type Entry struct {
	Text  string
	Start float64
	End   float64
}

// MergeConfig controls Merge.
type MergeConfig struct {
	// ParagraphPause is the silence, in seconds, that starts a new paragraph.
	ParagraphPause float64
	// RemoveAnnotations strips [bracketed] and (parenthesized) spans.
	RemoveAnnotations bool
}

// DefaultMergeConfig is a two second paragraph pause with annotations removed.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{ParagraphPause: 2.0, RemoveAnnotations: true}
}
