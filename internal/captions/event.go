package captions

import (
	"encoding/json"
	"strings"

	"github.com/lexiqai/tldr/internal/transcript"
)

// EventKind discriminates the two shapes a json3 event takes
type EventKind int

const (
	// MetadataEvent carries timing or window setup but no text
	MetadataEvent EventKind = iota
	// SegmentEvent carries caption text segments
	SegmentEvent
)

// Segment is one run of caption text inside an event
type Segment struct {
	Text     string `json:"utf8"`
	OffsetMs int64  `json:"tOffsetMs,omitempty"`
}

// Event is one json3 caption event. Which case it is depends on whether
// the segs list is present on the wire.
type Event struct {
	kind       EventKind
	StartMs    int64
	DurationMs int64
	Segments   []Segment
}

// Kind reports which of the two event shapes this is
func (e Event) Kind() EventKind {
	return e.kind
}

// UnmarshalJSON decodes an event and records its kind
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		StartMs    int64      `json:"tStartMs"`
		DurationMs int64      `json:"dDurationMs"`
		Segs       *[]Segment `json:"segs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Event{StartMs: raw.StartMs, DurationMs: raw.DurationMs, kind: MetadataEvent}
	if raw.Segs != nil {
		e.kind = SegmentEvent
		e.Segments = *raw.Segs
	}
	return nil
}

// Text concatenates the segment text with newlines turned into spaces
func (e Event) Text() string {
	var b strings.Builder
	for _, seg := range e.Segments {
		b.WriteString(seg.Text)
	}
	return strings.ReplaceAll(b.String(), "\n", " ")
}

// Entry converts a segment event to a transcript entry
func (e Event) Entry() transcript.Entry {
	start := float64(e.StartMs) / 1000
	end := float64(e.StartMs+e.DurationMs) / 1000
	if end < start {
		end = start
	}
	return transcript.Entry{Text: e.Text(), Start: start, End: end}
}

// entriesFromEvents keeps segment events in start order
func entriesFromEvents(events []Event) []transcript.Entry {
	entries := make([]transcript.Entry, 0, len(events))
	for _, ev := range events {
		if ev.Kind() != SegmentEvent {
			continue
		}
		entries = append(entries, ev.Entry())
	}
	return entries
}
