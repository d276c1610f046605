package transcript

import "strings"

const paragraphBreak = "\n\n"

// Merge joins entries, ordered by start time, into paragraphs. A paragraph
// ends when the gap since the previous spoken entry reaches
// cfg.ParagraphPause. When an entry overlaps the previous one in time and
// its text begins with a partial repeat of the line's tail, only the new
// remainder is appended.
//
// The overlap is the longest byte-wise suffix of the current line that is
// also a prefix of the entry text. Repeated short tokens can therefore be
// stitched even when they are unrelated words.
func Merge(entries []Entry, cfg MergeConfig) string {
	var paragraphs []string
	var line string
	var lastEnd float64
	spoken := false

	for _, e := range entries {
		text := e.Text
		if cfg.RemoveAnnotations {
			text = StripAnnotations(text)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			// Stage directions do not move the pause reference.
			continue
		}

		switch {
		case line == "":
			line = text
		case spoken && e.Start-lastEnd >= cfg.ParagraphPause:
			paragraphs = append(paragraphs, line)
			line = text
		default:
			overlap := suffixPrefixOverlap(line, text)
			if e.Start < lastEnd && overlap > 0 && overlap < len(text) {
				line += text[overlap:]
			} else {
				line += " " + text
			}
		}

		lastEnd = e.End
		spoken = true
	}

	if line != "" {
		paragraphs = append(paragraphs, line)
	}
	return strings.Join(paragraphs, paragraphBreak)
}

// suffixPrefixOverlap returns the length of the longest suffix of a that is
// also a prefix of b.
func suffixPrefixOverlap(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for k := n; k > 0; k-- {
		if a[len(a)-k:] == b[:k] {
			return k
		}
	}
	return 0
}

// StripAnnotations removes [bracketed] and (parenthesized) spans, nested or
// not. Brackets of either kind share one depth counter. A closer with no
// opener is kept as text; an opener that is never closed drops the rest of
// the string. Whitespace left doubled by a removal is collapsed.
func StripAnnotations(s string) string {
	if !strings.ContainsAny(s, "[(") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	depth := 0
	removed := false

	for _, r := range s {
		switch {
		case r == '[' || r == '(':
			depth++
			removed = true
			continue
		case (r == ']' || r == ')') && depth > 0:
			depth--
			continue
		case depth > 0:
			continue
		}

		if removed && r == ' ' {
			out := b.String()
			if out == "" || strings.HasSuffix(out, " ") {
				continue
			}
		} else if r != ' ' {
			removed = false
		}
		b.WriteRune(r)
	}

	return b.String()
}
