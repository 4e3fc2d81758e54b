// Package chunker splits cleaned paper text into overlapping windows
// for embedding. Windows prefer paragraph boundaries, then sentence
// boundaries, then word boundaries, so a chunk never splits mid-token
// where avoidable.
package chunker

import "strings"

const (
	DefaultSize    = 2000
	DefaultOverlap = 300
)

// boundary separators, strongest first.
var separators = []string{"\n\n", "\n", ". ", " "}

// Split cuts text into windows of at most size characters with roughly
// overlap characters repeated between adjacent windows. All positions
// are rune indices, so a hard cut on separator-free multi-byte text
// still yields valid UTF-8. Returns nil for empty input; input shorter
// than size yields a single chunk.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	chunks := make([]string, 0, len(runes)/(size-overlap)+1)
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			tail := strings.TrimSpace(string(runes[start:]))
			if tail != "" {
				chunks = append(chunks, tail)
			}
			break
		}
		cut := cutPoint(runes, start, end)
		part := strings.TrimSpace(string(runes[start:cut]))
		if part != "" {
			chunks = append(chunks, part)
		}
		next := backOff(runes, cut, overlap)
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// cutPoint finds the best split position in (start, end], scanning
// backwards from end for the strongest separator. Falls back to a hard
// cut at end when the window has no separator at all.
func cutPoint(runes []rune, start, end int) int {
	// Only consider the back half of the window so chunks stay near
	// the target size.
	floor := start + (end-start)/2
	for _, sep := range separators {
		if i := lastSeparator(runes, sep, floor, end); i >= 0 {
			return i + len([]rune(sep))
		}
	}
	return end
}

// lastSeparator returns the highest rune index in [lo, hi) at which sep
// starts and fits entirely before hi, or -1.
func lastSeparator(runes []rune, sep string, lo, hi int) int {
	s := []rune(sep)
	for i := hi - len(s); i >= lo; i-- {
		match := true
		for j := range s {
			if runes[i+j] != s[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// backOff rewinds roughly overlap runes from cut, then re-aligns
// forward to the next word boundary so the overlap region starts on a
// whole token.
func backOff(runes []rune, cut, overlap int) int {
	pos := cut - overlap
	if pos <= 0 {
		return cut
	}
	for i := pos; i < cut; i++ {
		if runes[i] == ' ' || runes[i] == '\n' {
			return i + 1
		}
	}
	return pos
}
