// Package cleaner normalizes raw extracted paper text into indexable
// prose. Every pass is best effort: the heuristics are lossy by intent
// (parenthetical stripping removes legitimate asides too) and a fault
// in any pass returns the input unchanged rather than aborting the
// pipeline.
package cleaner

import (
	"regexp"
	"strings"
)

var (
	rePageNumber = regexp.MustCompile(`\n\d+\n`)
	reArxivStamp = regexp.MustCompile(`arXiv:\d+\.\d+v\d+ \[.*?\] \d{1,2} \w{3} \d{4}`)
	reBlankRuns  = regexp.MustCompile(`\n\s*\n`)
	reHSpaceRuns = regexp.MustCompile(`[ \t]+`)
	reBrokenLine = regexp.MustCompile(`\n([a-z])`)
	reCitation   = regexp.MustCompile(`\[\d+\]`)
	reParens     = regexp.MustCompile(`\(.*?\)`)
	reFormFeed   = regexp.MustCompile(`\f`)
	reDashRuns   = regexp.MustCompile(`-{2,}`)
	reSection    = regexp.MustCompile(`(?m)^\d+\.\s+`)
	reSubSection = regexp.MustCompile(`(?m)^\d+\.\d+\.\s+`)
	reSubSubSec  = regexp.MustCompile(`(?m)^\d+\.\d+\.\d+\.\s+`)
	reTitleLine  = regexp.MustCompile(`(?m)^[ \t]*[A-Z][a-zA-Z ]+\n`)
	reFigCaption = regexp.MustCompile(`Figure \d+:.*?\n`)
	reTabCaption = regexp.MustCompile(`Table \d+:.*?\n`)
	reKeyWords   = regexp.MustCompile(`(?i)\nKey Words:.*?\n`)
)

// encodingFixes repairs the mojibake and ligature artifacts PDF
// extractors most often leave behind (UTF-8 read as Latin-1, typographic
// ligature codepoints).
var encodingFixes = strings.NewReplacer(
	"\u00e2\u20ac\u2122", "'", // right single quote read as latin-1
	"\u00e2\u20ac\u02dc", "'", // left single quote
	"\u00e2\u20ac\u0153", "\"", // left double quote
	"\u00e2\u20ac\u009d", "\"", // right double quote
	"\u00e2\u20ac\u201c", "-", // en dash
	"\u00e2\u20ac\u201d", "-", // em dash
	"\u00e2\u20ac\u00a6", "...", // ellipsis
	"\u00c3\u00a9", "\u00e9", // e-acute
	"\u00c2\u00a0", " ", // non-breaking space
	"\ufb00", "ff",
	"\ufb01", "fi",
	"\ufb02", "fl",
	"\ufb03", "ffi",
	"\ufb04", "ffl",
	"\u00ad", "", // soft hyphen
)

// Clean runs the full normalization pipeline over raw extracted text.
// It never panics and always returns a string; if any pass faults the
// unmodified input comes back.
func Clean(text string) (out string) {
	defer func() {
		if recover() != nil {
			out = text
		}
	}()

	s := encodingFixes.Replace(text)

	// Headers, footers, provider stamps.
	s = rePageNumber.ReplaceAllString(s, "\n")
	s = reArxivStamp.ReplaceAllString(s, "")

	// Line-break normalization. Horizontal whitespace only: the
	// remaining passes are line oriented and need newlines intact.
	s = reBlankRuns.ReplaceAllString(s, "\n")
	s = reHSpaceRuns.ReplaceAllString(s, " ")
	s = reBrokenLine.ReplaceAllString(s, " $1")

	// Inline citations and parenthetical asides. Lossy heuristic.
	s = reCitation.ReplaceAllString(s, "")
	s = reParens.ReplaceAllString(s, "")

	// Stray layout characters.
	s = reFormFeed.ReplaceAllString(s, "")
	s = reDashRuns.ReplaceAllString(s, "")

	// Section headers: drop the numbering, keep the title on its own
	// newline-prefixed line. Deepest pattern first so "1.2.3. " is not
	// half-eaten by the "1. " rule.
	s = reSubSubSec.ReplaceAllString(s, "\n")
	s = reSubSection.ReplaceAllString(s, "\n")
	s = reSection.ReplaceAllString(s, "\n")
	s = reTitleLine.ReplaceAllStringFunc(s, func(m string) string {
		return "\n" + titleCase(strings.TrimSpace(m)) + "\n"
	})

	// Redundant content.
	s = reFigCaption.ReplaceAllString(s, "")
	s = reTabCaption.ReplaceAllString(s, "")
	s = reKeyWords.ReplaceAllString(s, "\n")

	return strings.TrimSpace(s)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
