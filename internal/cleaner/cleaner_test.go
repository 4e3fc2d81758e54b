package cleaner

import "testing"

func TestCleanMojibake(t *testing.T) {
	got := Clean("Itâ€™s fine")
	if got != "It's fine" {
		t.Fatalf("mojibake not repaired: %q", got)
	}
}

func TestCleanLigatures(t *testing.T) {
	got := Clean("eﬃcient workﬂow")
	if got != "efficient workflow" {
		t.Fatalf("ligatures not expanded: %q", got)
	}
}

func TestCleanCitations(t *testing.T) {
	got := Clean("A[1]B[23]C")
	if got != "ABC" {
		t.Fatalf("citations not removed: %q", got)
	}
}

func TestCleanParentheticals(t *testing.T) {
	got := Clean("keep(drop)this")
	if got != "keepthis" {
		t.Fatalf("parenthetical not removed: %q", got)
	}
}

func TestCleanPageNumbersAndBrokenLines(t *testing.T) {
	got := Clean("line one\n3\nline two")
	if got != "line one line two" {
		t.Fatalf("page number or broken line mishandled: %q", got)
	}
}

func TestCleanArxivStamp(t *testing.T) {
	got := Clean("arXiv:2303.08774v1 [cs.CL] 14 Mar 2023")
	if got != "" {
		t.Fatalf("arxiv stamp not removed: %q", got)
	}
}

func TestCleanFormFeedAndDashes(t *testing.T) {
	got := Clean("a\fb----c")
	if got != "abc" {
		t.Fatalf("layout characters not removed: %q", got)
	}
}

func TestCleanSectionHeaders(t *testing.T) {
	got := Clean("2.1.3. Deep header follows")
	if got != "Deep header follows" {
		t.Fatalf("section numbering not stripped: %q", got)
	}
}

func TestCleanTitleLine(t *testing.T) {
	got := Clean("ABSTRACT\nWe propose a method.")
	if got != "Abstract\nWe propose a method." {
		t.Fatalf("title line not normalized: %q", got)
	}
}

func TestCleanFigureAndTableCaptions(t *testing.T) {
	got := Clean("before Figure 2: loss curve\nAfter text")
	if got != "before After text" {
		t.Fatalf("figure caption not removed: %q", got)
	}
}

func TestCleanEmptyInput(t *testing.T) {
	if got := Clean(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
