package util

import "testing"

func TestSanitizeTextStripsNUL(t *testing.T) {
	got := SanitizeText("abc\x00def")
	if got != "abcdef" {
		t.Fatalf("NUL not removed: %q", got)
	}
}

func TestSanitizeTextKeepsWhitespace(t *testing.T) {
	got := SanitizeText("a\nb\tc\fd")
	if got != "a\nb\tc\fd" {
		t.Fatalf("whitespace mangled: %q", got)
	}
}

func TestSanitizeTextDropsControls(t *testing.T) {
	got := SanitizeText("a\x01\x02b")
	if got != "ab" {
		t.Fatalf("controls not removed: %q", got)
	}
}

func TestSanitizeTextEmpty(t *testing.T) {
	if got := SanitizeText(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
