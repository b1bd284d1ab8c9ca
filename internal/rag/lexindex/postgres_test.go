package lexindex

import "testing"

func TestTokenize(t *testing.T) {
	got := tokenize("The Quick-Brown Fox, jumps!")
	want := []string{"the", "quick", "brown", "fox", "jumps"}
	if len(got) != len(want) {
		t.Fatalf("tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHighlight_FindsFirstMatch(t *testing.T) {
	text := "Some leading filler text before the quick brown fox appears in the document body."
	snippet := highlight(text, []string{"quick"})
	if snippet == "" {
		t.Fatal("expected non-empty snippet")
	}
	if !contains(snippet, "quick") {
		t.Fatalf("snippet %q does not contain matched term", snippet)
	}
}

func TestHighlight_NoMatchFallsBackToLeadingExcerpt(t *testing.T) {
	text := "An entirely unrelated passage that shares no vocabulary with the query at all, long enough to truncate."
	snippet := highlight(text, []string{"nonexistentterm"})
	if snippet == "" {
		t.Fatal("expected non-empty fallback snippet")
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
