package chunker

import (
	"strings"
	"testing"
)

func genText(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("word")
	}
	return b.String()
}

func TestSlidingWindow_OffsetsMonotonicAndContiguous(t *testing.T) {
	text := genText(5000)
	chunks := SlidingWindow(text, DefaultWindow, DefaultOverlap)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for a long document")
	}
	for i, c := range chunks {
		if c.Ordinal != i {
			t.Fatalf("ordinal %d should be contiguous, got %d", i, c.Ordinal)
		}
		if c.End < c.Start {
			t.Fatalf("chunk %d has end < start", i)
		}
		if i > 0 && c.Start < chunks[i-1].Start {
			t.Fatalf("chunk %d start regressed relative to chunk %d", i, i-1)
		}
		runes := []rune(text)
		if string(runes[c.Start:c.End]) != c.Text {
			t.Fatalf("chunk %d text does not match text[%d:%d]", i, c.Start, c.End)
		}
	}
	last := chunks[len(chunks)-1]
	if last.End != len([]rune(text)) {
		t.Fatalf("last chunk should reach end of document, got end=%d want=%d", last.End, len([]rune(text)))
	}
}

func TestSlidingWindow_EmptyTextReturnsNoChunks(t *testing.T) {
	if chunks := SlidingWindow("", DefaultWindow, DefaultOverlap); chunks != nil {
		t.Fatalf("expected nil for empty text, got %v", chunks)
	}
}

func TestSlidingWindow_ShortTextSingleChunk(t *testing.T) {
	text := "short text"
	chunks := SlidingWindow(text, DefaultWindow, DefaultOverlap)
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk for text shorter than the window, got %d", len(chunks))
	}
	if chunks[0].Start != 0 || chunks[0].End != len([]rune(text)) {
		t.Fatalf("single chunk should span the whole text")
	}
}
