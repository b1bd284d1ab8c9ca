// Package chunker implements the Chunker (C7): a character sliding window
// over cleaned document text, tracking start/end offsets so the Indexing
// Orchestrator (C8) can reconstruct each chunk's position in its source
// document.
package chunker

// OffsetChunk is a chunk that additionally records its character offsets in
// the cleaned document, per spec §3's DocumentChunk invariant that offsets
// are monotonically non-decreasing and ordinals are contiguous per document.
type OffsetChunk struct {
	Ordinal int
	Text    string
	Start   int // inclusive, offset into the cleaned document
	End     int // exclusive
}

// DefaultWindow and DefaultOverlap are the spec §4.10 step-4 defaults (W/O
// in characters, not tokens): a 500-character sliding window with 50
// characters of overlap between consecutive chunks.
const (
	DefaultWindow  = 500
	DefaultOverlap = 50
)

// SlidingWindow implements the Chunker's canonical strategy: a character
// sliding window of size window with overlap characters of repetition
// between consecutive chunks, preserving start/end offsets into text.
// Window and overlap fall back to the spec defaults when non-positive;
// overlap is clamped below window so the cursor always advances.
func SlidingWindow(text string, window, overlap int) []OffsetChunk {
	if window <= 0 {
		window = DefaultWindow
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= window {
		overlap = window - 1
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var out []OffsetChunk
	ordinal := 0
	start := 0
	for start < len(runes) {
		end := start + window
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, OffsetChunk{
			Ordinal: ordinal,
			Text:    string(runes[start:end]),
			Start:   start,
			End:     end,
		})
		ordinal++
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return out
}
