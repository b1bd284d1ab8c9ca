// Package contextassembler packs ranked passages into a token-budgeted
// context string (C14), formatted as `[Source i] <text>` with an i → chunk
// id map the Source Linker (C18) consumes.
package contextassembler

import (
	"fmt"
	"strings"
	"unicode"

	"ragforge/internal/rag/ragerr"
)

// Passage is a single ranked retrieval result to consider for inclusion.
type Passage struct {
	ChunkID string
	Text    string
	Score   float64
}

// Options configures assembly.
type Options struct {
	TokenBudget      int // typically 70% of the model context window minus prompt overhead
	MinPassageTokens int // default 50
}

// Assembled is the result of packing passages under budget.
type Assembled struct {
	Context    string
	SourceMap  map[int]string // i -> chunk id, 1-indexed
	UsedTokens int
	Included   int
	Dropped    int
}

const defaultMinPassageTokens = 50

// Assemble packs passages in rank order within the token budget. A passage
// that does not fit whole is truncated to the remaining budget when at least
// MinPassageTokens remain and the truncated text keeps at least that many
// tokens; otherwise it is dropped and later passages are still considered.
func Assemble(passages []Passage, opt Options) (Assembled, error) {
	if opt.TokenBudget <= 0 {
		return Assembled{}, ragerr.New(ragerr.InvalidInput, "context assembler: token budget must be positive")
	}
	minTokens := opt.MinPassageTokens
	if minTokens <= 0 {
		minTokens = defaultMinPassageTokens
	}

	var b strings.Builder
	sourceMap := make(map[int]string)
	used := 0
	included := 0
	dropped := 0
	i := 1

	for _, p := range passages {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		tokens := CountTokens(text)
		remaining := opt.TokenBudget - used
		if remaining <= 0 {
			dropped++
			continue
		}

		if tokens > remaining {
			if remaining < minTokens {
				dropped++
				continue
			}
			text = truncateToTokens(text, remaining)
			tokens = CountTokens(text)
			if tokens < minTokens {
				dropped++
				continue
			}
		}

		if i > 1 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source %d] %s", i, text)
		sourceMap[i] = p.ChunkID
		used += tokens
		included++
		i++
	}

	return Assembled{
		Context:    b.String(),
		SourceMap:  sourceMap,
		UsedTokens: used,
		Included:   included,
		Dropped:    dropped,
	}, nil
}

// CountTokens approximates token count as max(chars/4, word count), the
// same lower-bound-vs-word-count heuristic the spec prescribes.
func CountTokens(s string) int {
	chars := len([]rune(s))
	charEstimate := chars / 4

	words := 0
	inWord := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}

	if charEstimate > words {
		return charEstimate
	}
	return words
}

// truncateToTokens trims text to approximately budget tokens by cutting at
// the nearest preceding word boundary, then re-verifying with CountTokens.
func truncateToTokens(text string, budget int) string {
	out := text
	approxChars := budget * 4
	runes := []rune(text)
	if len(runes) > approxChars {
		cut := runes[:approxChars]
		// back off to the last space so we don't split a word
		for i := len(cut) - 1; i >= 0; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
		out = strings.TrimSpace(string(cut))
	}
	// word-dense text can still exceed the budget; drop trailing words until it fits
	for CountTokens(out) > budget {
		i := strings.LastIndexFunc(out, unicode.IsSpace)
		if i < 0 {
			return ""
		}
		out = strings.TrimSpace(out[:i])
	}
	return out
}
