package contextassembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ragforge/internal/rag/ragerr"
)

func TestAssemble_RejectsNonPositiveBudget(t *testing.T) {
	_, err := Assemble(nil, Options{TokenBudget: 0})
	require.Equal(t, ragerr.InvalidInput, ragerr.KindOf(err))
}

func TestAssemble_FormatsSourcesSequentially(t *testing.T) {
	passages := []Passage{
		{ChunkID: "a", Text: "the quick brown fox"},
		{ChunkID: "b", Text: "jumps over the lazy dog"},
	}
	out, err := Assemble(passages, Options{TokenBudget: 1000, MinPassageTokens: 1})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out.Context, "[Source 1] the quick brown fox"))
	require.Contains(t, out.Context, "[Source 2] jumps over the lazy dog")
	require.Equal(t, "a", out.SourceMap[1])
	require.Equal(t, "b", out.SourceMap[2])
	require.Equal(t, 2, out.Included)
}

func TestAssemble_DropsBelowMinimumWhenBudgetExhausted(t *testing.T) {
	passages := []Passage{
		{ChunkID: "a", Text: strings.Repeat("word ", 100)},
		{ChunkID: "b", Text: "short tail passage"},
	}
	out, err := Assemble(passages, Options{TokenBudget: 100, MinPassageTokens: 50})
	require.NoError(t, err)
	require.Equal(t, 1, out.Included)
	require.Equal(t, 1, out.Dropped)
}

func TestAssemble_TruncatesLastFittingPassage(t *testing.T) {
	passages := []Passage{
		{ChunkID: "a", Text: strings.Repeat("word ", 200)},
	}
	out, err := Assemble(passages, Options{TokenBudget: 50, MinPassageTokens: 10})
	require.NoError(t, err)
	require.Equal(t, 1, out.Included)
	require.LessOrEqual(t, out.UsedTokens, 50)
}

func TestCountTokens_PicksLarger(t *testing.T) {
	require.Equal(t, 4, CountTokens("a b c d")) // 4 words > 7/4=1
	require.Greater(t, CountTokens(strings.Repeat("x", 400)), 50)
}
