package cleaner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClean_WhitespaceNormalization(t *testing.T) {
	res := Clean("Paris   is\t\tthe capital.\r\n\r\n\r\nOf France.", DefaultPipeline())
	require.Equal(t, "Paris is the capital.\n\nOf France.", res.Text)
	require.Contains(t, res.AppliedLog, "whitespace-normalization")
}

func TestClean_RepetitiveContentRemoval(t *testing.T) {
	res := Clean("Header\nbody line one\nHeader\nbody line two", DefaultPipeline())
	require.NotContains(t, res.AppliedLog, "repetitive-content-removal")

	res = Clean("line one\nline one\nline two", DefaultPipeline())
	require.Contains(t, res.AppliedLog, "repetitive-content-removal")
	require.Equal(t, "line one\nline two", res.Text)
}

func TestClean_WordSpacingFix(t *testing.T) {
	res := Clean("P a r i s is the capital of France.", DefaultPipeline())
	require.Contains(t, res.Text, "Paris")
}

func TestClean_DeterministicOnCleanInput(t *testing.T) {
	input := "Paris is the capital of France."
	first := Clean(input, DefaultPipeline())
	second := Clean(input, DefaultPipeline())
	require.Equal(t, first.Text, second.Text)
}

func TestClean_EmptyPipelineIsIdentity(t *testing.T) {
	res := Clean("unchanged", nil)
	require.Equal(t, "unchanged", res.Text)
	require.Empty(t, res.AppliedLog)
}
