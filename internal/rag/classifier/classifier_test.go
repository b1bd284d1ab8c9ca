package classifier

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristic(t *testing.T) {
	cases := map[string]Label{
		"what is the capital of france":        ExplicitFact,
		"why does the sky appear blue":         ImplicitFact,
		"compare postgres vs mysql":            InterpretableRationale,
		"what's the difference between A and B": ExplicitFact, // "what" wins, matches spec order
		"should I use hybrid search here":      HiddenRationale,
		"tell me about your day":               ImplicitFact,
	}
	for q, want := range cases {
		require.Equal(t, want, Heuristic(q), q)
	}
}

func TestHeuristic_Deterministic(t *testing.T) {
	q := "how do I configure retries"
	require.Equal(t, Heuristic(q), Heuristic(q))
}

func TestParseLabel(t *testing.T) {
	lbl, ok := parseLabel("ExplicitFact\nbecause it names a date")
	require.True(t, ok)
	require.Equal(t, ExplicitFact, lbl)

	_, ok = parseLabel("I'm not sure")
	require.False(t, ok)
}
