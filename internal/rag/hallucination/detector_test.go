package hallucination

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetect_GroundingOnly(t *testing.T) {
	passages := "The Eiffel Tower is located in Paris, France. It was completed in 1889."
	answer := "The Eiffel Tower is located in Paris, France [Source 1]."

	res, err := Detect(context.Background(), answer, passages, Options{})
	require.NoError(t, err)
	require.Equal(t, 1.0, res.Grounding)
	require.Equal(t, High, res.Classification)
	require.False(t, res.RequiresHumanReview)
}

func TestDetect_UngroundedCitedSentenceForcesReview(t *testing.T) {
	passages := "The Eiffel Tower is located in Paris, France."
	answer := "The moon is made of cheese [Source 1]."

	res, err := Detect(context.Background(), answer, passages, Options{})
	require.NoError(t, err)
	require.True(t, res.RequiresHumanReview)
}

type fakeJudge struct{ score float64 }

func (f fakeJudge) Faithfulness(ctx context.Context, question, passages, answer string) (float64, error) {
	return f.score, nil
}

func TestDetect_CombinesAllThreeSignals(t *testing.T) {
	passages := "Water boils at 100 degrees Celsius at sea level."
	answer := "Water boils at 100 degrees Celsius at sea level [Source 1]."

	calls := 0
	regen := func(ctx context.Context) (string, error) {
		calls++
		return answer, nil
	}

	res, err := Detect(context.Background(), answer, passages, Options{
		RunSelfConsistency: true,
		Regenerate:         regen,
		SelfConsistencyN:   2,
		RunFaithfulness:    true,
		Judge:              fakeJudge{score: 0.9},
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.NotNil(t, res.SelfConsistency)
	require.NotNil(t, res.Faithfulness)
	require.InDelta(t, 1.0, *res.SelfConsistency, 1e-9)
	require.Equal(t, High, res.Classification)
}

func TestClassify(t *testing.T) {
	require.Equal(t, High, classify(0.9))
	require.Equal(t, Medium, classify(0.75))
	require.Equal(t, Low, classify(0.5))
}
