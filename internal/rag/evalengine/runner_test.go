package evalengine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_ScoresSamplesAndAggregatesStats(t *testing.T) {
	entries := []GroundTruthEntry{
		{Query: "capital of France", ExpectedAnswer: "Paris", RelevantDocIDs: []string{"doc-1"}},
		{Query: "capital of Japan", ExpectedAnswer: "Tokyo", RelevantDocIDs: []string{"doc-2"}},
	}

	ask := func(ctx context.Context, entry GroundTruthEntry) (SampleRun, error) {
		return SampleRun{
			Entry:     entry,
			Retrieved: []RetrievedDoc{{DocumentID: entry.RelevantDocIDs[0], Rank: 0}},
			Answer:    entry.ExpectedAnswer,
			LatencyMS: 100,
		}, nil
	}

	run, err := Run(context.Background(), entries, ask, RunOptions{RunID: "r1", ConfigID: "c1"})
	require.NoError(t, err)
	require.Len(t, run.Samples, 2)
	require.Equal(t, 0.1, run.Stats["precision_at_k"].Mean)
	require.Equal(t, 1.0, run.Stats["mrr"].Mean)
	require.Equal(t, 1.0, run.Stats["exact_match"].Mean)
	require.Greater(t, run.Composite, 0.0)
}

func TestRun_RecordsFailuresWithoutAbortingOtherSamples(t *testing.T) {
	entries := []GroundTruthEntry{
		{Query: "ok", ExpectedAnswer: "fine", RelevantDocIDs: []string{"doc-1"}},
		{Query: "broken", ExpectedAnswer: "n/a", RelevantDocIDs: []string{"doc-2"}},
	}

	ask := func(ctx context.Context, entry GroundTruthEntry) (SampleRun, error) {
		if entry.Query == "broken" {
			return SampleRun{}, errors.New("pipeline timeout")
		}
		return SampleRun{
			Entry:     entry,
			Retrieved: []RetrievedDoc{{DocumentID: "doc-1", Rank: 0}},
			Answer:    "fine",
			LatencyMS: 50,
		}, nil
	}

	run, err := Run(context.Background(), entries, ask, RunOptions{RunID: "r2"})
	require.NoError(t, err)
	require.Len(t, run.Samples, 2)

	var failed, ok int
	for _, s := range run.Samples {
		if s.Failed {
			failed++
		} else {
			ok++
		}
	}
	require.Equal(t, 1, failed)
	require.Equal(t, 1, ok)
}
