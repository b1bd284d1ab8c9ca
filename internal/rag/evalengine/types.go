// Package evalengine implements the Evaluation/Benchmark Engine (C21):
// ground-truth-driven scoring of the query pipeline, paired statistical
// comparison between variants, and CSV/JSON/Markdown export, per spec §4.11.
package evalengine

import "time"

// GroundTruthEntry is one labeled sample a benchmark run is scored against.
type GroundTruthEntry struct {
	Query          string
	ExpectedAnswer string
	AnswerAliases  []string
	RelevantDocIDs []string
	Metadata       map[string]string
}

// RetrievedDoc is one retrieval hit, identified by the document it came
// from (relevance per spec §4.11 is computed at the document granularity).
type RetrievedDoc struct {
	DocumentID string
	Rank       int // 0-based rank in the returned list
}

// SampleRun captures everything the engine needs to score one sample: the
// retrieved documents (in rank order), the generated answer, and timing.
type SampleRun struct {
	Entry            GroundTruthEntry
	Retrieved        []RetrievedDoc
	Answer           string
	LatencyMS        float64
	PromptTokens     int
	CompletionTokens int
	Err              error // non-nil marks the sample a failure
}

// SampleResult is one scored sample, retaining enough detail for a
// per-query breakdown export.
type SampleResult struct {
	Query   string
	Metrics map[string]float64
	Failed  bool
	Error   string
}

// MetricStats summarizes one metric across a run's samples, per spec §3's
// EvaluationRun entity.
type MetricStats struct {
	Mean    float64
	StdDev  float64
	Min     float64
	Max     float64
	P50     float64
	P95     float64
	P99     float64
	Success int
	Failure int
}

// EvaluationRun is the result of driving N samples through the pipeline
// under one configuration.
type EvaluationRun struct {
	RunID       string
	ConfigID    string
	Started     time.Time
	Completed   time.Time
	Stats       map[string]MetricStats
	Samples     []SampleResult
	Composite   float64
}

// DefaultTopK is the retrieval metrics' cutoff used when RunOptions.TopK is
// unset (spec §4.11: "Precision@k,
// Recall@k, MRR").
const DefaultTopK = 10
