package evalengine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// AskFunc drives one ground-truth query through the query-answering
// pipeline, returning the retrieved documents (rank order), the generated
// answer, and timing. It is satisfied by a thin adapter over
// orchestrator.Ask; kept as a function type here so the runner has no
// compile-time dependency on any particular tenant/orchestrator wiring.
type AskFunc func(ctx context.Context, entry GroundTruthEntry) (SampleRun, error)

// RunOptions configures one evaluation pass.
type RunOptions struct {
	RunID       string
	ConfigID    string
	Concurrency int
	TopK        int
}

const defaultConcurrency = 4

// Run drives every ground-truth entry through ask, scores each sample, and
// aggregates the per-metric statistics plus the composite score, per spec
// §4.11. Samples run concurrently up to opt.Concurrency, grounded on the
// playground experiment runner's sharded-but-independent execution model.
func Run(ctx context.Context, entries []GroundTruthEntry, ask AskFunc, opt RunOptions) (EvaluationRun, error) {
	topK := opt.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	concurrency := opt.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([]SampleResult, len(entries))
	metricValues := make(map[string][]float64)
	latencies := make([]float64, 0, len(entries))
	var mu sync.Mutex
	var failures int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			run, err := ask(gctx, entry)
			if err == nil && run.Err != nil {
				err = run.Err
			}
			if err != nil {
				mu.Lock()
				results[i] = SampleResult{Query: entry.Query, Failed: true, Error: err.Error()}
				failures++
				mu.Unlock()
				return nil
			}

			metrics := scoreSample(run, topK)

			mu.Lock()
			results[i] = SampleResult{Query: entry.Query, Metrics: metrics}
			for name, v := range metrics {
				metricValues[name] = append(metricValues[name], v)
			}
			latencies = append(latencies, run.LatencyMS)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EvaluationRun{}, err
	}

	stats := make(map[string]MetricStats, len(metricValues)+1)
	for name, values := range metricValues {
		stats[name] = Summarize(values, 0)
	}
	if len(latencies) > 0 {
		stats["latency_ms"] = Summarize(latencies, failures)
	}

	p95 := -1.0
	if ls, ok := stats["latency_ms"]; ok {
		p95 = ls.P95
	}
	composite := CompositeScore(
		meanOf(stats, "precision_at_k"),
		meanOf(stats, "recall_at_k"),
		meanOf(stats, "mrr"),
		meanOf(stats, "token_f1"),
		p95,
	)

	return EvaluationRun{
		RunID:     opt.RunID,
		ConfigID:  opt.ConfigID,
		Stats:     stats,
		Samples:   results,
		Composite: composite,
	}, nil
}

func scoreSample(run SampleRun, topK int) map[string]float64 {
	relevant := run.Entry.RelevantDocIDs
	metrics := map[string]float64{
		"precision_at_k": PrecisionAtK(run.Retrieved, relevant, topK),
		"recall_at_k":    RecallAtK(run.Retrieved, relevant, topK),
		"mrr":            MRR(run.Retrieved, relevant),
		"exact_match":    ExactMatch(run.Answer, run.Entry.ExpectedAnswer, run.Entry.AnswerAliases),
		"token_f1":       TokenF1(run.Answer, run.Entry.ExpectedAnswer),
		"bleu4":          BLEU4(run.Answer, run.Entry.ExpectedAnswer),
		"rouge_l":        ROUGEL(run.Answer, run.Entry.ExpectedAnswer),
		"rouge_1":        ROUGE1(run.Answer, run.Entry.ExpectedAnswer),
	}
	return metrics
}

func meanOf(stats map[string]MetricStats, name string) float64 {
	s, ok := stats[name]
	if !ok {
		return 0
	}
	return s.Mean
}
