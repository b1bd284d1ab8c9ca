package evalengine

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ExportCSV writes one row per metric with its percentile columns, per spec
// §4.11's CSV export requirement. No third-party CSV library exists anywhere
// in the retrieved corpus, so this uses the standard library's encoding/csv.
func ExportCSV(w io.Writer, run EvaluationRun) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"metric", "mean", "stddev", "min", "max", "p50", "p95", "p99", "success", "failure"}); err != nil {
		return err
	}
	for _, name := range sortedMetricNames(run.Stats) {
		s := run.Stats[name]
		row := []string{
			name,
			formatFloat(s.Mean),
			formatFloat(s.StdDev),
			formatFloat(s.Min),
			formatFloat(s.Max),
			formatFloat(s.P50),
			formatFloat(s.P95),
			formatFloat(s.P99),
			strconv.Itoa(s.Success),
			strconv.Itoa(s.Failure),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// JSONExportOptions controls the shape of ExportJSON's output.
type JSONExportOptions struct {
	Pretty          bool
	IncludePerQuery bool
}

// ExportJSON serializes an EvaluationRun, optionally including the
// per-sample breakdown and pretty-printing.
func ExportJSON(w io.Writer, run EvaluationRun, opt JSONExportOptions) error {
	out := struct {
		RunID     string                 `json:"run_id"`
		ConfigID  string                 `json:"config_id"`
		Composite float64                `json:"composite_score"`
		Stats     map[string]MetricStats `json:"stats"`
		Samples   []SampleResult         `json:"samples,omitempty"`
	}{
		RunID:     run.RunID,
		ConfigID:  run.ConfigID,
		Composite: run.Composite,
		Stats:     run.Stats,
	}
	if opt.IncludePerQuery {
		out.Samples = run.Samples
	}

	enc := json.NewEncoder(w)
	if opt.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

// significanceMarks maps a Bonferroni-adjusted p-value to the conventional
// asterisk annotation used in the Markdown export.
func significanceMarks(pAdj float64) string {
	switch {
	case pAdj < 0.001:
		return "***"
	case pAdj < 0.01:
		return "**"
	case pAdj < 0.05:
		return "*"
	default:
		return ""
	}
}

// ComparisonRow is one pairwise variant comparison for the Markdown report.
type ComparisonRow struct {
	Metric    string
	VariantA  string
	VariantB  string
	PValue    float64
	PAdjusted float64
	CohensD   float64
}

var (
	retrievalMetrics  = map[string]bool{"precision_at_k": true, "recall_at_k": true, "mrr": true}
	generationMetrics = map[string]bool{
		"exact_match": true, "token_f1": true, "bleu4": true, "rouge_l": true, "rouge_1": true,
	}
)

// ExportMarkdown renders a human-readable report grouped into
// Retrieval/Generation/Performance sections, with comparisons annotated by
// significance per spec §4.11.
func ExportMarkdown(w io.Writer, run EvaluationRun, comparisons []ComparisonRow) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Evaluation Run %s\n\n", run.RunID)
	fmt.Fprintf(&b, "Composite score: **%.4f**\n\n", run.Composite)

	writeSection(&b, "Retrieval", run.Stats, retrievalMetrics)
	writeSection(&b, "Generation", run.Stats, generationMetrics)
	writePerformanceSection(&b, run.Stats)

	if len(comparisons) > 0 {
		b.WriteString("## Comparisons\n\n")
		b.WriteString("| Metric | A | B | p | p_adj | d | sig |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, c := range comparisons {
			fmt.Fprintf(&b, "| %s | %s | %s | %.4f | %.4f | %.4f | %s |\n",
				c.Metric, c.VariantA, c.VariantB, c.PValue, c.PAdjusted, c.CohensD, significanceMarks(c.PAdjusted))
		}
		b.WriteString("\n")
	}

	_, err := w.Write([]byte(b.String()))
	return err
}

func writeSection(b *strings.Builder, title string, stats map[string]MetricStats, include map[string]bool) {
	names := make([]string, 0)
	for name := range stats {
		if include[name] {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}
	sort.Strings(names)

	fmt.Fprintf(b, "## %s\n\n", title)
	b.WriteString("| Metric | Mean | StdDev | P50 | P95 |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, name := range names {
		s := stats[name]
		fmt.Fprintf(b, "| %s | %.4f | %.4f | %.4f | %.4f |\n", name, s.Mean, s.StdDev, s.P50, s.P95)
	}
	b.WriteString("\n")
}

func writePerformanceSection(b *strings.Builder, stats map[string]MetricStats) {
	latency, ok := stats["latency_ms"]
	if !ok {
		return
	}
	b.WriteString("## Performance\n\n")
	fmt.Fprintf(b, "- p50: %.1fms\n", latency.P50)
	fmt.Fprintf(b, "- p95: %.1fms\n", latency.P95)
	fmt.Fprintf(b, "- p99: %.1fms\n", latency.P99)
	fmt.Fprintf(b, "- success: %d, failure: %d\n\n", latency.Success, latency.Failure)
}

func sortedMetricNames(stats map[string]MetricStats) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
