package evalengine

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleRun() EvaluationRun {
	return EvaluationRun{
		RunID:     "run-1",
		ConfigID:  "cfg-a",
		Composite: 0.71,
		Stats: map[string]MetricStats{
			"precision_at_k": {Mean: 0.8, StdDev: 0.1, Min: 0.5, Max: 1.0, P50: 0.8, P95: 0.95, Success: 10},
			"token_f1":       {Mean: 0.6, StdDev: 0.2, Min: 0.1, Max: 0.9, P50: 0.6, P95: 0.85, Success: 10},
			"latency_ms":     {Mean: 120, StdDev: 30, Min: 80, Max: 300, P50: 110, P95: 200, P99: 280, Success: 10},
		},
		Samples: []SampleResult{
			{Query: "q1", Metrics: map[string]float64{"token_f1": 0.6}},
		},
	}
}

func TestExportCSV_WritesHeaderAndMetricRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportCSV(&buf, sampleRun()))
	out := buf.String()
	require.Contains(t, out, "metric,mean,stddev,min,max,p50,p95,p99,success,failure")
	require.Contains(t, out, "token_f1")
	require.Contains(t, out, "latency_ms")
}

func TestExportJSON_OmitsSamplesWhenNotRequested(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, sampleRun(), JSONExportOptions{}))
	require.NotContains(t, buf.String(), "\"samples\"")
}

func TestExportJSON_IncludesSamplesWhenRequested(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportJSON(&buf, sampleRun(), JSONExportOptions{IncludePerQuery: true, Pretty: true}))
	require.Contains(t, buf.String(), "\"samples\"")
	require.Contains(t, buf.String(), "q1")
}

func TestExportMarkdown_GroupsSectionsAndAnnotatesSignificance(t *testing.T) {
	var buf bytes.Buffer
	comparisons := []ComparisonRow{
		{Metric: "token_f1", VariantA: "a", VariantB: "b", PValue: 0.001, PAdjusted: 0.002, CohensD: 1.2},
	}
	require.NoError(t, ExportMarkdown(&buf, sampleRun(), comparisons))
	out := buf.String()
	require.Contains(t, out, "## Retrieval")
	require.Contains(t, out, "## Generation")
	require.Contains(t, out, "## Performance")
	require.Contains(t, out, "## Comparisons")
	require.Contains(t, out, "| ** |")
}
