// ClickHouse-backed run history (C21), grounded on the teacher's
// internal/agentd/metrics_clickhouse.go: clickhouse-go/v2's native
// clickhouse.Open/clickhouse.ParseDSN, a fixed target table, and a
// context-scoped timeout per query. EvaluationRun's per-sample detail and
// per-metric stats are stored as JSON columns rather than normalized rows,
// since a benchmark run's shape (arbitrary metric set, variable sample
// count) doesn't fit a fixed relational schema, and ClickHouse's JSON/String
// columns are the corpus's only precedent for semi-structured time-series
// storage.
package evalengine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

const defaultRunsTable = "evaluation_runs"

// ClickHouseStore persists EvaluationRun history so benchmark results
// survive past the process that produced them and can be compared across
// time.
type ClickHouseStore struct {
	conn    clickhouse.Conn
	table   string
	timeout time.Duration
}

// NewClickHouseStore opens a connection from a native-protocol DSN
// (clickhouse://host:9000/database?...), matching
// newClickHouseTokenMetrics's clickhouse.ParseDSN + clickhouse.Open pattern,
// and ensures the target table exists.
func NewClickHouseStore(ctx context.Context, dsn, table string, timeout time.Duration) (*ClickHouseStore, error) {
	if table == "" {
		table = defaultRunsTable
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("evalengine: parse clickhouse dsn: %w", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("evalengine: open clickhouse connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("evalengine: clickhouse ping: %w", err)
	}

	store := &ClickHouseStore{conn: conn, table: table, timeout: timeout}
	if err := store.ensureTable(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *ClickHouseStore) ensureTable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.conn.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id String,
	config_id String,
	started DateTime64(3),
	completed DateTime64(3),
	composite Float64,
	stats String,
	samples String
) ENGINE = MergeTree ORDER BY (config_id, started)
`, s.table))
}

// SaveRun appends one EvaluationRun to the history table. Runs are
// append-only: a benchmark comparison (spec §4.11's paired t-test) reads
// back prior runs by config id, so overwriting would destroy the history
// being compared against.
func (s *ClickHouseStore) SaveRun(ctx context.Context, run EvaluationRun) error {
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("evalengine: marshal stats: %w", err)
	}
	samplesJSON, err := json.Marshal(run.Samples)
	if err != nil {
		return fmt.Errorf("evalengine: marshal samples: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.conn.Exec(ctx, fmt.Sprintf(`
INSERT INTO %s (run_id, config_id, started, completed, composite, stats, samples)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, s.table), run.RunID, run.ConfigID, run.Started, run.Completed, run.Composite, string(statsJSON), string(samplesJSON))
}

// RunsForConfig returns up to limit historical runs (100 when limit <= 0) for
// a config id, oldest first by start time, for benchmark-over-time comparisons.
func (s *ClickHouseStore) RunsForConfig(ctx context.Context, configID string, limit int) ([]EvaluationRun, error) {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.conn.Query(ctx, fmt.Sprintf(`
SELECT run_id, config_id, started, completed, composite, stats, samples
FROM %s WHERE config_id = ? ORDER BY started ASC LIMIT ?
`, s.table), configID, limit)
	if err != nil {
		return nil, fmt.Errorf("evalengine: query runs: %w", err)
	}
	defer rows.Close()

	var out []EvaluationRun
	for rows.Next() {
		var run EvaluationRun
		var statsJSON, samplesJSON string
		if err := rows.Scan(&run.RunID, &run.ConfigID, &run.Started, &run.Completed, &run.Composite, &statsJSON, &samplesJSON); err != nil {
			return nil, fmt.Errorf("evalengine: scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
			return nil, fmt.Errorf("evalengine: unmarshal stats: %w", err)
		}
		if err := json.Unmarshal([]byte(samplesJSON), &run.Samples); err != nil {
			return nil, fmt.Errorf("evalengine: unmarshal samples: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Close releases the underlying ClickHouse connection.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}
