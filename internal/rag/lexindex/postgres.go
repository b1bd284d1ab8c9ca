// Package lexindex implements the Lexical Index Gateway (C3): a
// Postgres-backed BM25 search surface, tenant-scoped, with configurable
// k1/b. Grounded on internal/persistence/databases/postgres_search.go's
// pgx/v5 + tsvector/GIN pattern, extended because ts_rank is Postgres's own
// ranking function, not literal Okapi BM25 — this gateway uses Postgres only
// to produce a tenant-filtered candidate set via the GIN index, then scores
// that candidate set with the spec's exact BM25 formula in Go, where k1/b
// are test- and config-visible.
package lexindex

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"ragforge/internal/rag/indexer"
	"ragforge/internal/rag/strategy"
)

const (
	defaultK1 = 1.2
	defaultB  = 0.75

	// candidatePoolFactor widens the Postgres-side candidate set beyond
	// top_k so the Go-side BM25 re-ranking has enough hits to reorder
	// against ts_rank's coarser ordering.
	candidatePoolFactor = 5
	minCandidatePool    = 50

	highlightRadius = 40 // characters either side of the first matched term
)

// Postgres is a tenant-scoped Okapi BM25 lexical index, backed by a single
// Postgres table shared across tenants and partitioned by a tenant_id
// column, following the row-level multi-tenancy convention the teacher uses
// for its chat/project stores.
type Postgres struct {
	pool *pgxpool.Pool
	k1   float64
	b    float64
}

// New constructs a Postgres-backed gateway and ensures its schema exists.
// k1/b fall back to the textbook Okapi BM25 defaults (1.2, 0.75) when <= 0,
// matching spec §4.2's "configurable k1/b, defaulting to standard values".
func New(ctx context.Context, pool *pgxpool.Pool, k1, b float64) (*Postgres, error) {
	if k1 <= 0 {
		k1 = defaultK1
	}
	if b <= 0 {
		b = defaultB
	}
	p := &Postgres{pool: pool, k1: k1, b: b}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, _ = p.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pg_trgm`)
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lexical_chunks (
  chunk_id    TEXT PRIMARY KEY,
  tenant_id   TEXT NOT NULL,
  doc_id      TEXT NOT NULL,
  ordinal     INT NOT NULL DEFAULT 0,
  text        TEXT NOT NULL,
  metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
  token_count INT NOT NULL DEFAULT 0,
  ts          tsvector GENERATED ALWAYS AS (to_tsvector('simple', coalesce(text,''))) STORED
)`)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS lexical_chunks_ts_idx ON lexical_chunks USING GIN (ts)`)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS lexical_chunks_tenant_idx ON lexical_chunks (tenant_id, doc_id)`)
	return err
}

// BulkUpsertChunks satisfies indexer.LexicalIndex.
func (p *Postgres) BulkUpsertChunks(ctx context.Context, tenant string, chunks []indexer.ChunkRecord) error {
	for _, c := range chunks {
		tokens := tokenize(c.Text)
		md := c.Metadata
		if md == nil {
			md = map[string]string{}
		}
		_, err := p.pool.Exec(ctx, `
INSERT INTO lexical_chunks(chunk_id, tenant_id, doc_id, ordinal, text, metadata, token_count)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (chunk_id) DO UPDATE SET
  tenant_id=EXCLUDED.tenant_id, doc_id=EXCLUDED.doc_id, ordinal=EXCLUDED.ordinal,
  text=EXCLUDED.text, metadata=EXCLUDED.metadata, token_count=EXCLUDED.token_count
`, c.ID, tenant, c.DocID, c.Ordinal, c.Text, md, len(tokens))
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteDocument satisfies both indexer.LexicalIndex and the C3 gateway
// contract's document-scoped delete.
func (p *Postgres) DeleteDocument(ctx context.Context, tenant, docID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM lexical_chunks WHERE tenant_id=$1 AND doc_id=$2`, tenant, docID)
	return err
}

type candidate struct {
	chunkID, docID, text string
	metadata             map[string]string
	tokenCount           int
}

// Search satisfies strategy.LexicalSearcher: it pulls a tenant-filtered
// candidate set from Postgres via the GIN-indexed tsvector, then scores that
// set with literal Okapi BM25 (idf * tf*(k1+1) / (tf + k1*(1-b+b*dl/avgdl))),
// computing per-term document frequency with one tenant-scoped COUNT query
// per distinct query term.
func (p *Postgres) Search(ctx context.Context, query string, topK int, tenant string) ([]strategy.LexicalHit, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	pool := topK * candidatePoolFactor
	if pool < minCandidatePool {
		pool = minCandidatePool
	}

	rows, err := p.pool.Query(ctx, `
SELECT chunk_id, doc_id, text, metadata, token_count
FROM lexical_chunks
WHERE tenant_id = $1 AND ts @@ plainto_tsquery('simple', $2)
ORDER BY ts_rank(ts, plainto_tsquery('simple', $2)) DESC
LIMIT $3
`, tenant, query, pool)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []candidate
	var totalTokens int64
	for rows.Next() {
		var c candidate
		var md map[string]string
		if err := rows.Scan(&c.chunkID, &c.docID, &c.text, &md, &c.tokenCount); err != nil {
			return nil, err
		}
		c.metadata = md
		candidates = append(candidates, c)
		totalTokens += int64(c.tokenCount)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var docCount int64
	var avgdl float64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM lexical_chunks WHERE tenant_id=$1`, tenant).Scan(&docCount); err != nil {
		return nil, err
	}
	if docCount > 0 {
		var totalAll float64
		if err := p.pool.QueryRow(ctx, `SELECT coalesce(sum(token_count),0) FROM lexical_chunks WHERE tenant_id=$1`, tenant).Scan(&totalAll); err != nil {
			return nil, err
		}
		avgdl = totalAll / float64(docCount)
	}
	if avgdl <= 0 {
		avgdl = 1
	}

	idf := make(map[string]float64, len(terms))
	for _, term := range terms {
		var df int64
		if err := p.pool.QueryRow(ctx, `
SELECT count(*) FROM lexical_chunks WHERE tenant_id=$1 AND ts @@ plainto_tsquery('simple', $2)
`, tenant, term).Scan(&df); err != nil {
			return nil, err
		}
		idf[term] = math.Log(1 + (float64(docCount)-float64(df)+0.5)/(float64(df)+0.5))
	}

	out := make([]strategy.LexicalHit, 0, len(candidates))
	for _, c := range candidates {
		docTokens := tokenize(c.text)
		tf := make(map[string]int, len(docTokens))
		for _, tok := range docTokens {
			tf[tok]++
		}
		dl := float64(len(docTokens))
		if dl == 0 {
			dl = 1
		}
		var score float64
		for _, term := range terms {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			denom := f + p.k1*(1-p.b+p.b*dl/avgdl)
			score += idf[term] * (f * (p.k1 + 1)) / denom
		}
		out = append(out, strategy.LexicalHit{
			ChunkID:  c.chunkID,
			DocID:    c.docID,
			Score:    score,
			Text:     c.text,
			Metadata: withHighlight(c.metadata, highlight(c.text, terms)),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases and splits on runs of non-alphanumeric characters,
// matching the 'simple' Postgres text search configuration this gateway
// uses for its generated tsvector column (no stemming, no stopwords, so the
// Go-side tokenizer and Postgres's own tokenizer agree on term boundaries).
func tokenize(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

// highlight extracts a snippet around the first occurrence of any query
// term, per spec's C3 "highlight extraction" requirement. Falls back to a
// leading excerpt when no term is found verbatim (e.g. it only matched via
// Postgres's tsvector normalization).
func highlight(text string, terms []string) string {
	lower := strings.ToLower(text)
	best := -1
	for _, term := range terms {
		if idx := strings.Index(lower, term); idx >= 0 && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best == -1 {
		if len(text) > 2*highlightRadius {
			return strings.TrimSpace(text[:2*highlightRadius]) + "..."
		}
		return text
	}
	start := best - highlightRadius
	if start < 0 {
		start = 0
	}
	end := best + highlightRadius
	if end > len(text) {
		end = len(text)
	}
	snippet := strings.TrimSpace(text[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet = snippet + "..."
	}
	return snippet
}

func withHighlight(metadata map[string]string, snippet string) map[string]string {
	out := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	out["highlight"] = snippet
	return out
}
