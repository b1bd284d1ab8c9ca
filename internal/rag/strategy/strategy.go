// Package strategy implements the Retrieval Strategies (C10-C13): BM25,
// Dense, Hybrid, and Adaptive, sharing the single contract
// `search(query, top_k, tenant, cancel) -> ordered []Result` that spec §4.2
// requires of every retriever.
package strategy

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"ragforge/internal/rag/classifier"
	"ragforge/internal/rag/ragerr"
)

// Kind names a retrieval strategy.
type Kind string

const (
	BM25    Kind = "bm25"
	Dense   Kind = "dense"
	Hybrid  Kind = "hybrid"
	Adaptive Kind = "adaptive"
)

// Result is a single retrieval hit.
type Result struct {
	ChunkID  string
	DocID    string
	Score    float64
	Text     string
	Metadata map[string]string
}

// LexicalHit is a raw hit from the Lexical Index Gateway (C3).
type LexicalHit struct {
	ChunkID  string
	DocID    string
	Score    float64 // raw BM25-comparable score
	Text     string
	Metadata map[string]string
}

// VectorHit is a raw hit from the Vector Index Gateway (C4).
type VectorHit struct {
	ChunkID  string
	DocID    string
	Cosine   float64 // raw cosine in [-1, 1]
	Text     string
	Metadata map[string]string
}

// LexicalSearcher is the C3 collaborator contract, narrowed to search.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, topK int, tenant string) ([]LexicalHit, error)
}

// VectorSearcher is the C4 collaborator contract, narrowed to search.
type VectorSearcher interface {
	Search(ctx context.Context, queryVec []float32, topK int, tenant string) ([]VectorHit, error)
}

// QueryEmbedder embeds a single query string (C2, single-element batch).
type QueryEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// MaxTopK bounds every retriever's top_k, per spec's InvalidInput contract.
const MaxTopK = 100

func validateQuery(query string, topK int) error {
	if query == "" {
		return ragerr.New(ragerr.InvalidInput, "retrieval: empty query")
	}
	if topK < 1 || topK > MaxTopK {
		return ragerr.New(ragerr.InvalidInput, fmt.Sprintf("retrieval: top_k %d out of range [1,%d]", topK, MaxTopK))
	}
	return nil
}

// SearchBM25 (C10): requests up to top_k hits from the lexical gateway, then
// normalizes raw scores by the maximum score in the result set so the top
// result is always 1.0. Empty result set returns empty with no floor score.
func SearchBM25(ctx context.Context, lex LexicalSearcher, query string, topK int, tenant string) ([]Result, error) {
	if err := validateQuery(query, topK); err != nil {
		return nil, err
	}
	hits, err := lex.Search(ctx, query, topK, tenant)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ExternalUnavailable, err, "bm25: lexical gateway unreachable")
	}
	if len(hits) == 0 {
		return nil, nil
	}
	maxScore := hits[0].Score
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		score := 0.0
		if maxScore > 0 {
			score = h.Score / maxScore
		}
		out[i] = Result{ChunkID: h.ChunkID, DocID: h.DocID, Score: score, Text: h.Text, Metadata: h.Metadata}
	}
	return out, nil
}

const defaultDenseThreshold = 0.5

// SearchDense (C11): embeds the query (single-element batch), queries the
// vector gateway, maps cosine [-1,1] to [0,1], drops results below
// threshold, and breaks ties by ascending chunk id for determinism.
func SearchDense(ctx context.Context, vec VectorSearcher, emb QueryEmbedder, query string, topK int, tenant string, threshold float64) ([]Result, error) {
	if err := validateQuery(query, topK); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = defaultDenseThreshold
	}
	vecs, err := emb.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, ragerr.New(ragerr.ResponseShapeMismatch, "dense: query embedding returned wrong cardinality")
	}
	hits, err := vec.Search(ctx, vecs[0], topK, tenant)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ExternalUnavailable, err, "dense: vector gateway unreachable")
	}

	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		normalized := (h.Cosine + 1) / 2
		if normalized < threshold {
			continue
		}
		out = append(out, Result{ChunkID: h.ChunkID, DocID: h.DocID, Score: normalized, Text: h.Text, Metadata: h.Metadata})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out, nil
}

// FusionMethod selects how Hybrid combines its two legs.
type FusionMethod string

const (
	Weighted FusionMethod = "weighted"
	RRF      FusionMethod = "rrf"
)

const defaultRRFConstant = 60
const fusionTolerance = 1e-3

// HybridOptions configures the Hybrid retriever (C12).
type HybridOptions struct {
	IntermediateK   int
	Fusion          FusionMethod
	Alpha, Beta     float64 // weighted fusion; must be within fusionTolerance of summing to 1
	RRFConstant     int
	DenseThreshold  float64
}

// HybridResult additionally reports leg degradation.
type HybridResult struct {
	Results   []Result
	Degraded  bool
	Degraded1Leg string // "bm25" or "dense" when one leg failed
}

// SearchHybrid (C12): launches BM25 and dense concurrently for
// intermediate_k = max(2*top_k, configured), awaits both, tolerates a single
// leg failure (records degradation), fuses by Weighted or RRF.
func SearchHybrid(ctx context.Context, lex LexicalSearcher, vec VectorSearcher, emb QueryEmbedder, query string, topK int, tenant string, opt HybridOptions) (HybridResult, error) {
	if err := validateQuery(query, topK); err != nil {
		return HybridResult{}, err
	}
	intermediateK := opt.IntermediateK
	if 2*topK > intermediateK {
		intermediateK = 2 * topK
	}

	var bm25Results, denseResults []Result
	var bm25Err, denseErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		bm25Results, bm25Err = SearchBM25(ctx, lex, query, intermediateK, tenant)
	}()
	go func() {
		defer wg.Done()
		denseResults, denseErr = SearchDense(ctx, vec, emb, query, intermediateK, tenant, opt.DenseThreshold)
	}()
	wg.Wait()

	if bm25Err != nil && denseErr != nil {
		return HybridResult{}, ragerr.New(ragerr.ExternalUnavailable, "hybrid: both retrieval legs failed")
	}

	result := HybridResult{}
	switch {
	case bm25Err != nil:
		result.Degraded = true
		result.Degraded1Leg = "bm25"
		bm25Results = nil
	case denseErr != nil:
		result.Degraded = true
		result.Degraded1Leg = "dense"
		denseResults = nil
	}

	var fused []Result
	switch opt.Fusion {
	case RRF:
		fused = fuseRRF(bm25Results, denseResults, opt.RRFConstant)
	default:
		fused = fuseWeighted(bm25Results, denseResults, opt.Alpha, opt.Beta)
	}
	if len(fused) > topK {
		fused = fused[:topK]
	}
	result.Results = fused
	return result, nil
}

func fuseWeighted(bm25, dense []Result, alpha, beta float64) []Result {
	if alpha == 0 && beta == 0 {
		alpha, beta = 0.5, 0.5
	}
	if math.Abs(alpha+beta-1) > fusionTolerance {
		sum := alpha + beta
		if sum > 0 {
			alpha, beta = alpha/sum, beta/sum
		} else {
			alpha, beta = 0.5, 0.5
		}
	}

	bm25Norm := minMaxNormalize(bm25)
	denseNorm := minMaxNormalize(dense)

	byID := make(map[string]*Result)
	order := make([]string, 0, len(bm25)+len(dense))
	for id, s := range bm25Norm {
		r := findByID(bm25, id)
		byID[id] = &Result{ChunkID: id, DocID: r.DocID, Text: r.Text, Metadata: r.Metadata, Score: alpha * s}
		order = append(order, id)
	}
	for id, s := range denseNorm {
		if existing, ok := byID[id]; ok {
			existing.Score += beta * s
			continue
		}
		r := findByID(dense, id)
		byID[id] = &Result{ChunkID: id, DocID: r.DocID, Text: r.Text, Metadata: r.Metadata, Score: beta * s}
		order = append(order, id)
	}

	out := make([]Result, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

func minMaxNormalize(results []Result) map[string]float64 {
	out := make(map[string]float64, len(results))
	if len(results) == 0 {
		return out
	}
	min, max := results[0].Score, results[0].Score
	for _, r := range results {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	spread := max - min
	for _, r := range results {
		if spread == 0 {
			out[r.ChunkID] = 1
			continue
		}
		out[r.ChunkID] = (r.Score - min) / spread
	}
	return out
}

func findByID(results []Result, id string) Result {
	for _, r := range results {
		if r.ChunkID == id {
			return r
		}
	}
	return Result{}
}

func fuseRRF(bm25, dense []Result, k int) []Result {
	if k <= 0 {
		k = defaultRRFConstant
	}
	scores := make(map[string]float64)
	byID := make(map[string]Result)
	order := make([]string, 0, len(bm25)+len(dense))
	for rank, r := range bm25 {
		scores[r.ChunkID] += 1.0 / float64(k+rank+1)
		if _, ok := byID[r.ChunkID]; !ok {
			byID[r.ChunkID] = r
			order = append(order, r.ChunkID)
		}
	}
	for rank, r := range dense {
		scores[r.ChunkID] += 1.0 / float64(k+rank+1)
		if _, ok := byID[r.ChunkID]; !ok {
			byID[r.ChunkID] = r
			order = append(order, r.ChunkID)
		}
	}
	out := make([]Result, 0, len(order))
	for _, id := range order {
		r := byID[id]
		r.Score = scores[id]
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

// AdaptiveOptions configures Adaptive (C13) routing.
type AdaptiveOptions struct {
	Override string // case-insensitive strategy tag; bypasses the classifier when non-empty
	Hybrid   HybridOptions
}

var overrideToKind = map[string]Kind{
	"bm25":   BM25,
	"dense":  Dense,
	"hybrid": Hybrid,
}

var labelToKind = map[classifier.Label]Kind{
	classifier.ExplicitFact:           BM25,
	classifier.ImplicitFact:           Hybrid,
	classifier.InterpretableRationale: Dense,
	classifier.HiddenRationale:        Dense,
}

// ResolveKind determines which concrete strategy Adaptive should dispatch
// to, given an optional override and a classifier label. Exported so the
// Query Orchestrator (C20) can log the decision independent of execution.
func ResolveKind(override string, label classifier.Label) (Kind, error) {
	if override != "" {
		kind, ok := overrideToKind[normalizeOverride(override)]
		if !ok {
			return "", ragerr.New(ragerr.InvalidInput, fmt.Sprintf("retrieval: invalid strategy override %q", override))
		}
		return kind, nil
	}
	kind, ok := labelToKind[label]
	if !ok {
		return Hybrid, nil
	}
	return kind, nil
}

func normalizeOverride(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
