// Package indexer implements the Indexing Orchestrator (C8): the
// extract -> clean -> chunk -> embed -> upsert pipeline of spec §4.10,
// idempotent on content hash and compensating for partial cross-store
// failure, since no two-phase commit spans the lexical, vector, and
// relational stores (spec §5, §9).
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"ragforge/internal/rag/chunker"
	"ragforge/internal/rag/cleaner"
	"ragforge/internal/rag/embedder"
	"ragforge/internal/rag/extractor"
	"ragforge/internal/rag/ragerr"
)

// DocumentRecord is the document row the relational store holds.
type DocumentRecord struct {
	ID        string
	Tenant    string
	Owner     string
	Title     string
	SourceURI string
	Hash      string
	Public    bool
}

// ChunkRecord is the per-chunk row the relational store holds, mirroring
// spec §3's DocumentChunk entity (embeddings are not duplicated here; they
// live only in the vector index).
type ChunkRecord struct {
	ID       string
	DocID    string
	Tenant   string
	Ordinal  int
	Text     string
	Start    int
	End      int
	Metadata map[string]string
}

// DocumentLookup resolves the idempotency key (tenant, hash) to an existing
// document id, per spec §3's uniqueness invariant.
type DocumentLookup interface {
	LookupByHash(ctx context.Context, tenant, hash string) (docID string, ok bool, err error)
}

// RelationalStore persists document and chunk rows (spec §6, "Relational
// Store").
type RelationalStore interface {
	DocumentLookup
	PutDocument(ctx context.Context, doc DocumentRecord) error
	PutChunks(ctx context.Context, chunks []ChunkRecord) error
	DeleteDocument(ctx context.Context, tenant, docID string) error
}

// LexicalIndex is the narrow slice of the Lexical Index Gateway (C3) the
// orchestrator drives.
type LexicalIndex interface {
	BulkUpsertChunks(ctx context.Context, tenant string, chunks []ChunkRecord) error
	DeleteDocument(ctx context.Context, tenant, docID string) error
}

// VectorIndex is the narrow slice of the Vector Index Gateway (C4) the
// orchestrator drives.
type VectorIndex interface {
	BulkUpsertVectors(ctx context.Context, tenant string, ids []string, vectors [][]float32, payloads []map[string]string) error
	DeleteDocument(ctx context.Context, tenant, docID string) error
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Relational RelationalStore
	Lexical    LexicalIndex
	Vector     VectorIndex
	Embedder   embedder.Embedder

	Window      int // characters, default chunker.DefaultWindow
	Overlap     int // characters, default chunker.DefaultOverlap
	MaxEmbedBatch int
}

// Result summarizes a successful indexing run.
type Result struct {
	DocumentID string
	ChunkIDs   []string
	NumChunks  int
}

const defaultMaxEmbedBatch = 32

// Index runs the full C8 pipeline for one document: compute content hash,
// short-circuit on (tenant, hash) match, extract, clean, chunk, embed, and
// upsert into lexical, vector, and relational stores in that order. If the
// vector upsert fails after the lexical upsert succeeded, the lexical write
// is rolled back via delete-by-document, since the three stores are not
// transactional (spec §4.10 step 6, §5).
func Index(ctx context.Context, deps Deps, tenant, filename string, raw []byte, title, sourceURI string, owner string, public bool) (Result, error) {
	if tenant == "" {
		return Result{}, ragerr.New(ragerr.TenantMissing, "indexer: tenant required")
	}
	if len(raw) == 0 {
		return Result{}, ragerr.New(ragerr.InvalidInput, "indexer: empty document")
	}

	hash := contentHash(raw)
	if existing, ok, err := deps.Relational.LookupByHash(ctx, tenant, hash); err != nil {
		return Result{}, ragerr.Wrap(ragerr.ExternalUnavailable, err, "indexer: idempotency lookup failed")
	} else if ok {
		return Result{DocumentID: existing}, ragerr.New(ragerr.AlreadyIndexed, fmt.Sprintf("indexer: document %q already indexed", existing))
	}

	text, err := extractor.Extract(filename, raw)
	if err != nil {
		return Result{}, ragerr.WithStep(err, "extract")
	}

	cleaned := cleaner.Clean(text, cleaner.DefaultPipeline())

	window, overlap := deps.Window, deps.Overlap
	if window <= 0 {
		window = chunker.DefaultWindow
	}
	if overlap <= 0 {
		overlap = chunker.DefaultOverlap
	}
	offsetChunks := chunker.SlidingWindow(cleaned.Text, window, overlap)
	if len(offsetChunks) == 0 {
		return Result{}, ragerr.New(ragerr.InvalidInput, "indexer: document produced no chunks after cleaning")
	}

	docID := uuid.NewString()
	chunkIDs := make([]string, len(offsetChunks))
	chunks := make([]ChunkRecord, len(offsetChunks))
	texts := make([]string, len(offsetChunks))
	for i, oc := range offsetChunks {
		id := uuid.NewString()
		chunkIDs[i] = id
		texts[i] = oc.Text
		chunks[i] = ChunkRecord{
			ID: id, DocID: docID, Tenant: tenant,
			Ordinal: oc.Ordinal, Text: oc.Text, Start: oc.Start, End: oc.End,
		}
	}

	vectors, err := embedAll(ctx, deps.Embedder, texts, maxBatch(deps.MaxEmbedBatch))
	if err != nil {
		return Result{}, ragerr.WithStep(err, "embed")
	}

	if err := deps.Lexical.BulkUpsertChunks(ctx, tenant, chunks); err != nil {
		return Result{}, ragerr.WithStep(ragerr.Wrap(ragerr.ExternalUnavailable, err, "indexer: lexical upsert failed"), "index")
	}

	payloads := make([]map[string]string, len(chunks))
	for i, c := range chunks {
		payloads[i] = map[string]string{"tenant": tenant, "document_id": docID, "text": c.Text}
	}
	if err := deps.Vector.BulkUpsertVectors(ctx, tenant, chunkIDs, vectors, payloads); err != nil {
		// compensate: the lexical write already landed, roll it back.
		_ = deps.Lexical.DeleteDocument(ctx, tenant, docID)
		return Result{}, ragerr.WithStep(ragerr.Wrap(ragerr.ExternalUnavailable, err, "indexer: vector upsert failed, lexical rolled back"), "index")
	}

	doc := DocumentRecord{ID: docID, Tenant: tenant, Owner: owner, Title: title, SourceURI: sourceURI, Hash: hash, Public: public}
	if err := deps.Relational.PutDocument(ctx, doc); err != nil {
		_ = deps.Lexical.DeleteDocument(ctx, tenant, docID)
		_ = deps.Vector.DeleteDocument(ctx, tenant, docID)
		return Result{}, ragerr.WithStep(ragerr.Wrap(ragerr.ExternalUnavailable, err, "indexer: relational document write failed, lexical and vector rolled back"), "index")
	}
	if err := deps.Relational.PutChunks(ctx, chunks); err != nil {
		_ = deps.Lexical.DeleteDocument(ctx, tenant, docID)
		_ = deps.Vector.DeleteDocument(ctx, tenant, docID)
		_ = deps.Relational.DeleteDocument(ctx, tenant, docID)
		return Result{}, ragerr.WithStep(ragerr.Wrap(ragerr.ExternalUnavailable, err, "indexer: relational chunk write failed, all stores rolled back"), "index")
	}

	return Result{DocumentID: docID, ChunkIDs: chunkIDs, NumChunks: len(chunks)}, nil
}

// Delete removes a document's chunks from every store, in the reverse order
// of Index, per spec §4.10 "Deletion is the inverse in reverse order."
func Delete(ctx context.Context, deps Deps, tenant, docID string) error {
	if err := deps.Relational.DeleteDocument(ctx, tenant, docID); err != nil {
		return ragerr.Wrap(ragerr.ExternalUnavailable, err, "indexer: relational delete failed")
	}
	if err := deps.Vector.DeleteDocument(ctx, tenant, docID); err != nil {
		return ragerr.Wrap(ragerr.ExternalUnavailable, err, "indexer: vector delete failed")
	}
	if err := deps.Lexical.DeleteDocument(ctx, tenant, docID); err != nil {
		return ragerr.Wrap(ragerr.ExternalUnavailable, err, "indexer: lexical delete failed")
	}
	return nil
}

func contentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func maxBatch(n int) int {
	if n <= 0 {
		return defaultMaxEmbedBatch
	}
	return n
}

// embedAll batches texts through the embedder at most maxBatch at a time,
// preserving order, since a single embed request carries one batch (spec
// §4.1: "the caller chunks large corpora").
func embedAll(ctx context.Context, emb embedder.Embedder, texts []string, maxBatch int) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatch {
		end := i + maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := emb.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}
