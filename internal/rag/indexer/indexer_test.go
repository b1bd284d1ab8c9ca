package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ragforge/internal/rag/embedder"
	"ragforge/internal/rag/ragerr"
)

type fakeRelational struct {
	byHash map[string]string // tenant|hash -> docID
	docs   map[string]DocumentRecord
	chunks map[string][]ChunkRecord
}

func newFakeRelational() *fakeRelational {
	return &fakeRelational{byHash: map[string]string{}, docs: map[string]DocumentRecord{}, chunks: map[string][]ChunkRecord{}}
}

func (f *fakeRelational) LookupByHash(_ context.Context, tenant, hash string) (string, bool, error) {
	id, ok := f.byHash[tenant+"|"+hash]
	return id, ok, nil
}

func (f *fakeRelational) PutDocument(_ context.Context, doc DocumentRecord) error {
	f.docs[doc.ID] = doc
	f.byHash[doc.Tenant+"|"+doc.Hash] = doc.ID
	return nil
}

func (f *fakeRelational) PutChunks(_ context.Context, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	f.chunks[chunks[0].DocID] = chunks
	return nil
}

func (f *fakeRelational) DeleteDocument(_ context.Context, tenant, docID string) error {
	delete(f.chunks, docID)
	if d, ok := f.docs[docID]; ok {
		delete(f.byHash, tenant+"|"+d.Hash)
	}
	delete(f.docs, docID)
	return nil
}

type fakeLexical struct {
	byDoc map[string][]ChunkRecord
}

func newFakeLexical() *fakeLexical { return &fakeLexical{byDoc: map[string][]ChunkRecord{}} }

func (f *fakeLexical) BulkUpsertChunks(_ context.Context, _ string, chunks []ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	f.byDoc[chunks[0].DocID] = chunks
	return nil
}

func (f *fakeLexical) DeleteDocument(_ context.Context, _ string, docID string) error {
	delete(f.byDoc, docID)
	return nil
}

type fakeVector struct {
	byDoc     map[string][]string
	failOnce  bool
}

func (f *fakeVector) BulkUpsertVectors(_ context.Context, _ string, ids []string, _ [][]float32, payloads []map[string]string) error {
	if f.failOnce {
		f.failOnce = false
		return context.DeadlineExceeded
	}
	if len(ids) == 0 {
		return nil
	}
	docID := payloads[0]["document_id"]
	f.byDoc[docID] = ids
	return nil
}

func (f *fakeVector) DeleteDocument(_ context.Context, _ string, docID string) error {
	delete(f.byDoc, docID)
	return nil
}

func baseDeps() (Deps, *fakeRelational, *fakeLexical, *fakeVector) {
	rel := newFakeRelational()
	lex := newFakeLexical()
	vec := &fakeVector{byDoc: map[string][]string{}}
	deps := Deps{
		Relational: rel,
		Lexical:    lex,
		Vector:     vec,
		Embedder:   embedder.NewDeterministic(8, true, 0),
		Window:     50,
		Overlap:    10,
	}
	return deps, rel, lex, vec
}

func TestIndex_IsIdempotentOnContentHash(t *testing.T) {
	deps, rel, lex, vec := baseDeps()
	raw := []byte("Paris is the capital of France.")

	res1, err := Index(context.Background(), deps, "t1", "paris.txt", raw, "Paris", "", "owner", false)
	require.NoError(t, err)
	require.NotEmpty(t, res1.DocumentID)
	require.Len(t, rel.docs, 1)

	res2, err := Index(context.Background(), deps, "t1", "paris.txt", raw, "Paris", "", "owner", false)
	require.True(t, ragerr.Is(err, ragerr.AlreadyIndexed))
	require.Equal(t, res1.DocumentID, res2.DocumentID)
	require.Len(t, rel.docs, 1, "re-upload of identical bytes must not create a second document")
	require.Len(t, lex.byDoc, 1)
	require.Len(t, vec.byDoc, 1)
}

func TestIndex_RollsBackLexicalWhenVectorUpsertFails(t *testing.T) {
	deps, rel, lex, vec := baseDeps()
	vec.failOnce = true

	_, err := Index(context.Background(), deps, "t1", "paris.txt", []byte("Paris is the capital of France."), "Paris", "", "owner", false)
	require.Error(t, err)
	require.True(t, ragerr.Is(err, ragerr.ExternalUnavailable))
	require.Empty(t, lex.byDoc, "lexical upsert should be rolled back after the vector leg fails")
	require.Empty(t, rel.docs, "relational write should never have happened")
}

func TestIndex_RejectsEmptyDocument(t *testing.T) {
	deps, _, _, _ := baseDeps()
	_, err := Index(context.Background(), deps, "t1", "empty.txt", nil, "", "", "", false)
	require.True(t, ragerr.Is(err, ragerr.InvalidInput))
}

func TestIndex_RequiresTenant(t *testing.T) {
	deps, _, _, _ := baseDeps()
	_, err := Index(context.Background(), deps, "", "doc.txt", []byte("x"), "", "", "", false)
	require.True(t, ragerr.Is(err, ragerr.TenantMissing))
}

func TestDelete_RemovesFromEveryStoreInReverseOrder(t *testing.T) {
	deps, rel, lex, vec := baseDeps()
	res, err := Index(context.Background(), deps, "t1", "paris.txt", []byte("Paris is the capital of France."), "Paris", "", "owner", false)
	require.NoError(t, err)

	require.NoError(t, Delete(context.Background(), deps, "t1", res.DocumentID))
	require.Empty(t, rel.docs)
	require.Empty(t, lex.byDoc)
	require.Empty(t, vec.byDoc)
}
