// Package vecindex implements the Vector Index Gateway (C4): a
// Qdrant-backed nearest-neighbor search surface, tenant-scoped via a payload
// filter. Grounded on
// internal/persistence/databases/qdrant_vector.go (gRPC client, dimension
// validation, the `_original_id` payload convention for non-UUID chunk ids),
// extended with a mandatory `tenant` payload field pushed into every
// search/delete filter so one collection can serve every tenant without
// cross-tenant leakage.
package vecindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"ragforge/internal/rag/strategy"
)

const payloadOriginalID = "_original_id"
const payloadTenant = "tenant"
const payloadDocID = "document_id"

// Qdrant is a tenant-scoped vector index gateway backed by a single Qdrant
// collection shared across tenants.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// New parses a Qdrant gRPC DSN (host[:port], optional `api_key` query
// param, matching the teacher's NewQdrantVector convention) and ensures the
// collection exists with a cosine-distance vector config of the given
// dimension.
func New(ctx context.Context, dsn, collection string, dimension int) (*Qdrant, error) {
	if collection == "" {
		return nil, fmt.Errorf("vecindex: collection name is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("vecindex: dimension must be > 0")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vecindex: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vecindex: invalid port in dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vecindex: create client: %w", err)
	}
	q := &Qdrant{client: client, collection: collection, dimension: dimension}
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("vecindex: check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vecindex: create collection: %w", err)
	}
	return nil
}

func pointIDFor(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// BulkUpsertVectors satisfies indexer.VectorIndex. Every point's payload is
// stamped with the owning tenant; the document id is taken from the
// caller's payload (`document_id`, which the indexer sets), so
// Search/DeleteDocument can filter by them server-side.
func (q *Qdrant) BulkUpsertVectors(ctx context.Context, tenant string, ids []string, vectors [][]float32, payloads []map[string]string) error {
	if len(ids) != len(vectors) || len(ids) != len(payloads) {
		return fmt.Errorf("vecindex: ids/vectors/payloads length mismatch")
	}
	points := make([]*qdrant.PointStruct, len(ids))
	for i, id := range ids {
		pointID := pointIDFor(id)
		metadataAny := make(map[string]any, len(payloads[i])+2)
		for k, v := range payloads[i] {
			metadataAny[k] = v
		}
		metadataAny[payloadTenant] = tenant
		if pointID != id {
			metadataAny[payloadOriginalID] = id
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(metadataAny),
		}
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: q.collection, Points: points})
	return err
}

// DeleteDocument removes every point whose payload matches this tenant and
// document id, satisfying indexer.VectorIndex.
func (q *Qdrant) DeleteDocument(ctx context.Context, tenant, docID string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(payloadTenant, tenant),
			qdrant.NewMatch(payloadDocID, docID),
		},
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	return err
}

// Search satisfies strategy.VectorSearcher: every query is scoped to the
// tenant via a payload filter, so no result from another tenant's documents
// can surface.
func (q *Qdrant) Search(ctx context.Context, queryVec []float32, topK int, tenant string) ([]strategy.VectorHit, error) {
	if topK <= 0 {
		topK = 10
	}
	vec := make([]float32, len(queryVec))
	copy(vec, queryVec)
	limit := uint64(topK)
	result, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadTenant, tenant)},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	hits := make([]strategy.VectorHit, 0, len(result))
	for _, hit := range result {
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		metadata := make(map[string]string)
		var originalID, docID string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				switch k {
				case payloadOriginalID:
					originalID = v.GetStringValue()
				case payloadTenant:
					// not surfaced; implied by the query itself
				default:
					metadata[k] = v.GetStringValue()
				}
				if k == payloadDocID {
					docID = v.GetStringValue()
				}
			}
		}
		id := originalID
		if id == "" {
			id = uuidStr
		}
		text := metadata["text"]
		hits = append(hits, strategy.VectorHit{
			ChunkID:  id,
			DocID:    docID,
			Cosine:   float64(hit.Score),
			Text:     text,
			Metadata: metadata,
		})
	}
	return hits, nil
}

// Close releases the underlying gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}
