package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/corpuslabs/ragd/internal/rag"
)

// QdrantConfig holds connection parameters for a Qdrant-backed store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// Dimension is the embedding vector size stored in this collection.
	Dimension int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// Qdrant is a rag.DocumentStore backed by a Qdrant instance. Document IDs are
// stored as UUID-formatted point IDs (see IDToUUID); content, metadata, and
// the creation timestamp live in the point payload.
type Qdrant struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client
	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrant creates a Qdrant-backed store, ensuring the target collection
// exists (creating it if necessary).
func NewQdrant(ctx context.Context, cfg *QdrantConfig) (*Qdrant, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Dimension <= 0 {
		return nil, &rag.StoreError{Op: "open", Err: fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, &rag.StoreError{Op: "open", Err: err}
	}

	s := &Qdrant{client: client, cfg: cfg}
	if err := s.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return &rag.StoreError{Op: "open", Err: fmt.Errorf("check collection: %w", err)}
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return &rag.StoreError{Op: "open", Err: fmt.Errorf("create collection %q: %w", s.cfg.Collection, err)}
	}
	return nil
}

// Upsert stores content with its embedding and returns the assigned ID.
// Because the deterministic ID is derived from content and metadata, a point
// with that ID already holds identical data; the existing point is left
// untouched so CreatedAt stays stable.
func (s *Qdrant) Upsert(ctx context.Context, content string, metadata map[string]any, embedding []float32, allowDuplicates bool) (string, error) {
	if len(embedding) != s.cfg.Dimension {
		return "", &rag.StoreError{Op: "upsert",
			Err: fmt.Errorf("embedding dimension %d does not match store dimension %d", len(embedding), s.cfg.Dimension)}
	}

	id := ContentID(content, metadata)
	if allowDuplicates {
		id = SaltedID(content, metadata)
	} else {
		existing, err := s.Get(ctx, id)
		if err != nil && err != rag.ErrNotFound {
			return "", err
		}
		if existing != nil {
			return id, nil
		}
	}

	point, err := s.buildPoint(id, content, metadata, embedding, time.Now())
	if err != nil {
		return "", err
	}
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         []*qdrant.PointStruct{point},
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return "", &rag.StoreError{Op: "upsert", Err: err}
	}
	return id, nil
}

// BulkUpsert inserts a batch of documents in one Upsert call. Under duplicate
// suppression, entries whose derived ID already exists in the collection or
// earlier in the batch are skipped.
func (s *Qdrant) BulkUpsert(ctx context.Context, docs []rag.PendingDocument, allowDuplicates bool) (*rag.BulkResult, error) {
	res := &rag.BulkResult{AddedIDs: []string{}, TotalRequested: len(docs)}
	if len(docs) == 0 {
		return res, nil
	}

	now := time.Now()
	seen := make(map[string]bool, len(docs))
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		if len(doc.Embedding) != s.cfg.Dimension {
			return nil, &rag.StoreError{Op: "bulk_upsert",
				Err: fmt.Errorf("document %d: embedding dimension %d does not match store dimension %d", i, len(doc.Embedding), s.cfg.Dimension)}
		}

		id := ContentID(doc.Content, doc.Metadata)
		if allowDuplicates {
			id = SaltedID(doc.Content, doc.Metadata)
		} else {
			if seen[id] {
				continue
			}
			existing, err := s.Get(ctx, id)
			if err != nil && err != rag.ErrNotFound {
				return nil, err
			}
			if existing != nil {
				continue
			}
		}
		seen[id] = true

		point, err := s.buildPoint(id, doc.Content, doc.Metadata, doc.Embedding, now)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
		res.AddedIDs = append(res.AddedIDs, id)
	}

	if len(points) == 0 {
		return res, nil
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, &rag.StoreError{Op: "bulk_upsert", Err: err}
	}
	return res, nil
}

// Get returns the document with the given ID, or rag.ErrNotFound.
func (s *Qdrant) Get(ctx context.Context, id string) (*rag.Document, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.cfg.Collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(IDToUUID(id))},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, &rag.StoreError{Op: "get", Err: err}
	}
	if len(points) == 0 {
		return nil, rag.ErrNotFound
	}

	p := points[0]
	doc, err := documentFromPayload(id, p.Payload)
	if err != nil {
		return nil, err
	}
	if v := p.Vectors.GetVector(); v != nil {
		doc.Embedding = v.Data
	}
	return doc, nil
}

// Update replaces content, metadata, and embedding of an existing document,
// preserving its ID and CreatedAt.
func (s *Qdrant) Update(ctx context.Context, id, content string, metadata map[string]any, embedding []float32) (*rag.Document, error) {
	if len(embedding) != s.cfg.Dimension {
		return nil, &rag.StoreError{Op: "update",
			Err: fmt.Errorf("embedding dimension %d does not match store dimension %d", len(embedding), s.cfg.Dimension)}
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	point, err := s.buildPoint(id, content, metadata, embedding, existing.CreatedAt)
	if err != nil {
		return nil, err
	}
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         []*qdrant.PointStruct{point},
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, &rag.StoreError{Op: "update", Err: err}
	}

	return &rag.Document{
		ID:        id,
		Content:   content,
		Metadata:  canonicalMetadata(metadata),
		Embedding: embedding,
		CreatedAt: existing.CreatedAt,
	}, nil
}

// Delete removes the document with the given ID, or returns rag.ErrNotFound.
func (s *Qdrant) Delete(ctx context.Context, id string) error {
	// Qdrant deletes are silent for missing points, so existence is checked
	// first to surface ErrNotFound.
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(IDToUUID(id))),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return &rag.StoreError{Op: "delete", Err: err}
	}
	return nil
}

// Query performs a cosine similarity search and returns the k nearest
// documents. Qdrant reports cosine similarity; it is converted to cosine
// distance so all stores speak the same scale.
func (s *Qdrant) Query(ctx context.Context, embedding []float32, k int) ([]rag.Match, error) {
	if k <= 0 {
		return nil, nil
	}

	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &rag.StoreError{Op: "query", Err: err}
	}

	matches := make([]rag.Match, 0, len(results))
	for _, r := range results {
		doc, err := documentFromPayload(UUIDToID(r.Id.GetUuid()), r.Payload)
		if err != nil {
			return nil, err
		}
		matches = append(matches, rag.Match{
			Doc:      *doc,
			Distance: 1 - float64(r.Score),
		})
	}
	return matches, nil
}

// Count returns the exact number of stored documents.
func (s *Qdrant) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, &rag.StoreError{Op: "count", Err: err}
	}
	return int(n), nil
}

// CollectionName returns the Qdrant collection name.
func (s *Qdrant) CollectionName() string { return s.cfg.Collection }

// Ping checks Qdrant reachability via its health endpoint.
func (s *Qdrant) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return &rag.StoreError{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *Qdrant) Close() error {
	return s.client.Close()
}

// buildPoint assembles a Qdrant point from document fields. Metadata is
// stored as a JSON string so arbitrary nested values round-trip unchanged.
func (s *Qdrant) buildPoint(id, content string, metadata map[string]any, embedding []float32, createdAt time.Time) (*qdrant.PointStruct, error) {
	meta, err := json.Marshal(canonicalMetadata(metadata))
	if err != nil {
		return nil, &rag.StoreError{Op: "upsert", Err: fmt.Errorf("metadata not serializable: %w", err)}
	}

	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(IDToUUID(id)),
		Vectors: qdrant.NewVectors(embedding...),
		Payload: qdrant.NewValueMap(map[string]any{
			"content":    content,
			"metadata":   string(meta),
			"created_at": createdAt.Unix(),
		}),
	}, nil
}

// documentFromPayload reconstructs a document from a point payload. The
// embedding is filled in separately by callers that requested vectors.
func documentFromPayload(id string, payload map[string]*qdrant.Value) (*rag.Document, error) {
	doc := &rag.Document{ID: id, Metadata: map[string]any{}}
	if payload == nil {
		return doc, nil
	}
	if v, ok := payload["content"]; ok {
		doc.Content = v.GetStringValue()
	}
	if v, ok := payload["metadata"]; ok {
		if raw := v.GetStringValue(); raw != "" {
			if err := json.Unmarshal([]byte(raw), &doc.Metadata); err != nil {
				return nil, &rag.StoreError{Op: "get", Err: fmt.Errorf("stored metadata corrupt: %w", err)}
			}
		}
	}
	if v, ok := payload["created_at"]; ok {
		doc.CreatedAt = time.Unix(v.GetIntegerValue(), 0)
	}
	return doc, nil
}
