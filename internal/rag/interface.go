// Package rag defines the core types and interfaces of the retrieval-and-answer
// pipeline: documents, embeddings, the document store, retrieval results, and
// synthesized answers. Concrete implementations (SQLite, Qdrant, the embedding
// generator) satisfy these interfaces so the HTTP layer and CLI never depend on
// a specific backend.
package rag

import (
	"context"
	"time"
)

// Document is a stored unit of knowledge: text, its embedding, and opaque
// caller-supplied metadata.
type Document struct {
	// ID is the unique identifier, derived deterministically from content
	// unless the document was inserted with duplicates allowed.
	ID string

	// Content is the raw document text.
	Content string

	// Metadata holds arbitrary key-value pairs supplied at insertion.
	// The pipeline round-trips it unchanged.
	Metadata map[string]any

	// Embedding is the dense vector for Content. All documents in one store
	// share a single dimension.
	Embedding []float32

	// CreatedAt is set at insertion and never changes, including on update.
	CreatedAt time.Time
}

// PendingDocument is a document prepared for insertion: embedded but not yet
// assigned an ID.
type PendingDocument struct {
	// Content is the raw document text.
	Content string

	// Metadata holds arbitrary key-value pairs to store with the document.
	Metadata map[string]any

	// Embedding is the pre-computed vector for Content.
	Embedding []float32
}

// Match pairs a stored document with its raw distance from a query embedding.
// Smaller distance means closer.
type Match struct {
	// Doc is the matched document.
	Doc Document

	// Distance is the cosine distance between the query and Doc.Embedding,
	// in [0, 2] for normalized vectors.
	Distance float64
}

// SearchResult is a ranked retrieval hit returned to callers.
type SearchResult struct {
	// Content is the matched document's text.
	Content string `json:"content"`

	// Score is the normalized similarity in [0, 1]; higher is more relevant.
	Score float64 `json:"score"`

	// Metadata is the document's stored metadata, unchanged.
	Metadata map[string]any `json:"metadata"`
}

// Answer is the result of a full retrieve-and-synthesize cycle.
type Answer struct {
	// Answer is the generated (or, in degraded mode, templated) answer text.
	Answer string `json:"answer"`

	// Sources lists the documents that were packed into the prompt context,
	// in descending score order.
	Sources []SearchResult `json:"sources"`

	// ModelUsed is the chat model identifier the answer was generated with.
	ModelUsed string `json:"model_used"`

	// TokensUsed is the total token usage reported by the chat service.
	// Zero in degraded mode.
	TokensUsed int `json:"tokens_used"`

	// ProcessingTime is the wall-clock duration of retrieval plus generation,
	// in seconds.
	ProcessingTime float64 `json:"processing_time"`

	// ContextDocumentsFound is the number of documents actually included in
	// the prompt context. Zero means the answer was generated from the
	// question alone.
	ContextDocumentsFound int `json:"context_documents_found"`

	// Degraded is true when the answer is a templated fallback rather than
	// model-generated output.
	Degraded bool `json:"degraded,omitempty"`
}

// BulkResult reports the outcome of a bulk insert.
type BulkResult struct {
	// AddedIDs lists the IDs of documents actually inserted. Duplicates
	// skipped under suppression are excluded.
	AddedIDs []string `json:"document_ids"`

	// TotalRequested is the full input count, including skipped duplicates.
	TotalRequested int `json:"total_requested"`
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their embeddings. The returned
	// slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentStore persists documents and serves nearest-neighbor queries.
// All embeddings in one store share a single dimension; implementations must
// reject mismatched vectors rather than truncate or pad them.
// Implementations must be safe to call from multiple goroutines, and writes
// that could race on the same derived ID must be atomic.
type DocumentStore interface {
	// Upsert stores content with its embedding and returns the assigned ID.
	// When allowDuplicates is false and a document with the same derived ID
	// already exists, the insert is skipped and the existing ID is returned.
	Upsert(ctx context.Context, content string, metadata map[string]any, embedding []float32, allowDuplicates bool) (string, error)

	// BulkUpsert inserts a batch of pending documents in one operation.
	// Under duplicate suppression, entries whose derived ID already exists
	// are skipped and excluded from the result's AddedIDs.
	BulkUpsert(ctx context.Context, docs []PendingDocument, allowDuplicates bool) (*BulkResult, error)

	// Get returns the document with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)

	// Update replaces content, metadata, and embedding of an existing
	// document, preserving its ID and CreatedAt. Returns ErrNotFound if no
	// document has the given ID.
	Update(ctx context.Context, id, content string, metadata map[string]any, embedding []float32) (*Document, error)

	// Delete removes the document with the given ID, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Query returns up to k stored documents ordered by ascending distance
	// from the given embedding (nearest first).
	Query(ctx context.Context, embedding []float32, k int) ([]Match, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// CollectionName returns the logical collection label for health reporting.
	CollectionName() string

	// Ping checks that the underlying storage is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
