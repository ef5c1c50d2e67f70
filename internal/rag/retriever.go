package rag

import (
	"context"
	"fmt"
	"strings"
)

// Retriever embeds a query, runs a nearest-neighbor search against the
// document store, and converts raw distances into ranked, normalized
// similarity scores. It is safe for concurrent use.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store DocumentStore

	// defaultLimit is the result count used when the caller passes 0.
	defaultLimit int

	// maxLimit is the upper bound of the accepted limit range.
	maxLimit int
}

// RetrieverConfig holds the tunables for constructing a Retriever.
type RetrieverConfig struct {
	// DefaultLimit is the result count when the caller passes limit=0.
	// Defaults to 5 if zero.
	DefaultLimit int

	// MaxLimit is the largest accepted limit. Defaults to 20 if zero.
	MaxLimit int
}

// NewRetriever constructs a Retriever from the given Embedder and DocumentStore.
func NewRetriever(embedder Embedder, store DocumentStore, cfg *RetrieverConfig) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg == nil {
		cfg = &RetrieverConfig{}
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = 20
	}
	return &Retriever{
		embedder:     embedder,
		store:        store,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// DefaultLimit returns the result count callers should use when no explicit
// limit was given. Search itself never substitutes it: every limit it receives
// is validated as-is.
func (r *Retriever) DefaultLimit() int { return r.defaultLimit }

// Search embeds query and returns up to limit results ordered by descending
// similarity score. An empty query or an out-of-range limit (anything below 1,
// including an explicit 0, or above the maximum) fails with a ValidationError;
// an empty store returns an empty slice, not an error.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, Validationf("query", "must not be empty")
	}
	if limit < 1 || limit > r.maxLimit {
		return nil, Validationf("limit", "must be between 1 and %d, got %d", r.maxLimit, limit)
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	matches, err := r.store.Query(ctx, embeddings[0], limit)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	// The store returns matches nearest-first; the monotone transform keeps
	// that as descending-score order, so no re-sort is needed.
	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{
			Content:  m.Doc.Content,
			Score:    Similarity(m.Distance),
			Metadata: m.Doc.Metadata,
		})
	}
	return results, nil
}

// Similarity converts a cosine distance in [0, 2] into a similarity score in
// [0, 1]: score = 1 - d/2, floored at 0. Identical normalized vectors have
// distance ~0 and score ~1. The transform is monotone decreasing and
// deterministic.
func Similarity(distance float64) float64 {
	score := 1.0 - distance/2.0
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
