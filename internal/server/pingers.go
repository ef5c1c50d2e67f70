package server

import (
	"context"
	"fmt"

	"github.com/corpuslabs/ragd/internal/rag"
)

// StorePinger probes the document store's backing engine. It satisfies the
// Pinger interface and is used by GET /ready.
type StorePinger struct {
	// store is the document store to probe.
	store rag.DocumentStore
	// name identifies the backend in readiness responses (e.g. "sqlite",
	// "qdrant").
	name string
}

// NewStorePinger constructs a StorePinger for the given store and backend name.
func NewStorePinger(store rag.DocumentStore, name string) *StorePinger {
	return &StorePinger{store: store, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *StorePinger) Name() string { return p.name }

// Ping delegates to the store's own reachability check.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}
