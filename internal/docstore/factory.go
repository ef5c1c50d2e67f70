package docstore

import (
	"context"
	"fmt"

	"github.com/corpuslabs/ragd/internal/config"
	"github.com/corpuslabs/ragd/internal/rag"
)

// Open constructs the document store selected by the settings. The dimension
// comes from the active embedding generator so store and embedder always
// agree. Errors here are fatal: a pipeline without a store cannot serve.
func Open(ctx context.Context, set *config.Settings, dim int) (rag.DocumentStore, error) {
	switch set.Store.Backend {
	case "sqlite":
		return OpenSQLite(ctx, set.Store.Path, set.Store.Collection, dim)

	case "qdrant":
		return NewQdrant(ctx, &QdrantConfig{
			Host:       set.Store.Qdrant.Host,
			Port:       set.Store.Qdrant.Port,
			Collection: set.Store.Collection,
			Dimension:  dim,
			APIKey:     set.Store.Qdrant.APIKey,
			UseTLS:     set.Store.Qdrant.TLS,
		})

	default:
		return nil, fmt.Errorf("docstore: unknown backend %q — valid values: sqlite, qdrant", set.Store.Backend)
	}
}
