package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/corpuslabs/ragd/internal/answer"
	"github.com/corpuslabs/ragd/internal/config"
	"github.com/corpuslabs/ragd/internal/docstore"
	"github.com/corpuslabs/ragd/internal/embedder"
	"github.com/corpuslabs/ragd/internal/provider"
	"github.com/corpuslabs/ragd/internal/rag"
)

// pipeline bundles the wired components shared by the serve, ask, and search
// commands.
type pipeline struct {
	// Settings is the resolved configuration the pipeline was built from.
	Settings *config.Settings
	// Store is the open document store.
	Store rag.DocumentStore
	// Embeddings is the probed embedding generator.
	Embeddings *embedder.Generator
	// Retriever performs similarity search.
	Retriever *rag.Retriever
	// Synthesizer answers questions over the corpus.
	Synthesizer *answer.Synthesizer
}

// buildPipeline resolves settings and wires the full retrieval pipeline:
// embedding generator (probed once), document store (opened at the probed
// dimension), retriever, and answer synthesizer. The returned close function
// releases the store.
func buildPipeline(ctx context.Context, log *slog.Logger) (*pipeline, func(), error) {
	set, err := config.FromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("resolving configuration: %w", err)
	}

	embedder.WarnOnSuspectModel(set, log)

	backend, err := embedder.NewBackend(set)
	if err != nil {
		return nil, nil, err
	}
	gen := embedder.NewGenerator(ctx, backend, nil, log)
	log.Info("embedder ready",
		slog.String("model", gen.ModelName()),
		slog.String("mode", string(gen.Mode())),
		slog.Int("dimension", gen.Dimension()),
	)

	store, err := docstore.Open(ctx, set, gen.Dimension())
	if err != nil {
		return nil, nil, fmt.Errorf("opening document store: %w", err)
	}
	log.Info("document store ready",
		slog.String("backend", set.Store.Backend),
		slog.String("collection", store.CollectionName()),
	)

	retriever, err := rag.NewRetriever(gen, store, &rag.RetrieverConfig{
		DefaultLimit: set.Limits.DefaultSearchLimit,
		MaxLimit:     set.Limits.MaxSearchResults,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	chat, err := provider.NewFromSettings(ctx, set)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("initialising chat provider: %w", err)
	}
	if chat == nil {
		log.Warn("no chat API key configured: answers will be simulated")
	}

	synth, err := answer.NewSynthesizer(retriever, chat, &answer.Config{
		ModelName:       set.Chat.Model,
		Timeout:         set.Limits.RequestTimeout,
		MockFallback:    set.Chat.MockFallback,
		DefaultResults:  set.Limits.DefaultChatResults,
		MaxResults:      set.Limits.MaxChatResults,
		MaxContextChars: set.Limits.MaxContextChars,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	p := &pipeline{
		Settings:    set,
		Store:       store,
		Embeddings:  gen,
		Retriever:   retriever,
		Synthesizer: synth,
	}
	return p, func() { _ = store.Close() }, nil
}
