package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corpuslabs/ragd/internal/ingestion"
	"github.com/corpuslabs/ragd/internal/logging"
)

// NewIngestCmd constructs the `ragd ingest` command, which loads documents
// from files or URLs, chunks them, and indexes them into the document store.
func NewIngestCmd() *cobra.Command {
	var chunkSize int
	var chunkOverlap int
	var allowDuplicates bool
	var metaPairs []string

	cmd := &cobra.Command{
		Use:   "ingest [location...]",
		Short: "Ingest documents from files or URLs into the store",
		Long: `Load each location (local file path or HTTP(S) URL), split the content
into overlapping chunks, embed every chunk, and upsert the results into the
document store. Chunks whose content is already stored are skipped unless
--allow-duplicates is set.

Source metadata (title, format, source type) is inferred from each location;
--meta key=value pairs are attached to every chunk and override inferred
values on collision.

Examples:
  ragd ingest docs/handbook.md
  ragd ingest https://example.com/guides/getting-started README.md
  ragd ingest --chunk-size 500 --meta team=platform runbooks/*.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			metadata, err := parseMetaPairs(metaPairs)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			p, closePipeline, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closePipeline()

			pipe, err := ingestion.NewPipeline(p.Embeddings, p.Store, &ingestion.Config{
				ChunkSize:         chunkSize,
				ChunkOverlap:      chunkOverlap,
				MaxDocumentLength: p.Settings.Limits.MaxDocumentLength,
				AllowDuplicates:   allowDuplicates,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			sources := make([]ingestion.Source, 0, len(args))
			for _, location := range args {
				sources = append(sources, ingestion.Source{
					Location: location,
					Metadata: metadata,
				})
			}

			log.Info("starting ingestion", slog.Int("sources", len(sources)))
			report, err := pipe.Ingest(ctx, sources, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("ingested %d source(s): %d chunks added, %d duplicates skipped\n",
				report.Sources, report.ChunksAdded, report.ChunksSkipped)
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Characters per chunk (default 1000)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Characters of overlap between chunks (default 100)")
	cmd.Flags().BoolVar(&allowDuplicates, "allow-duplicates", false, "Store chunks even when identical content already exists")
	cmd.Flags().StringArrayVarP(&metaPairs, "meta", "m", nil, "Metadata key=value attached to every chunk (repeatable)")

	return cmd
}

// parseMetaPairs converts --meta key=value flags into a metadata map.
func parseMetaPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta %q: expected key=value", pair)
		}
		meta[key] = value
	}
	return meta, nil
}
