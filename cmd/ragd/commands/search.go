package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corpuslabs/ragd/internal/logging"
)

// NewSearchCmd constructs the `ragd search` command, which runs a semantic
// similarity search and prints the ranked results.
func NewSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the stored documents by semantic similarity",
		Long: `Embed the query and return the most similar stored documents, ranked by
similarity score in [0, 1].

Examples:
  ragd search "garbage collection"
  ragd search --limit 10 "vector databases"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			p, closePipeline, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer closePipeline()

			if !cmd.Flags().Changed("limit") {
				limit = p.Retriever.DefaultLimit()
			}

			query := strings.Join(args, " ")
			results, err := p.Retriever.Search(ctx, query, limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}
			for i, res := range results {
				fmt.Printf("%d. [%.3f] %s\n", i+1, res.Score, firstLine(res.Content))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum results to return (default from MAX_SEARCH_RESULTS settings)")

	return cmd
}
