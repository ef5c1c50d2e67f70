package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corpuslabs/ragd/internal/logging"
)

// NewAskCmd constructs the `ragd ask` command, which answers a single
// question grounded in the stored documents and prints the result.
func NewAskCmd() *cobra.Command {
	var maxResults int
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question grounded in the stored documents",
		Long: `Retrieve relevant documents for the question and synthesize a grounded
answer through the configured chat provider.

Without a chat API key the answer is simulated from the retrieved context
and marked as degraded.

Examples:
  ragd ask "who designed Go?"
  ragd ask --max-results 5 "how does the ingestion pipeline chunk documents?"
  ragd ask --sources "what storage backends are supported?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			p, closePipeline, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closePipeline()

			// An omitted flag gets the configured default; an explicit value,
			// including 0, is validated as given.
			if !cmd.Flags().Changed("max-results") {
				maxResults = p.Synthesizer.DefaultResults()
			}

			question := strings.Join(args, " ")
			ans, err := p.Synthesizer.Ask(ctx, question, maxResults)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(ans.Answer)
			if ans.Degraded {
				fmt.Println("\n(degraded: chat provider unavailable, answer is simulated)")
			}
			log.Info("answer synthesized",
				slog.String("model", ans.ModelUsed),
				slog.Int("tokens", ans.TokensUsed),
				slog.Int("context_documents", ans.ContextDocumentsFound),
				slog.Float64("seconds", ans.ProcessingTime),
			)

			if showSources {
				fmt.Printf("\nSources (%d):\n", len(ans.Sources))
				for i, src := range ans.Sources {
					fmt.Printf("  %d. [%.3f] %s\n", i+1, src.Score, firstLine(src.Content))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxResults, "max-results", "n", 0, "Maximum context documents to retrieve (default from MAX_CHAT_RESULTS)")
	cmd.Flags().BoolVar(&showSources, "sources", false, "Print the retrieved source documents with scores")

	return cmd
}

// firstLine returns the first line of s, truncated to 120 characters.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
