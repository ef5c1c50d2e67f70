package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/corpuslabs/ragd/internal/logging"
	"github.com/corpuslabs/ragd/internal/server"
	"github.com/corpuslabs/ragd/internal/tracing"
	"github.com/corpuslabs/ragd/internal/version"
)

// NewServeCmd constructs the `ragd serve` command, which starts the HTTP
// server exposing the document, search, and chat API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragd HTTP server",
		Long: `Start the ragd HTTP server.

The server exposes a REST API for document management (add, bulk add, get,
update, delete), semantic search, and grounded chat, plus health, readiness,
and Prometheus metrics endpoints.

Examples:
  ragd serve
  ragd serve --port 9090
  STORE_BACKEND=qdrant ragd serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			p, closePipeline, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer closePipeline()

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup(p.Settings.Tracing)
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			set := p.Settings
			if host == "" {
				host = set.Server.Host
			}
			if port == 0 {
				port = set.Server.Port
			}

			srv, err := server.New(server.Deps{
				Store:       p.Store,
				Embeddings:  p.Embeddings,
				Retriever:   p.Retriever,
				Synthesizer: p.Synthesizer,
			}, &server.Config{
				Host:               host,
				Port:               port,
				Logger:             log,
				Pingers:            []server.Pinger{server.NewStorePinger(p.Store, set.Store.Backend)},
				APIKey:             set.Server.APIKey,
				MaxDocumentLength:  set.Limits.MaxDocumentLength,
				DefaultSearchLimit: set.Limits.DefaultSearchLimit,
				Version:            version.Version,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default from SERVER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default from SERVER_PORT)")

	return cmd
}
