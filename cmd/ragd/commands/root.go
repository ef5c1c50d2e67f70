// Package commands defines all Cobra CLI commands for the ragd binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/corpuslabs/ragd/internal/audit"
	"github.com/corpuslabs/ragd/internal/config"
	"github.com/corpuslabs/ragd/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragd",
		Short: "ragd — document retrieval and grounded question answering",
		Long: `ragd stores documents as dense vector embeddings, retrieves them by
semantic similarity, and synthesizes grounded answers through an external
chat-completion service.

Storage backend (sqlite or qdrant), embedding provider, and chat provider
are selected via environment variables or a YAML config file
(~/.ragd/config.yaml). See 'ragd --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragd/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewIngestCmd(),
		NewVersionCmd(),
	)

	return root
}
