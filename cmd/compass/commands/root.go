// Package commands defines all Cobra CLI commands for the compass binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/coursecompass/compass-go/internal/audit"
	"github.com/coursecompass/compass-go/internal/config"
	"github.com/coursecompass/compass-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "compass",
		Short: "Compass — search and ask questions about your course material",
		Long: `Compass indexes course documents from Canvas into a local vector store
and answers questions about them with cited sources.

Typical workflow:
  compass sync               # pull course and file listings from Canvas
  compass ingest --course N  # extract, chunk, embed, and index one course
  compass search "topic"     # retrieve relevant passages
  compass ask "question"     # generate a grounded answer with citations

Embedding backend is selected via the EMBEDDING_PROVIDER environment
variable or a YAML config file (~/.compass/config.yaml).
See 'compass --help' for available commands.`,
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.compass/config.yaml)")

	root.AddCommand(
		NewSyncCmd(),
		NewCoursesCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
