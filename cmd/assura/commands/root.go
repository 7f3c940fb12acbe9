// Package commands defines all Cobra CLI commands for the assura binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/assura-labs/assura-go/internal/audit"
	"github.com/assura-labs/assura-go/internal/config"
	"github.com/assura-labs/assura-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "assura",
		Short: "Assura — insurance customer support assistant over your policy documents",
		Long: `Assura answers insurance customer questions grounded in your own policy
documents. It extracts text from PDFs (including scanned ones via OCR),
indexes the content in a vector store, and serves a chat API that retrieves
the relevant passages before generating each answer.

Configuration comes from env vars, a .env file, or a YAML config file
(~/.assura/config.yaml). Env vars always win.
See 'assura --help' for available commands.`,
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.assura/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
