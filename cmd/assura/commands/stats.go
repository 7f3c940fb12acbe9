package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/assura-labs/assura-go/internal/config"
	"github.com/assura-labs/assura-go/internal/logging"
)

// NewStatsCmd constructs the `assura stats` command, which prints the
// vector store's document statistics as JSON.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print vector store statistics",
		Long: `Print the indexed document statistics as JSON: total chunk count,
number of source files, and per-file chunk counts.

Examples:
  assura stats
  VECTOR_BACKEND=qdrant assura stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			settings := config.FromEnv()

			store, err := openStore(ctx, settings, log)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer store.Close()

			stats, err := store.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
