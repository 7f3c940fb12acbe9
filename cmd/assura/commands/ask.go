package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/assura-labs/assura-go/internal/config"
	"github.com/assura-labs/assura-go/internal/logging"
)

// NewAskCmd constructs the `assura ask` command, which answers a single
// question from the indexed documents and prints the result to stdout.
func NewAskCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the indexed documents",
		Long: `Ask a one-shot question. The question is embedded, the most similar
document chunks are retrieved, and an answer is generated from them.

Run 'assura ingest' first so the vector store has something to retrieve.

Examples:
  assura ask "What does my policy cover in case of theft?"
  assura ask --sources "How do I file a claim?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			settings := config.FromEnv()

			emb, err := buildEmbedder(settings, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			store, err := openStore(ctx, settings, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer store.Close()

			engine := buildEngine(settings, emb, store, log)

			result := engine.Query(ctx, args[0])

			fmt.Println(result.Answer)
			fmt.Printf("\nConfidence: %.2f\n", result.Confidence)

			if showSources && len(result.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, src := range result.Sources {
					fmt.Printf("  - %s: %s\n", src.Source, src.ContentPreview)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showSources, "sources", false, "Print the source passages the answer was grounded on")

	return cmd
}
