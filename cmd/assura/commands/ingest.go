package commands

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/assura-labs/assura-go/internal/config"
	"github.com/assura-labs/assura-go/internal/ingestion"
	"github.com/assura-labs/assura-go/internal/logging"
)

// NewIngestCmd constructs the `assura ingest` command, which extracts,
// chunks, embeds, and indexes a directory of documents.
func NewIngestCmd() *cobra.Command {
	var dir string
	var reset bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index policy documents into the vector store",
		Long: `Extract text from the documents in a directory and index them into the
vector store. Supported formats: PDF (native and scanned), .txt, .md.

Re-running ingest upserts chunks by ID, so unchanged files are refreshed in
place. Use --reset to drop the existing index first, e.g. after changing the
chunk size or the embedding model.

Examples:
  assura ingest
  assura ingest --dir ./policies
  assura ingest --reset
  VECTOR_BACKEND=qdrant assura ingest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			settings := config.FromEnv()
			if dir != "" {
				settings.DocsDirectory = dir
			}

			emb, err := buildEmbedder(settings, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			store, err := openStore(ctx, settings, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			if reset {
				if err := store.Clear(ctx); err != nil {
					return fmt.Errorf("ingest: reset failed: %w", err)
				}
				log.Info("vector store cleared")
			}

			ext := buildExtractor(settings, log)
			pipeline := ingestion.New(ext, buildChunker(settings), emb, store, log)

			summary, err := pipeline.IngestDirectory(ctx, settings.DocsDirectory)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Printf("Ingested %d file(s), %d chunk(s); %d file(s) failed.\n",
				summary.ProcessedFiles, summary.TotalChunks, summary.FailedFiles)

			if len(summary.Failures) > 0 {
				files := make([]string, 0, len(summary.Failures))
				for f := range summary.Failures {
					files = append(files, f)
				}
				sort.Strings(files)
				for _, f := range files {
					fmt.Printf("  failed: %s: %s\n", f, summary.Failures[f])
				}
			}

			stats := ext.Stats()
			log.Info("extraction stats",
				slog.Int("attempted", stats.FilesAttempted),
				slog.Int("succeeded", stats.FilesSucceeded),
				slog.Int("failed", stats.FilesFailed),
				slog.Int("ocr_used", stats.OCRUsed),
				slog.Any("by_strategy", stats.StrategyCounts),
			)

			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to ingest (overrides DOCS_DIRECTORY)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear the vector store before ingesting")

	return cmd
}
