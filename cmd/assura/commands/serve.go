package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/assura-labs/assura-go/internal/config"
	"github.com/assura-labs/assura-go/internal/history"
	"github.com/assura-labs/assura-go/internal/ingestion"
	"github.com/assura-labs/assura-go/internal/logging"
	"github.com/assura-labs/assura-go/internal/rag"
	"github.com/assura-labs/assura-go/internal/respcache"
	"github.com/assura-labs/assura-go/internal/server"
)

// NewServeCmd constructs the `assura serve` command, which ingests the
// document directory and starts the HTTP chat API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var skipIngest bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Ingest documents and start the assura HTTP server",
		Long: `Start the assura HTTP server.

On startup the configured document directory is ingested into the vector
store, then the chat API starts serving. If ingestion fails for every file
the server still starts in degraded mode and reports initialized=false on
/api/health.

Examples:
  assura serve
  assura serve --port 9090
  assura serve --skip-ingest
  VECTOR_BACKEND=qdrant assura serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			settings := config.FromEnv()
			if host != "" {
				settings.ServerHost = host
			}
			if port != 0 {
				settings.ServerPort = port
			}

			emb, err := buildEmbedder(settings, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			store, err := openStore(ctx, settings, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer store.Close()
			log.Info("vector store ready", slog.String("backend", settings.VectorBackend))

			ext := buildExtractor(settings, log)
			pipeline := ingestion.New(ext, buildChunker(settings), emb, store, log)

			if skipIngest {
				pipeline.Refresh(ctx)
			} else {
				summary, err := pipeline.IngestDirectory(ctx, settings.DocsDirectory)
				if err != nil {
					log.Warn("serve: ingestion failed, starting in degraded mode",
						slog.String("dir", settings.DocsDirectory),
						slog.Any("error", err),
					)
				} else {
					log.Info("ingestion complete",
						slog.Int("processed_files", summary.ProcessedFiles),
						slog.Int("failed_files", summary.FailedFiles),
						slog.Int("total_chunks", summary.TotalChunks),
					)
				}
			}

			engine := buildEngine(settings, emb, store, log)

			// Conversation history. ASSURA_HISTORY_DB=disabled turns it off.
			var historyStore *history.Store
			if settings.HistoryDBPath != "disabled" {
				hs, err := history.Open(settings.HistoryDBPath)
				if err != nil {
					log.Warn("history: failed to open store, disabling", slog.Any("error", err))
				} else {
					historyStore = hs
					defer historyStore.Close()
					log.Info("history: store opened", slog.String("path", settings.HistoryDBPath))
				}
			} else {
				log.Info("history: disabled via ASSURA_HISTORY_DB=disabled")
			}

			// Response cache. CACHE_DB_PATH=disabled turns it off.
			var respCache *respcache.Cache
			if settings.CacheDBPath != "disabled" {
				rc, err := respcache.Open(settings.CacheDBPath, settings.CacheSize, settings.CacheTTL, log)
				if err != nil {
					log.Warn("respcache: failed to open, disabling", slog.Any("error", err))
				} else {
					respCache = rc
					defer respCache.Close()
				}
			}

			srv, err := server.New(server.Dependencies{
				Engine:      engine,
				Store:       store,
				Extractor:   ext,
				EmbedCache:  emb,
				RespCache:   respCache,
				History:     historyStore,
				Initialized: pipeline.Initialized,
			}, &server.Config{
				Host:    settings.ServerHost,
				Port:    settings.ServerPort,
				Logger:  log,
				Pingers: buildPingers(settings, store),
				APIKey:  settings.ServerAPIKey,
			}, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (overrides SERVER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (overrides SERVER_PORT)")
	cmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "Skip startup ingestion and serve the existing index")

	return cmd
}

// buildPingers assembles the readiness probes for the configured backends.
// Only self-hosted dependencies are probed: the public OpenAI API is not
// worth a readiness round trip.
func buildPingers(s config.Settings, store rag.VectorStore) []server.Pinger {
	var pingers []server.Pinger

	if qd, ok := store.(*rag.QdrantStore); ok {
		pingers = append(pingers, qd)
	}
	if s.EmbeddingProvider == "ollama" && s.EmbeddingEndpoint != "" {
		pingers = append(pingers, server.NewHTTPPinger("ollama", s.EmbeddingEndpoint))
	}
	if s.GenerationEndpoint != "" {
		pingers = append(pingers, server.NewHTTPPinger("generation", s.GenerationEndpoint))
	}

	return pingers
}
