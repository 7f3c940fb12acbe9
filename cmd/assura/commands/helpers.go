package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/assura-labs/assura-go/internal/chunker"
	"github.com/assura-labs/assura-go/internal/config"
	"github.com/assura-labs/assura-go/internal/embedder"
	"github.com/assura-labs/assura-go/internal/extractor"
	"github.com/assura-labs/assura-go/internal/generator"
	"github.com/assura-labs/assura-go/internal/rag"
)

// embedderSettings maps the resolved configuration onto the embedder
// factory's settings.
func embedderSettings(s config.Settings) embedder.Settings {
	return embedder.Settings{
		Provider:   s.EmbeddingProvider,
		Model:      s.EmbeddingModel,
		APIKey:     s.EmbeddingAPIKey,
		Endpoint:   s.EmbeddingEndpoint,
		Dimensions: s.EmbeddingDimensions,
	}
}

// buildEmbedder validates the embedding settings and wraps the backend in
// the memoizing batch cache.
func buildEmbedder(s config.Settings, log *slog.Logger) (*embedder.Cached, error) {
	es := embedderSettings(s)
	if err := es.Validate(log); err != nil {
		return nil, err
	}

	inner, err := embedder.New(es)
	if err != nil {
		return nil, err
	}

	return embedder.NewCached(inner, embedder.CachedConfig{
		BatchSize:  s.EmbeddingBatchSize,
		Dimensions: es.ResolvedDimensions(),
	}, log), nil
}

// openStore opens and initializes the configured vector store backend.
func openStore(ctx context.Context, s config.Settings, log *slog.Logger) (rag.VectorStore, error) {
	var store rag.VectorStore

	switch s.VectorBackend {
	case "", "sqlite":
		sq, err := rag.OpenSQLiteStore(s.VectorDBPath, log)
		if err != nil {
			return nil, err
		}
		store = sq

	case "qdrant":
		qd, err := rag.NewQdrantStore(&rag.QdrantConfig{
			Host:       s.QdrantHost,
			Port:       s.QdrantPort,
			Collection: s.QdrantCollection,
			VectorSize: uint64(embedderSettings(s).ResolvedDimensions()), //nolint:gosec // dimensions are bounded
			APIKey:     s.QdrantAPIKey,
			UseTLS:     s.QdrantTLS,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", s.QdrantHost, s.QdrantPort, err)
		}
		store = qd

	default:
		return nil, fmt.Errorf("unknown vector backend %q (valid: sqlite, qdrant)", s.VectorBackend)
	}

	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// buildExtractor assembles the extraction chain for the configured OCR
// languages.
func buildExtractor(s config.Settings, log *slog.Logger) *extractor.Extractor {
	return extractor.New(extractor.DefaultChain(s.OCRPrimary, s.OCRSecondary), log)
}

// buildChunker constructs the chunker from the configured size and overlap.
func buildChunker(s config.Settings) *chunker.Chunker {
	return chunker.New(s.ChunkSize, s.ChunkOverlap)
}

// buildEngine wires the query engine from the store, embedder, and a fresh
// generation client.
func buildEngine(s config.Settings, emb rag.Embedder, store rag.VectorStore, log *slog.Logger) *rag.Engine {
	gen := generator.New(&generator.Config{
		BaseURL: s.GenerationEndpoint,
		APIKey:  s.OpenAIAPIKey,
		Model:   s.GenerationModel,
	})

	return rag.NewEngine(emb, store, gen, rag.EngineConfig{
		TopK:             s.RetrieverK,
		Threshold:        s.SimilarityThreshold,
		MaxContextLength: s.MaxContextLength,
		ConfidenceBoost:  s.ConfidenceBoost,
	}, log)
}
