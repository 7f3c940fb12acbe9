// Package ingestion orchestrates the document pipeline: extract text from
// every supported file in a directory, chunk it, embed the chunks in one
// batched pass, and upsert the results into the vector store. Individual
// file failures are counted and skipped, never fatal.
package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/assura-labs/assura-go/internal/chunker"
	"github.com/assura-labs/assura-go/internal/extractor"
	"github.com/assura-labs/assura-go/internal/rag"
)

// Summary aggregates the outcome of one ingestion run.
type Summary struct {
	// ProcessedFiles counts files that contributed at least one chunk.
	ProcessedFiles int `json:"processed_files"`

	// FailedFiles counts files skipped due to extraction or chunking failure.
	FailedFiles int `json:"failed_files"`

	// TotalChunks counts documents sent to the vector store.
	TotalChunks int `json:"total_chunks"`

	// Failures maps failed file names to the reason they were skipped.
	Failures map[string]string `json:"failures,omitempty"`
}

// Pipeline wires the extractor, chunker, embedder, and vector store.
type Pipeline struct {
	extractor *extractor.Extractor
	chunker   *chunker.Chunker
	embedder  rag.Embedder
	store     rag.VectorStore
	log       *slog.Logger

	mu          sync.Mutex
	initialized bool
}

// New constructs a Pipeline.
func New(ex *extractor.Extractor, ch *chunker.Chunker, emb rag.Embedder, store rag.VectorStore, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{extractor: ex, chunker: ch, embedder: emb, store: store, log: log}
}

// IngestDirectory processes every supported file under dir. A single file's
// failure is recorded in the summary and skipped. The returned error is
// reserved for whole-run problems: unreadable directory, embedding transport
// failure, store write failure.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (*Summary, error) {
	summary := &Summary{Failures: make(map[string]string)}

	var docs []rag.Document
	var texts []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !extractor.Supported(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fileDocs, reason := p.processFile(ctx, path)
		if reason != "" {
			summary.FailedFiles++
			summary.Failures[filepath.Base(path)] = reason
			p.log.Warn("file skipped", slog.String("file", filepath.Base(path)), slog.String("reason", reason))
			return nil
		}

		summary.ProcessedFiles++
		for _, doc := range fileDocs {
			texts = append(texts, doc.Content)
		}
		docs = append(docs, fileDocs...)
		return nil
	})
	if err != nil {
		return summary, fmt.Errorf("ingestion: walk %s: %w", dir, err)
	}

	if len(docs) > 0 {
		vectors, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return summary, fmt.Errorf("ingestion: embed chunks: %w", err)
		}
		for i := range docs {
			docs[i].Embedding = vectors[i]
		}

		if err := p.store.Upsert(ctx, docs); err != nil {
			return summary, fmt.Errorf("ingestion: store documents: %w", err)
		}
		summary.TotalChunks = len(docs)
	}

	p.refreshInitialized(ctx)

	p.log.Info("ingestion finished",
		slog.Int("processed", summary.ProcessedFiles),
		slog.Int("failed", summary.FailedFiles),
		slog.Int("chunks", summary.TotalChunks))
	return summary, nil
}

// processFile extracts and chunks one file. A non-empty reason means the
// file was skipped.
func (p *Pipeline) processFile(ctx context.Context, path string) ([]rag.Document, string) {
	result := p.extractor.Extract(ctx, path)
	if !result.Success {
		return nil, "extraction failed: " + result.ErrorMessage
	}

	chunks := p.chunker.Chunk(result.Text)
	if len(chunks) == 0 {
		return nil, "no chunks produced"
	}

	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	docs := make([]rag.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, rag.Document{
			ID:      fmt.Sprintf("%s_%d", stem, i),
			Content: chunk,
			Metadata: map[string]string{
				rag.MetaSourceFile:       base,
				rag.MetaChunkIndex:       strconv.Itoa(i),
				rag.MetaTotalChunks:      strconv.Itoa(len(chunks)),
				rag.MetaFilePath:         path,
				rag.MetaExtractionMethod: result.Method,
				rag.MetaOCRPages:         strconv.Itoa(result.OCRPages),
			},
		})
	}
	return docs, ""
}

// refreshInitialized marks the pipeline initialized only when the store
// actually holds documents.
func (p *Pipeline) refreshInitialized(ctx context.Context) {
	stats, err := p.store.Stats(ctx)
	ok := err == nil && stats.TotalDocuments > 0

	p.mu.Lock()
	p.initialized = ok
	p.mu.Unlock()
}

// Refresh re-reads the store to update the initialized flag without running
// an ingestion pass. Used when serving a pre-built index.
func (p *Pipeline) Refresh(ctx context.Context) {
	p.refreshInitialized(ctx)
}

// Initialized reports whether the last ingestion left the store non-empty.
func (p *Pipeline) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}
