// Package rag defines the interfaces and core types for the retrieval-
// augmented generation pipeline: vector storage, embedding, answer
// generation, and the query engine that combines them. Concrete
// implementations (SQLite, Qdrant, OpenAI, Ollama) satisfy these interfaces
// so the chat layer never depends on a specific backend.
package rag

import (
	"context"
)

// Metadata keys attached to every ingested document chunk.
const (
	// MetaSourceFile is the base name of the file the chunk came from.
	MetaSourceFile = "source_file"
	// MetaChunkIndex is the zero-based position of the chunk within its file.
	MetaChunkIndex = "chunk_index"
	// MetaTotalChunks is the total number of chunks produced from the file.
	MetaTotalChunks = "total_chunks"
	// MetaFilePath is the original path of the source file.
	MetaFilePath = "file_path"
	// MetaExtractionMethod records which extraction strategy produced the text.
	MetaExtractionMethod = "extraction_method"
	// MetaOCRPages is the number of pages that required OCR, as a decimal string.
	MetaOCRPages = "ocr_pages"
)

// Document is a unit of ingested knowledge: one chunk of one source file.
type Document struct {
	// ID is the unique identifier, derived from the source file stem and
	// chunk index (e.g. "policy-terms_3"). Re-ingesting the same file
	// produces the same IDs, so upserts supersede prior records.
	ID string

	// Content is the cleaned text of the chunk.
	Content string

	// Metadata holds the standard chunk metadata (see the Meta* constants).
	Metadata map[string]string

	// Embedding is the dense vector for Content. Nil until the embedding
	// step has run; documents without an embedding are skipped on upsert.
	Embedding []float32
}

// ScoredDocument pairs a retrieved document with its similarity score.
type ScoredDocument struct {
	// Score is the cosine similarity against the query vector, in [-1, 1].
	Score float64

	// Doc is the retrieved document.
	Doc Document
}

// StoreStats summarises the contents of a vector store.
type StoreStats struct {
	// TotalDocuments is the number of persisted chunks.
	TotalDocuments int `json:"total_documents"`

	// FilesIndexed is the number of distinct source files represented.
	FilesIndexed int `json:"files_indexed"`

	// FileCounts maps each source file name to its chunk count.
	FileCounts map[string]int `json:"file_counts"`
}

// VectorStore persists document embeddings and performs similarity search.
// Implementations must be safe to call from multiple goroutines; a batch
// upsert must be atomic at least per document so concurrent readers never
// observe a half-written record.
type VectorStore interface {
	// Init idempotently ensures the backing storage and schema exist.
	Init(ctx context.Context) error

	// Upsert inserts or replaces documents by ID. Documents without an
	// embedding are skipped with a warning, not an error.
	Upsert(ctx context.Context, docs []Document) error

	// Search scans stored vectors, computes cosine similarity against
	// queryVector, keeps entries scoring at or above threshold, and returns
	// at most k results ordered by descending score.
	Search(ctx context.Context, queryVector []float32, k int, threshold float64) ([]ScoredDocument, error)

	// Stats reports document and per-file counts.
	Stats(ctx context.Context) (*StoreStats, error)

	// Clear removes all persisted documents.
	Clear(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// The returned slice is parallel to the input slice (output i corresponds to
// input i). Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces a plain-text answer from a system instruction and a
// user prompt. Implementations talk to an external text-generation service
// and are expected to fail occasionally — callers must degrade gracefully.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Source identifies one document cited in a query answer.
type Source struct {
	// Source is the source file name the cited chunk came from.
	Source string `json:"source"`

	// ContentPreview is a truncated preview of the cited chunk.
	ContentPreview string `json:"content_preview"`
}

// Timings records per-stage wall-clock durations for one query,
// in milliseconds.
type Timings struct {
	// TotalMS is the end-to-end query duration.
	TotalMS int64 `json:"query_time_ms"`

	// EmbeddingMS is the time spent embedding the question.
	EmbeddingMS int64 `json:"embedding_time_ms"`

	// SearchMS is the time spent in vector similarity search.
	SearchMS int64 `json:"search_time_ms"`

	// GenerationMS is the time spent in the text-generation call.
	GenerationMS int64 `json:"generation_time_ms"`
}

// QueryResult is the structured outcome of one RAG query. The query path
// always returns a well-formed QueryResult — dependency failures surface as
// a degraded answer with confidence 0, never as an error.
type QueryResult struct {
	// Answer is the generated (or canned degraded) answer text.
	Answer string `json:"answer"`

	// Sources lists the cited documents in descending-similarity order.
	Sources []Source `json:"sources"`

	// Confidence estimates how well-supported the answer is, in [0, 1].
	Confidence float64 `json:"confidence"`

	// Timings holds the per-stage durations.
	Timings Timings `json:"timings"`
}
