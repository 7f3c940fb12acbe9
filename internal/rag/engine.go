package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Canned answers returned by the query path instead of errors.
const (
	// NoResultsAnswer is returned when no stored document clears the
	// similarity threshold. A normal outcome, not a failure.
	NoResultsAnswer = "I could not find relevant information about this in the available documentation. " +
		"Please try rephrasing your question, or contact our support team for further assistance."

	// DegradedAnswer is returned when embedding, search, or generation
	// fails. The query path never surfaces a raw error to the caller.
	DegradedAnswer = "Sorry, an error occurred while processing your request. Please try again in a moment."
)

// defaultSystemPrompt is the fixed persona and operating rules for answer
// generation. The model must answer only from the supplied context.
const defaultSystemPrompt = `You are an assistant for an insurance company's customer support.
Answer the customer's question using ONLY the information in the provided context.
Rules:
- Base every statement on the context; never invent policy details, prices, or terms.
- Cite the source document(s) you drew from.
- If the context does not contain enough information to answer, say so explicitly and suggest contacting support.
- Be concise, professional, and courteous.`

// sourcePreviewLen bounds the content preview attached to each cited source.
const sourcePreviewLen = 200

// EngineConfig tunes the retrieval and answer-generation behaviour.
type EngineConfig struct {
	// TopK is the maximum number of neighbours retrieved per query.
	TopK int

	// Threshold is the minimum cosine similarity for a neighbour to count.
	Threshold float64

	// MaxContextLength is the character budget for the assembled context.
	MaxContextLength int

	// ConfidenceBoost scales the mean neighbour similarity before clamping
	// to [0, 1]. Empirically tuned, kept configurable.
	ConfidenceBoost float64

	// StageTimeout bounds each external call (embedding, search,
	// generation). Zero means no per-stage timeout.
	StageTimeout time.Duration

	// SystemPrompt overrides the default generation instructions when set.
	SystemPrompt string
}

// Engine answers questions by embedding them, retrieving similar document
// chunks from the vector store, and asking the generator to compose an
// answer grounded in that context.
type Engine struct {
	embedder  Embedder
	store     VectorStore
	generator Generator
	cfg       EngineConfig
	log       *slog.Logger
}

// NewEngine wires an Engine from its collaborators. Zero config fields are
// replaced with working defaults.
func NewEngine(embedder Embedder, store VectorStore, generator Generator, cfg EngineConfig, log *slog.Logger) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = 4000
	}
	if cfg.ConfidenceBoost <= 0 {
		cfg.ConfidenceBoost = 1.2
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{embedder: embedder, store: store, generator: generator, cfg: cfg, log: log}
}

// stageContext derives a per-stage context, honouring the configured timeout.
func (e *Engine) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.StageTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.StageTimeout)
	}
	return context.WithCancel(ctx)
}

// Query runs the full retrieval-augmented flow for one question. It always
// returns a well-formed result: dependency failures produce a degraded
// canned answer with confidence 0 rather than an error.
func (e *Engine) Query(ctx context.Context, question string) *QueryResult {
	start := time.Now()
	result := &QueryResult{Sources: []Source{}}
	defer func() { result.Timings.TotalMS = time.Since(start).Milliseconds() }()

	embedStart := time.Now()
	embedCtx, cancel := e.stageContext(ctx)
	vectors, err := e.embedder.Embed(embedCtx, []string{question})
	cancel()
	result.Timings.EmbeddingMS = time.Since(embedStart).Milliseconds()
	if err != nil || len(vectors) == 0 {
		e.log.Error("query embedding failed", slog.Any("error", err))
		result.Answer = DegradedAnswer
		return result
	}

	searchStart := time.Now()
	searchCtx, cancel := e.stageContext(ctx)
	neighbours, err := e.store.Search(searchCtx, vectors[0], e.cfg.TopK, e.cfg.Threshold)
	cancel()
	result.Timings.SearchMS = time.Since(searchStart).Milliseconds()
	if err != nil {
		e.log.Error("similarity search failed", slog.Any("error", err))
		result.Answer = DegradedAnswer
		return result
	}

	if len(neighbours) == 0 {
		e.log.Info("no documents above threshold",
			slog.Float64("threshold", e.cfg.Threshold),
			slog.String("question", question))
		result.Answer = NoResultsAnswer
		return result
	}

	contextText, used := e.buildContext(neighbours)

	genStart := time.Now()
	genCtx, cancel := e.stageContext(ctx)
	answer, err := e.generator.Generate(genCtx, e.cfg.SystemPrompt, formatUserPrompt(contextText, question))
	cancel()
	result.Timings.GenerationMS = time.Since(genStart).Milliseconds()
	if err != nil {
		e.log.Error("answer generation failed", slog.Any("error", err))
		result.Answer = DegradedAnswer
		return result
	}

	result.Answer = answer
	result.Sources = sourcesOf(used)
	result.Confidence = e.confidence(used)

	e.log.Info("query answered",
		slog.Int("neighbours", len(neighbours)),
		slog.Int("used", len(used)),
		slog.Float64("confidence", result.Confidence))
	return result
}

// buildContext assembles the generation context from neighbours in
// descending-score order. A document whose block would push the context past
// the budget is skipped whole, never truncated; later smaller documents may
// still fit.
func (e *Engine) buildContext(neighbours []ScoredDocument) (string, []ScoredDocument) {
	const separator = "\n---\n"

	var blocks []string
	var used []ScoredDocument
	total := 0
	for _, n := range neighbours {
		block := "[Source: " + n.Doc.Metadata[MetaSourceFile] + "]\n" + n.Doc.Content + "\n"
		cost := len(block)
		if len(blocks) > 0 {
			cost += len(separator)
		}
		if total+cost > e.cfg.MaxContextLength {
			continue
		}
		blocks = append(blocks, block)
		used = append(used, n)
		total += cost
	}
	return strings.Join(blocks, separator), used
}

// confidence is the mean similarity of the documents actually used, scaled
// by the boost factor and clamped to [0, 1].
func (e *Engine) confidence(used []ScoredDocument) float64 {
	if len(used) == 0 {
		return 0
	}
	var sum float64
	for _, d := range used {
		sum += d.Score
	}
	c := (sum / float64(len(used))) * e.cfg.ConfidenceBoost
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func formatUserPrompt(contextText, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nCustomer question: %s", contextText, question)
}

func sourcesOf(used []ScoredDocument) []Source {
	sources := make([]Source, 0, len(used))
	for _, d := range used {
		preview := d.Doc.Content
		if len(preview) > sourcePreviewLen {
			preview = preview[:sourcePreviewLen] + "..."
		}
		sources = append(sources, Source{
			Source:         d.Doc.Metadata[MetaSourceFile],
			ContentPreview: preview,
		})
	}
	return sources
}
