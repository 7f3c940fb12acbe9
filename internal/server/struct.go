package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/assura-labs/assura-go/internal/dialogue"
	"github.com/assura-labs/assura-go/internal/embedder"
	"github.com/assura-labs/assura-go/internal/extractor"
	"github.com/assura-labs/assura-go/internal/history"
	"github.com/assura-labs/assura-go/internal/intent"
	"github.com/assura-labs/assura-go/internal/rag"
	"github.com/assura-labs/assura-go/internal/respcache"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 0.0.0.0).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
}

// querier is the interface handleChat calls to answer a question.
// *rag.Engine satisfies it; tests inject a fake.
type querier interface {
	// Query runs retrieval and generation for question. Failures surface as
	// degraded answers, never as errors.
	Query(ctx context.Context, question string) *rag.QueryResult
}

// responseCache is the question-level answer cache consulted before the
// engine. *respcache.Cache satisfies it; tests inject a fake.
type responseCache interface {
	Get(ctx context.Context, question string) (*rag.QueryResult, bool)
	Set(ctx context.Context, question string, result *rag.QueryResult) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) respcache.Stats
}

// embeddingCache exposes the embedding cache's stats and reset operations
// for the dashboard and cache-clear endpoints. *embedder.Cached satisfies it.
type embeddingCache interface {
	Stats() embedder.CacheStats
	Clear()
}

// conversationStore persists chat turns. *history.Store satisfies it.
type conversationStore interface {
	Create(ctx context.Context, userID string) (*history.Conversation, error)
	Get(ctx context.Context, conversationID string) (*history.Conversation, error)
	Append(ctx context.Context, conversationID, role, content string, metadata map[string]string) error
	Recent(ctx context.Context, conversationID string, limit int) ([]history.Message, error)
}

// Dependencies bundles the components the server exposes over HTTP.
// Engine is required; everything else degrades gracefully when nil.
type Dependencies struct {
	// Engine answers questions. Required.
	Engine *rag.Engine
	// Store backs the dashboard's document statistics.
	Store rag.VectorStore
	// Extractor backs the dashboard's extraction statistics.
	Extractor *extractor.Extractor
	// EmbedCache is the embedding cache, exposed for stats and clearing.
	EmbedCache *embedder.Cached
	// RespCache is the answer cache, consulted before the engine.
	RespCache *respcache.Cache
	// History persists conversations. Nil disables history.
	History *history.Store
	// Initialized reports whether the knowledge base holds any documents.
	// Nil means always initialized.
	Initialized func() bool
}

// Server is the HTTP server that exposes the assistant's REST API.
type Server struct {
	// querier answers chat questions; the engine in production, a fake in tests.
	querier querier
	// respCache is the answer cache, nil when caching is disabled.
	respCache responseCache
	// embedCache is the embedding cache, nil when not exposed.
	embedCache embeddingCache
	// history persists conversations, nil when disabled.
	history conversationStore
	// store backs dashboard document stats, nil when not exposed.
	store rag.VectorStore
	// extractor backs dashboard extraction stats, nil when not exposed.
	extractor *extractor.Extractor
	// initialized reports whether any documents are indexed.
	initialized func() bool
	// analyzer classifies inbound messages by intent.
	analyzer *intent.Analyzer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's natural language question.
	Message string `json:"message"`
	// UserID identifies the end user for conversation history. Optional.
	UserID string `json:"user_id,omitempty"`
	// ConversationID continues an existing conversation. Empty starts a new one.
	ConversationID string `json:"conversation_id,omitempty"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// Answer is the generated (or canned) reply text.
	Answer string `json:"answer"`
	// Sources lists the documents the answer was grounded on.
	Sources []rag.Source `json:"sources"`
	// Confidence is the answer confidence in [0, 1].
	Confidence float64 `json:"confidence"`
	// Intent is the classified intent of the question.
	Intent string `json:"intent"`
	// SuggestedActions are follow-up actions matched to the intent.
	SuggestedActions []dialogue.SuggestedAction `json:"suggested_actions,omitempty"`
	// ConversationID identifies the conversation this turn belongs to.
	ConversationID string `json:"conversation_id,omitempty"`
	// Cached is true when the answer was served from the response cache.
	Cached bool `json:"cached"`
	// Timings carries per-stage latency, zeroed for cached and direct replies.
	Timings rag.Timings `json:"timings"`
}

// conversationResponse is the JSON response for GET /api/conversations/{id}.
type conversationResponse struct {
	// Conversation is the conversation metadata.
	Conversation *history.Conversation `json:"conversation"`
	// Messages are the most recent turns in chronological order.
	Messages []history.Message `json:"messages"`
}

// dashboardResponse is the JSON response for GET /api/dashboard/data.
type dashboardResponse struct {
	// Initialized is true when the knowledge base holds at least one document.
	Initialized bool `json:"initialized"`
	// Store holds the vector store's document statistics.
	Store *rag.StoreStats `json:"store,omitempty"`
	// Extraction holds per-method extraction counters.
	Extraction *extractor.Stats `json:"extraction,omitempty"`
	// EmbeddingCache holds embedding cache hit/miss counters.
	EmbeddingCache *embedder.CacheStats `json:"embedding_cache,omitempty"`
	// ResponseCache holds answer cache hit/miss counters.
	ResponseCache *respcache.Stats `json:"response_cache,omitempty"`
}
