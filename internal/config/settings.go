package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings is the fully resolved runtime configuration, read from the
// environment after Load has layered in .env and YAML values. Components
// receive values from here instead of reading the environment themselves.
type Settings struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int
	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int
	// RetrieverK is the maximum number of neighbours per query.
	RetrieverK int
	// SimilarityThreshold is the minimum cosine score for a neighbour.
	SimilarityThreshold float64
	// MaxContextLength is the character budget for assembled context.
	MaxContextLength int
	// ConfidenceBoost scales the mean similarity into the confidence score.
	ConfidenceBoost float64
	// DocsDirectory is the directory ingested at startup.
	DocsDirectory string
	// VectorBackend selects the store: "sqlite" or "qdrant".
	VectorBackend string
	// VectorDBPath is the SQLite vector store path.
	VectorDBPath string

	// OCRPrimary and OCRSecondary are Tesseract language codes.
	OCRPrimary   string
	OCRSecondary string

	// EmbeddingProvider selects the embedding backend.
	EmbeddingProvider string
	// EmbeddingModel overrides the backend's default model.
	EmbeddingModel string
	// EmbeddingAPIKey authenticates the embedding backend.
	EmbeddingAPIKey string
	// EmbeddingEndpoint overrides the backend's base URL.
	EmbeddingEndpoint string
	// EmbeddingDimensions overrides the vector size.
	EmbeddingDimensions int
	// EmbeddingBatchSize is the number of texts per embedding request.
	EmbeddingBatchSize int

	// OpenAIAPIKey authenticates the generation backend.
	OpenAIAPIKey string
	// GenerationModel is the chat model name.
	GenerationModel string
	// GenerationEndpoint overrides the generation API base URL.
	GenerationEndpoint string

	// QdrantHost, QdrantPort, QdrantCollection, QdrantAPIKey, QdrantTLS
	// configure the optional Qdrant backend.
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	QdrantAPIKey     string
	QdrantTLS        bool

	// ServerHost and ServerPort are the HTTP bind address.
	ServerHost string
	ServerPort int
	// ServerAPIKey enables Bearer auth when non-empty.
	ServerAPIKey string

	// HistoryDBPath is the conversation store path, "disabled" to skip.
	HistoryDBPath string

	// CacheDBPath, CacheSize, CacheTTL configure the response cache.
	CacheDBPath string
	CacheSize   int
	CacheTTL    time.Duration
}

// FromEnv resolves Settings from the environment with working defaults.
func FromEnv() Settings {
	primary, secondary := splitLanguages(envOr("OCR_LANGUAGES", "ita,eng"))

	return Settings{
		ChunkSize:           envInt("CHUNK_SIZE", 1000),
		ChunkOverlap:        envInt("CHUNK_OVERLAP", 200),
		RetrieverK:          envInt("RETRIEVER_K", 5),
		SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", 0.2),
		MaxContextLength:    envInt("MAX_CONTEXT_LENGTH", 4000),
		ConfidenceBoost:     envFloat("CONFIDENCE_BOOST", 1.2),
		DocsDirectory:       envOr("DOCS_DIRECTORY", "./docs"),
		VectorBackend:       envOr("VECTOR_BACKEND", "sqlite"),
		VectorDBPath:        envOr("VECTOR_DB_PATH", "./data/vectors.db"),

		OCRPrimary:   primary,
		OCRSecondary: secondary,

		EmbeddingProvider:   envOr("EMBEDDING_PROVIDER", "openai"),
		EmbeddingModel:      os.Getenv("EMBEDDING_MODEL"),
		EmbeddingAPIKey:     envOr("EMBEDDING_API_KEY", os.Getenv("OPENAI_API_KEY")),
		EmbeddingEndpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
		EmbeddingDimensions: envInt("EMBEDDING_DIMENSIONS", 0),
		EmbeddingBatchSize:  envInt("BATCH_SIZE_EMBEDDINGS", 20),

		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		GenerationModel:    envOr("GENERATION_MODEL", "gpt-4o-mini"),
		GenerationEndpoint: os.Getenv("GENERATION_ENDPOINT"),

		QdrantHost:       envOr("QDRANT_HOST", "localhost"),
		QdrantPort:       envInt("QDRANT_PORT", 6334),
		QdrantCollection: envOr("QDRANT_COLLECTION", "assura_documents"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
		QdrantTLS:        os.Getenv("QDRANT_TLS") == "true",

		ServerHost: envOr("SERVER_HOST", "0.0.0.0"),
		ServerPort: envInt("SERVER_PORT", 8080),

		ServerAPIKey: os.Getenv("ASSURA_API_KEY"),

		HistoryDBPath: envOr("ASSURA_HISTORY_DB", "./data/history.db"),

		CacheDBPath: envOr("CACHE_DB_PATH", "./data/respcache.db"),
		CacheSize:   envInt("CACHE_SIZE", 256),
		CacheTTL:    time.Duration(envInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
	}
}

// splitLanguages parses "ita,eng" into primary and secondary codes.
func splitLanguages(v string) (string, string) {
	parts := strings.Split(v, ",")
	primary := strings.TrimSpace(parts[0])
	secondary := ""
	if len(parts) > 1 {
		secondary = strings.TrimSpace(parts[1])
	}
	return primary, secondary
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
