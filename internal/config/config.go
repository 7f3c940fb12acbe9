// Package config provides YAML-based configuration for assura.
// Configuration is loaded with a layered precedence: defaults → .env file →
// YAML file → env vars. Environment variables always win, so existing
// workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. ASSURA_CONFIG environment variable
//  3. ~/.assura/config.yaml
//  4. ./assura.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming.
type Config struct {
	// RAG configures chunking, retrieval, and answer scoring.
	RAG RAGConfig `yaml:"rag"`

	// Extraction configures document text extraction.
	Extraction ExtractionConfig `yaml:"extraction"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Generation configures the answer-generation model.
	Generation GenerationConfig `yaml:"generation"`

	// Qdrant configures the optional Qdrant vector store backend.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures conversation history persistence.
	History HistoryConfig `yaml:"history"`

	// Cache configures the response cache.
	Cache CacheConfig `yaml:"cache"`
}

// RAGConfig holds chunking and retrieval settings.
type RAGConfig struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is how many characters consecutive chunks share.
	ChunkOverlap int `yaml:"chunk_overlap"`
	// RetrieverK is the maximum number of neighbours per query.
	RetrieverK int `yaml:"retriever_k"`
	// SimilarityThreshold is the minimum cosine score for a neighbour.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// MaxContextLength is the character budget for assembled context.
	MaxContextLength int `yaml:"max_context_length"`
	// ConfidenceBoost scales the mean similarity into the confidence score.
	ConfidenceBoost float64 `yaml:"confidence_boost"`
	// DocsDirectory is the directory ingested at startup.
	DocsDirectory string `yaml:"docs_directory"`
	// VectorBackend selects the store: sqlite (default) or qdrant.
	VectorBackend string `yaml:"vector_backend"`
	// VectorDBPath is the SQLite vector store path.
	VectorDBPath string `yaml:"vector_db_path"`
}

// ExtractionConfig holds document extraction settings.
type ExtractionConfig struct {
	// OCRLanguages is a comma-separated Tesseract language list, primary
	// first (e.g. "ita,eng").
	OCRLanguages string `yaml:"ocr_languages"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (openai, ollama).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size"`
}

// GenerationConfig holds answer-generation settings.
type GenerationConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the chat model name.
	Model string `yaml:"model"`
	// Endpoint overrides the API base URL.
	Endpoint string `yaml:"endpoint"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var ASSURA_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds conversation history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	// DBPath is the persistent cache tier's SQLite path.
	DBPath string `yaml:"db_path"`
	// Size is the memory tier's entry capacity.
	Size int `yaml:"size"`
	// TTLSeconds is the entry lifetime in seconds.
	TTLSeconds int `yaml:"ttl_seconds"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.RAG.ChunkSize) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.RAG.ChunkOverlap) }},
	{"RETRIEVER_K", func(c *Config) string { return intStr(c.RAG.RetrieverK) }},
	{"SIMILARITY_THRESHOLD", func(c *Config) string { return floatStr(c.RAG.SimilarityThreshold) }},
	{"MAX_CONTEXT_LENGTH", func(c *Config) string { return intStr(c.RAG.MaxContextLength) }},
	{"CONFIDENCE_BOOST", func(c *Config) string { return floatStr(c.RAG.ConfidenceBoost) }},
	{"DOCS_DIRECTORY", func(c *Config) string { return c.RAG.DocsDirectory }},
	{"VECTOR_BACKEND", func(c *Config) string { return c.RAG.VectorBackend }},
	{"VECTOR_DB_PATH", func(c *Config) string { return c.RAG.VectorDBPath }},
	{"OCR_LANGUAGES", func(c *Config) string { return c.Extraction.OCRLanguages }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"BATCH_SIZE_EMBEDDINGS", func(c *Config) string { return intStr(c.Embedding.BatchSize) }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Generation.APIKey }},
	{"GENERATION_MODEL", func(c *Config) string { return c.Generation.Model }},
	{"GENERATION_ENDPOINT", func(c *Config) string { return c.Generation.Endpoint }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"ASSURA_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"ASSURA_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
	{"CACHE_DB_PATH", func(c *Config) string { return c.Cache.DBPath }},
	{"CACHE_SIZE", func(c *Config) string { return intStr(c.Cache.Size) }},
	{"CACHE_TTL_SECONDS", func(c *Config) string { return intStr(c.Cache.TTLSeconds) }},
}

// Load reads a .env file (if present) and a YAML config file, applying
// non-empty values as environment variables. Existing env vars are never
// overwritten (env always wins). Returns the YAML path that was loaded, or
// empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	// .env is loaded first; godotenv never overrides existing env vars.
	if err := godotenv.Load(); err == nil {
		log.Debug("config: loaded .env file")
	}

	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("ASSURA_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".assura", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("assura.yaml"); err == nil {
		return "assura.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// floatStr converts a float64 to string, returning "" for zero values.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
