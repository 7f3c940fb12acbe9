package embedder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/assura-labs/assura-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Settings selects and configures an embedding backend. Values come from the
// configuration layer; the factory itself never reads the environment.
type Settings struct {
	// Provider is the backend name: "openai" or "ollama".
	Provider string

	// Model overrides the backend's default embedding model.
	Model string

	// APIKey authenticates against the OpenAI backend.
	APIKey string

	// Endpoint overrides the backend's default base URL.
	Endpoint string

	// Dimensions overrides the backend's default vector length.
	Dimensions int
}

// ResolvedDimensions returns the embedding vector size this configuration
// will produce. Callers that pre-size storage (e.g. a Qdrant collection)
// should use this rather than hardcoding a value.
func (s Settings) ResolvedDimensions() int {
	if s.Dimensions > 0 {
		return s.Dimensions
	}
	if s.Provider == "ollama" {
		return defaultOllamaDimensions
	}
	return defaultOpenAIDimensions
}

// New constructs a rag.Embedder for the configured backend.
func New(s Settings) (rag.Embedder, error) {
	switch s.Provider {
	case "", "openai":
		if s.APIKey == "" {
			return nil, fmt.Errorf("embedder: openai backend requires an API key")
		}
		model := s.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    s.Endpoint,
			APIKey:     s.APIKey,
			Model:      model,
			Dimensions: s.Dimensions,
		}), nil

	case "ollama":
		model := s.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  s.Endpoint,
			Model: model,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: openai, ollama", s.Provider)
	}
}

// chatModelFragments identify chat/completion models that are not suitable
// for embedding. Matching one means the operator likely misconfigured the
// embedding model.
var chatModelFragments = []string{
	"gpt-4", "gpt-3.5", "o1", "o3",
	"llama3", "llama2", "llama-3", "llama-2",
	"mistral", "mixtral", "gemma", "claude", "deepseek", "qwen",
}

// Validate runs a startup pre-flight over the settings so operators get a
// clear error or warning before the first embed call fails cryptically.
func (s Settings) Validate(log *slog.Logger) error {
	switch s.Provider {
	case "", "openai":
		if s.APIKey == "" {
			return fmt.Errorf("embedder: openai backend requires an API key — set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
	case "ollama":
	default:
		return fmt.Errorf("embedder: unknown backend %q — valid values: openai, ollama", s.Provider)
	}

	if s.Model != "" {
		lower := strings.ToLower(s.Model)
		for _, fragment := range chatModelFragments {
			if strings.Contains(lower, fragment) {
				log.Warn("embedding model looks like a chat model, expect poor or broken embeddings",
					slog.String("model", s.Model),
					slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"))
				break
			}
		}
	}
	return nil
}
