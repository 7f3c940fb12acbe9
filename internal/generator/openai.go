// Package generator implements rag.Generator over OpenAI-compatible chat
// completion APIs via plain HTTP. Generation failures are expected (quota,
// timeout) and surface as errors for the engine's degraded-answer path.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenAIGenerator talks to the /chat/completions endpoint. Safe for
// concurrent use.
type OpenAIGenerator struct {
	// baseURL is the API base (e.g. "https://api.openai.com/v1").
	baseURL string
	// apiKey is the Bearer token.
	apiKey string
	// model is the chat model name (e.g. "gpt-4o-mini").
	model string
	// temperature controls sampling; kept low for grounded answers.
	temperature float64
	// maxTokens caps the completion length (0 = API default).
	maxTokens int
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// Config holds the settings for constructing an OpenAIGenerator.
type Config struct {
	// BaseURL is the API base URL, default "https://api.openai.com/v1".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the chat model name.
	Model string
	// Temperature controls sampling (default 0.2).
	Temperature float64
	// MaxTokens caps the completion length (0 = API default).
	MaxTokens int
}

// New constructs an OpenAIGenerator from the given config.
func New(cfg *Config) *OpenAIGenerator {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	return &OpenAIGenerator{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: 60 * time.Second},
	}
}

// chatMessage is one turn in the completion request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON body sent to the chat completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatResponse is the JSON body returned from the chat completions endpoint.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate implements rag.Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generator: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("generator: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generator: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("generator: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("generator: %s", msg)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("generator: response contains no choices")
	}
	return result.Choices[0].Message.Content, nil
}
