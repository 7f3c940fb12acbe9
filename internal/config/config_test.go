package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
rag:
  chunk_size: 800
  chunk_overlap: 150
  retriever_k: 7
  similarity_threshold: 0.25
  max_context_length: 3000
  docs_directory: /srv/docs
  vector_backend: qdrant
extraction:
  ocr_languages: "ita,eng"
embedding:
  provider: ollama
  model: nomic-embed-text
  batch_size: 10
qdrant:
  host: qdrant.internal
  port: 6334
  collection: insurance-docs
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Clear env vars that the YAML should set.
	envKeys := []string{
		"CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVER_K", "SIMILARITY_THRESHOLD",
		"MAX_CONTEXT_LENGTH", "DOCS_DIRECTORY", "VECTOR_BACKEND", "OCR_LANGUAGES",
		"EMBEDDING_PROVIDER", "EMBEDDING_MODEL", "BATCH_SIZE_EMBEDDINGS",
		"QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"LOG_LEVEL", "LOG_FORMAT",
	}
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	checks := map[string]string{
		"CHUNK_SIZE":            "800",
		"CHUNK_OVERLAP":         "150",
		"RETRIEVER_K":           "7",
		"SIMILARITY_THRESHOLD":  "0.25",
		"MAX_CONTEXT_LENGTH":    "3000",
		"DOCS_DIRECTORY":        "/srv/docs",
		"VECTOR_BACKEND":        "qdrant",
		"OCR_LANGUAGES":         "ita,eng",
		"EMBEDDING_PROVIDER":    "ollama",
		"EMBEDDING_MODEL":       "nomic-embed-text",
		"BATCH_SIZE_EMBEDDINGS": "10",
		"QDRANT_HOST":           "qdrant.internal",
		"QDRANT_PORT":           "6334",
		"QDRANT_COLLECTION":     "insurance-docs",
		"LOG_LEVEL":             "debug",
		"LOG_FORMAT":            "text",
	}
	for k, want := range checks {
		got := os.Getenv(k)
		if got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
rag:
  vector_backend: qdrant
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading — it should NOT be overwritten.
	t.Setenv("VECTOR_BACKEND", "sqlite")

	log := slog.Default()
	if _, err := Load(cfgPath, log); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("VECTOR_BACKEND"); got != "sqlite" {
		t.Errorf("VECTOR_BACKEND: expected env override %q, got %q", "sqlite", got)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("rag: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("want error for malformed YAML")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"CHUNK_SIZE", "CHUNK_OVERLAP", "RETRIEVER_K", "SIMILARITY_THRESHOLD",
		"MAX_CONTEXT_LENGTH", "CONFIDENCE_BOOST", "OCR_LANGUAGES", "VECTOR_BACKEND",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	s := FromEnv()
	if s.ChunkSize != 1000 || s.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d, want 1000/200", s.ChunkSize, s.ChunkOverlap)
	}
	if s.RetrieverK != 5 {
		t.Errorf("retriever k = %d, want 5", s.RetrieverK)
	}
	if s.SimilarityThreshold != 0.2 {
		t.Errorf("threshold = %v, want 0.2", s.SimilarityThreshold)
	}
	if s.ConfidenceBoost != 1.2 {
		t.Errorf("boost = %v, want 1.2", s.ConfidenceBoost)
	}
	if s.OCRPrimary != "ita" || s.OCRSecondary != "eng" {
		t.Errorf("ocr languages = %q/%q, want ita/eng", s.OCRPrimary, s.OCRSecondary)
	}
	if s.VectorBackend != "sqlite" {
		t.Errorf("backend = %q, want sqlite", s.VectorBackend)
	}
}

func TestFromEnv_EmbeddingKeyInheritsOpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-parent")
	t.Setenv("EMBEDDING_API_KEY", "")
	os.Unsetenv("EMBEDDING_API_KEY")

	if s := FromEnv(); s.EmbeddingAPIKey != "sk-parent" {
		t.Errorf("embedding key = %q, want inherited sk-parent", s.EmbeddingAPIKey)
	}

	t.Setenv("EMBEDDING_API_KEY", "sk-own")
	if s := FromEnv(); s.EmbeddingAPIKey != "sk-own" {
		t.Errorf("embedding key = %q, want explicit sk-own", s.EmbeddingAPIKey)
	}
}
