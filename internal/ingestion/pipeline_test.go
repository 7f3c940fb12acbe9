package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/assura-labs/assura-go/internal/chunker"
	"github.com/assura-labs/assura-go/internal/extractor"
	"github.com/assura-labs/assura-go/internal/rag"
)

// hashEmbedder returns a deterministic vector per distinct text so that
// self-similarity is exactly 1 and distinct texts rarely collide.
type hashEmbedder struct{ calls int }

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	h.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, 8)
		for j, r := range text {
			v[j%8] += float32(r%31) + 1
		}
		out[i] = v
	}
	return out, nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *rag.SQLiteStore, *hashEmbedder) {
	t.Helper()

	store, err := rag.OpenSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}

	emb := &hashEmbedder{}
	p := New(extractor.New(nil, nil), chunker.New(100, 20), emb, store, nil)
	return p, store, emb
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func Test_Pipeline_IngestsLongTextFileIntoRetrievableChunks(t *testing.T) {
	t.Parallel()

	p, store, _ := newTestPipeline(t)
	dir := t.TempDir()

	// Content longer than twice the chunk size forces multiple chunks.
	sentences := make([]string, 40)
	for i := range sentences {
		sentences[i] = "Clause " + strconv.Itoa(i) + " describes coverage limits."
	}
	writeDoc(t, dir, "policy.txt", strings.Join(sentences, " "))

	summary, err := p.IngestDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if summary.ProcessedFiles != 1 {
		t.Errorf("processed = %d, want 1", summary.ProcessedFiles)
	}
	if summary.TotalChunks < 2 {
		t.Fatalf("chunks = %d, want at least 2", summary.TotalChunks)
	}
	if !p.Initialized() {
		t.Error("pipeline should be initialized after successful ingestion")
	}

	// Every stored chunk must be retrievable with its own embedding as the
	// query, scoring ~1 against itself.
	ctx := context.Background()
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDocuments != summary.TotalChunks {
		t.Fatalf("stored %d documents, summary says %d", stats.TotalDocuments, summary.TotalChunks)
	}

	all, err := store.Search(ctx, []float32{1, 1, 1, 1, 1, 1, 1, 1}, stats.TotalDocuments, -1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, doc := range all {
		self, err := store.Search(ctx, doc.Doc.Embedding, 1, 0.99)
		if err != nil {
			t.Fatalf("self search: %v", err)
		}
		if len(self) != 1 || self[0].Doc.ID != doc.Doc.ID {
			t.Errorf("chunk %s not retrievable by its own embedding", doc.Doc.ID)
		}
	}
}

func Test_Pipeline_ChunkMetadataAndIDs(t *testing.T) {
	t.Parallel()

	p, store, _ := newTestPipeline(t)
	dir := t.TempDir()
	writeDoc(t, dir, "claims.md", strings.Repeat("How to file a claim. ", 30))

	if _, err := p.IngestDirectory(context.Background(), dir); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	results, err := store.Search(context.Background(), []float32{1, 1, 1, 1, 1, 1, 1, 1}, 100, -1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no documents stored")
	}

	total := strconv.Itoa(len(results))
	seen := make(map[string]bool)
	for _, r := range results {
		md := r.Doc.Metadata
		if md[rag.MetaSourceFile] != "claims.md" {
			t.Errorf("source_file = %q", md[rag.MetaSourceFile])
		}
		if md[rag.MetaTotalChunks] != total {
			t.Errorf("total_chunks = %q, want %s", md[rag.MetaTotalChunks], total)
		}
		idx := md[rag.MetaChunkIndex]
		if want := "claims_" + idx; r.Doc.ID != want {
			t.Errorf("id = %q, want %q", r.Doc.ID, want)
		}
		seen[idx] = true
	}
	// Chunk indices are contiguous from zero.
	for i := 0; i < len(results); i++ {
		if !seen[strconv.Itoa(i)] {
			t.Errorf("missing chunk index %d", i)
		}
	}
}

func Test_Pipeline_SingleFileFailureDoesNotAbortRun(t *testing.T) {
	t.Parallel()

	p, _, _ := newTestPipeline(t)
	dir := t.TempDir()
	writeDoc(t, dir, "good.txt", "Valid content about deductibles.")
	writeDoc(t, dir, "empty.txt", "   ")
	// Without PDF strategies in this pipeline, extraction fails.
	writeDoc(t, dir, "broken.pdf", "not really a pdf")

	summary, err := p.IngestDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if summary.ProcessedFiles != 1 {
		t.Errorf("processed = %d, want 1", summary.ProcessedFiles)
	}
	if summary.FailedFiles != 2 {
		t.Errorf("failed = %d, want 2", summary.FailedFiles)
	}
	if _, ok := summary.Failures["empty.txt"]; !ok {
		t.Error("empty.txt missing from failure map")
	}
	if !p.Initialized() {
		t.Error("pipeline should still initialize from the good file")
	}
}

func Test_Pipeline_UnsupportedFilesAreIgnored(t *testing.T) {
	t.Parallel()

	p, _, _ := newTestPipeline(t)
	dir := t.TempDir()
	writeDoc(t, dir, "image.png", "binary junk")
	writeDoc(t, dir, "notes.txt", "Supported content.")

	summary, err := p.IngestDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if summary.ProcessedFiles != 1 || summary.FailedFiles != 0 {
		t.Errorf("summary = %+v, want 1 processed and 0 failed", summary)
	}
}

func Test_Pipeline_EmptyDirectoryLeavesNotInitialized(t *testing.T) {
	t.Parallel()

	p, _, _ := newTestPipeline(t)

	summary, err := p.IngestDirectory(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if summary.TotalChunks != 0 {
		t.Errorf("chunks = %d, want 0", summary.TotalChunks)
	}
	if p.Initialized() {
		t.Error("pipeline must not report initialized with an empty store")
	}
}

func Test_Pipeline_EmbedsAllChunksInOnePass(t *testing.T) {
	t.Parallel()

	p, _, emb := newTestPipeline(t)
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", strings.Repeat("alpha beta gamma. ", 30))
	writeDoc(t, dir, "b.txt", strings.Repeat("delta epsilon zeta. ", 30))

	if _, err := p.IngestDirectory(context.Background(), dir); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("embedder called %d times, want 1 batched pass", emb.calls)
	}
}
