package rag

import (
	"context"
	"testing"
)

// openTestStore returns an initialised in-memory store that closes with the test.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return store
}

func testDoc(id, content, sourceFile string, embedding []float32) Document {
	return Document{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			MetaSourceFile: sourceFile,
			MetaChunkIndex: "0",
		},
		Embedding: embedding,
	}
}

func Test_SQLiteStore_UpsertAndSearch(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	docs := []Document{
		testDoc("policy_0", "RCA coverage includes third-party damage.", "policy.txt", []float32{1, 0, 0}),
		testDoc("claims_0", "To file a claim call the claims hotline.", "claims.txt", []float32{0, 1, 0}),
		testDoc("faq_0", "Opening hours are nine to five.", "faq.txt", []float32{0.9, 0.1, 0}),
	}
	if err := store.Upsert(ctx, docs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, 2, 0.2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Doc.ID != "policy_0" {
		t.Errorf("best match = %s, want policy_0", results[0].Doc.ID)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("results not ordered by descending score: %v then %v", results[0].Score, results[1].Score)
	}
	for _, r := range results {
		if r.Score < 0.2 {
			t.Errorf("result %s scored %v, below threshold", r.Doc.ID, r.Score)
		}
	}
}

func Test_SQLiteStore_SearchRespectsKAndThreshold(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	docs := make([]Document, 0, 10)
	for i := 0; i < 10; i++ {
		docs = append(docs, testDoc(
			string(rune('a'+i))+"_0", "content", "f.txt",
			[]float32{1, float32(i) * 0.1, 0},
		))
	}
	if err := store.Upsert(ctx, docs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0, 0}, 3, 0.0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) > 3 {
		t.Fatalf("got %d results, want at most 3", len(results))
	}

	// A threshold above every possible score returns nothing.
	results, err = store.Search(ctx, []float32{-1, 0, 0}, 10, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results above impossible threshold, want 0", len(results))
	}
}

func Test_SQLiteStore_UpsertReplacesExistingID(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	first := testDoc("doc_0", "old content", "old.txt", []float32{1, 0})
	if err := store.Upsert(ctx, []Document{first}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := testDoc("doc_0", "new content", "new.txt", []float32{0, 1})
	if err := store.Upsert(ctx, []Document{second}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDocuments != 1 {
		t.Fatalf("total documents = %d, want 1 after replacement", stats.TotalDocuments)
	}

	results, err := store.Search(ctx, []float32{0, 1}, 1, 0.5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Doc.Content != "new content" {
		t.Errorf("content = %q, want replaced content", results[0].Doc.Content)
	}
	if results[0].Doc.Metadata[MetaSourceFile] != "new.txt" {
		t.Errorf("source = %q, want new.txt", results[0].Doc.Metadata[MetaSourceFile])
	}
}

func Test_SQLiteStore_UpsertSkipsDocumentsWithoutEmbedding(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	docs := []Document{
		testDoc("with_0", "has embedding", "a.txt", []float32{1, 0}),
		{ID: "without_0", Content: "no embedding", Metadata: map[string]string{MetaSourceFile: "b.txt"}},
	}
	if err := store.Upsert(ctx, docs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDocuments != 1 {
		t.Fatalf("total documents = %d, want 1 (unembedded doc skipped)", stats.TotalDocuments)
	}
}

func Test_SQLiteStore_StatsCountsPerFile(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	docs := []Document{
		testDoc("p_0", "a", "policy.txt", []float32{1}),
		testDoc("p_1", "b", "policy.txt", []float32{1}),
		testDoc("c_0", "c", "claims.txt", []float32{1}),
	}
	if err := store.Upsert(ctx, docs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDocuments != 3 {
		t.Errorf("total documents = %d, want 3", stats.TotalDocuments)
	}
	if stats.FilesIndexed != 2 {
		t.Errorf("files indexed = %d, want 2", stats.FilesIndexed)
	}
	if stats.FileCounts["policy.txt"] != 2 {
		t.Errorf("policy.txt count = %d, want 2", stats.FileCounts["policy.txt"])
	}
	if stats.FileCounts["claims.txt"] != 1 {
		t.Errorf("claims.txt count = %d, want 1", stats.FileCounts["claims.txt"])
	}
}

func Test_SQLiteStore_Clear(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []Document{testDoc("d_0", "x", "f.txt", []float32{1})}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalDocuments != 0 {
		t.Fatalf("total documents = %d after clear, want 0", stats.TotalDocuments)
	}
}

func Test_SQLiteStore_SearchSkipsCorruptRecords(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []Document{testDoc("good_0", "fine", "f.txt", []float32{1, 0})}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	_, err := store.db.ExecContext(ctx,
		`INSERT INTO vector_documents (id, content, embedding_json, metadata_json, created_at)
		 VALUES ('bad_0', 'broken', 'not json', '{}', 0)`)
	if err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	results, err := store.Search(ctx, []float32{1, 0}, 10, 0.0)
	if err != nil {
		t.Fatalf("search should skip corrupt records, got error: %v", err)
	}
	if len(results) != 1 || results[0].Doc.ID != "good_0" {
		t.Fatalf("results = %v, want only good_0", results)
	}
}
