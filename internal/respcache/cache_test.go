package respcache

import (
	"context"
	"testing"
	"time"

	"github.com/assura-labs/assura-go/internal/rag"
)

func openTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := Open(":memory:", 16, ttl, nil)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleResult(answer string) *rag.QueryResult {
	return &rag.QueryResult{
		Answer:     answer,
		Sources:    []rag.Source{{Source: "policy.txt", ContentPreview: "..."}},
		Confidence: 0.8,
	}
}

func Test_Cache_SetThenGet(t *testing.T) {
	t.Parallel()
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "What is covered?", sampleResult("liability")); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok := c.Get(ctx, "What is covered?")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Answer != "liability" {
		t.Errorf("answer = %q", got.Answer)
	}
}

func Test_Cache_KeyNormalisesWhitespaceAndCase(t *testing.T) {
	t.Parallel()
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "What is covered?", sampleResult("a")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := c.Get(ctx, "  what   is COVERED?  "); !ok {
		t.Error("normalised variant should hit")
	}
}

func Test_Cache_MissOnUnknownQuestion(t *testing.T) {
	t.Parallel()
	c := openTestCache(t, time.Hour)

	if _, ok := c.Get(context.Background(), "never asked"); ok {
		t.Fatal("expected miss")
	}
	if s := c.Stats(context.Background()); s.Misses != 1 {
		t.Errorf("misses = %d, want 1", s.Misses)
	}
}

func Test_Cache_PersistentTierServesAfterMemoryEviction(t *testing.T) {
	t.Parallel()
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "q", sampleResult("persisted")); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Simulate memory pressure; the SQLite tier still holds the entry.
	c.lru.Purge()

	got, ok := c.Get(ctx, "q")
	if !ok {
		t.Fatal("persistent tier should serve after memory eviction")
	}
	if got.Answer != "persisted" {
		t.Errorf("answer = %q", got.Answer)
	}
	// Promoted back into memory.
	if c.lru.Len() != 1 {
		t.Errorf("lru len = %d, want 1 after promotion", c.lru.Len())
	}
}

func Test_Cache_ExpiredPersistedEntryIsDeleted(t *testing.T) {
	t.Parallel()
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "old", sampleResult("stale")); err != nil {
		t.Fatalf("set: %v", err)
	}
	c.lru.Purge()
	// Force expiry in the persistent tier.
	if _, err := c.db.ExecContext(ctx, `UPDATE response_cache SET expires_at = 0`); err != nil {
		t.Fatalf("expire row: %v", err)
	}

	if _, ok := c.Get(ctx, "old"); ok {
		t.Fatal("expired entry should miss")
	}
	if s := c.Stats(ctx); s.PersistedEntries != 0 {
		t.Errorf("persisted entries = %d, want 0 after expiry cleanup", s.PersistedEntries)
	}
}

func Test_Cache_CorruptPersistedEntryIsDeleted(t *testing.T) {
	t.Parallel()
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "bad", sampleResult("x")); err != nil {
		t.Fatalf("set: %v", err)
	}
	c.lru.Purge()
	if _, err := c.db.ExecContext(ctx, `UPDATE response_cache SET payload = 'not json'`); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	if _, ok := c.Get(ctx, "bad"); ok {
		t.Fatal("corrupt entry should miss")
	}
	if s := c.Stats(ctx); s.PersistedEntries != 0 {
		t.Errorf("persisted entries = %d, want 0 after corruption cleanup", s.PersistedEntries)
	}
}

func Test_Cache_ClearDropsBothTiers(t *testing.T) {
	t.Parallel()
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	if err := c.Set(ctx, "q1", sampleResult("a")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Set(ctx, "q2", sampleResult("b")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	s := c.Stats(ctx)
	if s.MemoryEntries != 0 || s.PersistedEntries != 0 {
		t.Errorf("stats after clear = %+v, want empty tiers", s)
	}
	if _, ok := c.Get(ctx, "q1"); ok {
		t.Error("entry survived clear")
	}
}
