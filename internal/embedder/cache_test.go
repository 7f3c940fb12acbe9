package embedder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// countingEmbedder records every backend call and can fail on demand.
type countingEmbedder struct {
	mu       sync.Mutex
	calls    int
	batches  [][]string
	failNext bool
}

func (s *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.batches = append(s.batches, texts)
	if s.failNext {
		s.failNext = false
		return nil, errors.New("backend unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		// Deterministic non-zero vector derived from the text.
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (s *countingEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestCache(backend *countingEmbedder) *Cached {
	return NewCached(backend, CachedConfig{
		BatchSize:     2,
		Dimensions:    4,
		BatchInterval: time.Nanosecond,
	}, nil)
}

func Test_Cached_SecondIdenticalCallHitsCache(t *testing.T) {
	t.Parallel()

	backend := &countingEmbedder{}
	cache := newTestCache(backend)
	ctx := context.Background()

	first, err := cache.Embed(ctx, []string{"what is RCA coverage"})
	if err != nil {
		t.Fatalf("first embed: %v", err)
	}
	second, err := cache.Embed(ctx, []string{"what is RCA coverage"})
	if err != nil {
		t.Fatalf("second embed: %v", err)
	}

	if got := backend.callCount(); got != 1 {
		t.Fatalf("backend called %d times, want 1", got)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("unexpected result lengths %d, %d", len(first), len(second))
	}
	for i := range first[0] {
		if first[0][i] != second[0][i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func Test_Cached_PreservesInputOrderAcrossBatches(t *testing.T) {
	t.Parallel()

	backend := &countingEmbedder{}
	cache := newTestCache(backend)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := cache.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	for i, text := range texts {
		if vectors[i][0] != float32(len(text)) {
			t.Errorf("vector %d = %v, does not correspond to input %q", i, vectors[i], text)
		}
	}
	// Batch size 2 over 5 texts means 3 backend calls.
	if got := backend.callCount(); got != 3 {
		t.Errorf("backend called %d times, want 3", got)
	}
}

func Test_Cached_FailedBatchSubstitutesZeroVectors(t *testing.T) {
	t.Parallel()

	backend := &countingEmbedder{failNext: true}
	cache := newTestCache(backend)

	texts := []string{"first", "second", "third"}
	vectors, err := cache.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("embed should not fail on a bad batch: %v", err)
	}

	// First batch of two failed; both get zero vectors of the configured size.
	for i := 0; i < 2; i++ {
		if len(vectors[i]) != 4 {
			t.Fatalf("vector %d length = %d, want configured dimensions 4", i, len(vectors[i]))
		}
		for _, v := range vectors[i] {
			if v != 0 {
				t.Fatalf("vector %d = %v, want zero vector", i, vectors[i])
			}
		}
	}
	// Second batch succeeded and stays positional.
	if vectors[2][0] != float32(len("third")) {
		t.Errorf("vector 2 = %v, want embedding of %q", vectors[2], "third")
	}
}

func Test_Cached_FailedTextsAreRetriedLater(t *testing.T) {
	t.Parallel()

	backend := &countingEmbedder{failNext: true}
	cache := newTestCache(backend)
	ctx := context.Background()

	if _, err := cache.Embed(ctx, []string{"flaky"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	vectors, err := cache.Embed(ctx, []string{"flaky"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	if got := backend.callCount(); got != 2 {
		t.Fatalf("backend called %d times, want 2 (zero vectors are not cached)", got)
	}
	if vectors[0][0] == 0 {
		t.Error("retry still returned a zero vector")
	}
}

func Test_Cached_ClearDropsEntries(t *testing.T) {
	t.Parallel()

	backend := &countingEmbedder{}
	cache := newTestCache(backend)
	ctx := context.Background()

	if _, err := cache.Embed(ctx, []string{"x"}); err != nil {
		t.Fatalf("embed: %v", err)
	}
	cache.Clear()
	if _, err := cache.Embed(ctx, []string{"x"}); err != nil {
		t.Fatalf("embed: %v", err)
	}

	if got := backend.callCount(); got != 2 {
		t.Errorf("backend called %d times after clear, want 2", got)
	}
}

func Test_Cached_ConcurrentAccessIsSafe(t *testing.T) {
	t.Parallel()

	backend := &countingEmbedder{}
	cache := newTestCache(backend)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Embed(context.Background(), []string{"shared", "texts"}); err != nil {
				t.Errorf("embed: %v", err)
			}
		}()
	}
	wg.Wait()

	if cache.Stats().Entries != 2 {
		t.Errorf("entries = %d, want 2", cache.Stats().Entries)
	}
}
