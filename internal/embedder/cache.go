package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/assura-labs/assura-go/internal/rag"
)

// defaultBatchSize bounds how many texts go to the backend per request.
const defaultBatchSize = 20

// defaultBatchInterval paces consecutive backend calls to respect rate limits.
const defaultBatchInterval = 100 * time.Millisecond

// CachedConfig tunes the caching decorator.
type CachedConfig struct {
	// BatchSize is the maximum number of texts per backend call.
	BatchSize int

	// Dimensions is the vector length used for zero-vector substitution
	// when a backend batch fails.
	Dimensions int

	// BatchInterval is the minimum spacing between backend calls.
	// Zero selects the default.
	BatchInterval time.Duration
}

// Cached decorates a rag.Embedder with an exact-match memoization cache and
// batched, rate-limited backend calls. Two Embed calls with identical text
// hit the backend at most once for the cache's lifetime. A failed backend
// batch is substituted with zero vectors (which never rank in similarity
// search) instead of failing the whole call; failed texts are not cached, so
// a later call may retry them.
type Cached struct {
	inner   rag.Embedder
	cfg     CachedConfig
	limiter *rate.Limiter
	log     *slog.Logger

	mu      sync.RWMutex
	vectors map[string][]float32
	hits    int64
	misses  int64
}

// NewCached wraps inner with caching and batching.
func NewCached(inner rag.Embedder, cfg CachedConfig, log *slog.Logger) *Cached {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultOpenAIDimensions
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = defaultBatchInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cached{
		inner:   inner,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.BatchInterval), 1),
		log:     log,
		vectors: make(map[string][]float32),
	}
}

// cacheKey is the exact-match memoization key for one input text.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns one vector per input text, in input order. Cached texts are
// served from memory; the rest are embedded in batches of cfg.BatchSize with
// pacing between backend calls.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missing []int
	c.mu.RLock()
	for i, text := range texts {
		keys[i] = cacheKey(text)
		if v, ok := c.vectors[keys[i]]; ok {
			results[i] = v
		} else {
			missing = append(missing, i)
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	c.hits += int64(len(texts) - len(missing))
	c.misses += int64(len(missing))
	c.mu.Unlock()

	for batchStart := 0; batchStart < len(missing); batchStart += c.cfg.BatchSize {
		batchEnd := batchStart + c.cfg.BatchSize
		if batchEnd > len(missing) {
			batchEnd = len(missing)
		}
		batch := missing[batchStart:batchEnd]

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		batchTexts := make([]string, len(batch))
		for j, idx := range batch {
			batchTexts[j] = texts[idx]
		}

		vectors, err := c.inner.Embed(ctx, batchTexts)
		if err != nil || len(vectors) != len(batch) {
			c.log.Error("embedding batch failed, substituting zero vectors",
				slog.Int("batch_size", len(batch)),
				slog.Any("error", err))
			for _, idx := range batch {
				results[idx] = make([]float32, c.cfg.Dimensions)
			}
			continue
		}

		c.mu.Lock()
		for j, idx := range batch {
			results[idx] = vectors[j]
			c.vectors[keys[idx]] = vectors[j]
		}
		c.mu.Unlock()
	}

	return results, nil
}

// CacheStats summarises cache effectiveness.
type CacheStats struct {
	// Hits is the number of texts served from the cache.
	Hits int64 `json:"hits"`

	// Misses is the number of texts that required a backend call.
	Misses int64 `json:"misses"`

	// Entries is the current number of cached vectors.
	Entries int `json:"entries"`
}

// Stats returns a snapshot of the cache counters.
func (c *Cached) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: len(c.vectors)}
}

// Clear drops every cached vector. Counters are preserved.
func (c *Cached) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors = make(map[string][]float32)
}
