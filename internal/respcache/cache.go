// Package respcache caches finished chat answers so repeated questions skip
// the embedding, search, and generation stages entirely. Two tiers: an
// in-memory expirable LRU in front of a persistent SQLite table, both bound
// by the same TTL.
package respcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/assura-labs/assura-go/internal/rag"
)

// defaultSize bounds the memory tier when no size is configured.
const defaultSize = 256

// Cache is the two-tier response cache. Safe for concurrent use.
type Cache struct {
	lru *expirable.LRU[string, *rag.QueryResult]
	db  *sql.DB
	ttl time.Duration
	log *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Open creates a Cache with an LRU of the given size and a persistent tier
// at path. Entries expire after ttl in both tiers.
func Open(path string, size int, ttl time.Duration, log *slog.Logger) (*Cache, error) {
	if size <= 0 {
		size = defaultSize
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("respcache: create directory %s: %w", dir, err)
			}
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("respcache: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	const ddl = `
CREATE TABLE IF NOT EXISTS response_cache (
    key        TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL
);`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("respcache: migrate: %w", err)
	}

	return &Cache{
		lru: expirable.NewLRU[string, *rag.QueryResult](size, nil, ttl),
		db:  db,
		ttl: ttl,
		log: log,
	}, nil
}

// key hashes the normalized question.
func key(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for a question, if present and fresh.
// Persistent hits are promoted into the memory tier; expired or corrupt
// rows are deleted on the way.
func (c *Cache) Get(ctx context.Context, question string) (*rag.QueryResult, bool) {
	k := key(question)

	if result, ok := c.lru.Get(k); ok {
		c.hits.Add(1)
		return result, true
	}

	var payload string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM response_cache WHERE key = ?`, k).
		Scan(&payload, &expiresAt)
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	if time.Now().Unix() >= expiresAt {
		c.delete(ctx, k)
		c.misses.Add(1)
		return nil, false
	}

	var result rag.QueryResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		c.log.Warn("corrupt cached response, deleting", slog.String("key", k), slog.Any("error", err))
		c.delete(ctx, k)
		c.misses.Add(1)
		return nil, false
	}

	c.lru.Add(k, &result)
	c.hits.Add(1)
	return &result, true
}

// Set stores a result in both tiers.
func (c *Cache) Set(ctx context.Context, question string, result *rag.QueryResult) error {
	k := key(question)

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("respcache: marshal result: %w", err)
	}

	now := time.Now()
	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO response_cache (key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		k, string(payload), now.Unix(), now.Add(c.ttl).Unix())
	if err != nil {
		return fmt.Errorf("respcache: store result: %w", err)
	}

	c.lru.Add(k, result)
	return nil
}

func (c *Cache) delete(ctx context.Context, k string) {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM response_cache WHERE key = ?`, k); err != nil {
		c.log.Warn("failed to delete cache row", slog.String("key", k), slog.Any("error", err))
	}
	c.lru.Remove(k)
}

// Clear drops both tiers.
func (c *Cache) Clear(ctx context.Context) error {
	c.lru.Purge()
	if _, err := c.db.ExecContext(ctx, `DELETE FROM response_cache`); err != nil {
		return fmt.Errorf("respcache: clear: %w", err)
	}
	return nil
}

// Stats summarises cache state and effectiveness.
type Stats struct {
	// Hits counts lookups served from either tier.
	Hits int64 `json:"hits"`

	// Misses counts lookups that fell through both tiers.
	Misses int64 `json:"misses"`

	// MemoryEntries is the current LRU population.
	MemoryEntries int `json:"memory_entries"`

	// PersistedEntries is the current SQLite row count.
	PersistedEntries int `json:"persisted_entries"`
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats(ctx context.Context) Stats {
	s := Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		MemoryEntries: c.lru.Len(),
	}
	row := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM response_cache`)
	if err := row.Scan(&s.PersistedEntries); err != nil {
		c.log.Warn("failed to count cache rows", slog.Any("error", err))
	}
	return s
}

// Close releases the persistent tier.
func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("respcache: close: %w", err)
	}
	return nil
}
