package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// SQLiteStore is a VectorStore backed by a local SQLite database. Similarity
// search is a full table scan with in-process cosine scoring — acceptable at
// the target corpus scale of thousands of chunks. One row per document chunk,
// keyed by document ID, so re-ingestion replaces rather than duplicates.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB

	// path is the database file path, kept for stats and log messages.
	path string

	// log is the structured logger for store events.
	log *slog.Logger
}

// OpenSQLiteStore opens (or creates) a SQLiteStore at the given path.
// Use ":memory:" for an in-memory database in tests. Call Init before use.
func OpenSQLiteStore(path string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("rag: create store directory %s: %w", dir, err)
			}
		}
	}

	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("rag: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, path: path, log: log}, nil
}

// Init idempotently creates the vector_documents table and its index.
func (s *SQLiteStore) Init(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS vector_documents (
    id             TEXT PRIMARY KEY,
    content        TEXT NOT NULL,
    embedding_json TEXT NOT NULL,
    metadata_json  TEXT NOT NULL,
    created_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vector_documents_id ON vector_documents (id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("rag: init store: %w", err)
	}
	s.log.Info("vector store initialised", slog.String("path", s.path))
	return nil
}

// Upsert inserts or replaces documents by ID inside a single transaction, so
// a concurrent reader sees either the old record or the complete new one.
// Documents without an embedding are skipped with a warning.
func (s *SQLiteStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: upsert begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
INSERT OR REPLACE INTO vector_documents (id, content, embedding_json, metadata_json, created_at)
VALUES (?, ?, ?, ?, ?)`

	stored := 0
	now := time.Now().Unix()
	for _, doc := range docs {
		if doc.Embedding == nil {
			s.log.Warn("document has no embedding, skipping", slog.String("id", doc.ID))
			continue
		}

		embJSON, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("rag: marshal embedding for %s: %w", doc.ID, err)
		}
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("rag: marshal metadata for %s: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx, q, doc.ID, doc.Content, string(embJSON), string(metaJSON), now); err != nil {
			return fmt.Errorf("rag: upsert %s: %w", doc.ID, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: upsert commit: %w", err)
	}

	s.log.Info("documents upserted", slog.Int("stored", stored), slog.Int("skipped", len(docs)-stored))
	return nil
}

// Search scans all stored vectors, scores them against queryVector, and
// returns the top k results at or above threshold, best first. A record that
// fails to decode is skipped and logged rather than aborting the scan.
func (s *SQLiteStore) Search(ctx context.Context, queryVector []float32, k int, threshold float64) ([]ScoredDocument, error) {
	const q = `SELECT id, content, embedding_json, metadata_json FROM vector_documents`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("rag: search query: %w", err)
	}
	defer rows.Close()

	var results []ScoredDocument
	for rows.Next() {
		var id, content, embJSON, metaJSON string
		if err := rows.Scan(&id, &content, &embJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("rag: search scan: %w", err)
		}

		var embedding []float32
		if err := json.Unmarshal([]byte(embJSON), &embedding); err != nil {
			s.log.Warn("corrupt embedding record, skipping", slog.String("id", id), slog.Any("error", err))
			continue
		}
		var metadata map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
			s.log.Warn("corrupt metadata record, skipping", slog.String("id", id), slog.Any("error", err))
			continue
		}

		score := CosineSimilarity(queryVector, embedding)
		if score < threshold {
			continue
		}

		results = append(results, ScoredDocument{
			Score: score,
			Doc: Document{
				ID:        id,
				Content:   content,
				Metadata:  metadata,
				Embedding: embedding,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: search rows: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Stats reports total document count and per-source-file chunk counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{FileCounts: make(map[string]int)}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_documents`)
	if err := row.Scan(&stats.TotalDocuments); err != nil {
		return nil, fmt.Errorf("rag: stats count: %w", err)
	}

	const q = `
SELECT json_extract(metadata_json, '$.source_file') AS source_file, COUNT(*)
FROM   vector_documents
GROUP  BY source_file`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("rag: stats query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source sql.NullString
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("rag: stats scan: %w", err)
		}
		if source.Valid && source.String != "" {
			stats.FileCounts[source.String] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rag: stats rows: %w", err)
	}

	stats.FilesIndexed = len(stats.FileCounts)
	return stats, nil
}

// Clear removes every persisted document.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vector_documents`); err != nil {
		return fmt.Errorf("rag: clear: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("rag: close: %w", err)
	}
	return nil
}
