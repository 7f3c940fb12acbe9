package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant-backed vector store.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance. It is the
// alternate backend for deployments that outgrow the SQLite full-scan store;
// cosine scoring and the score threshold are pushed down to the server.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig

	// log is the structured logger for store events.
	log *slog.Logger
}

// NewQdrantStore creates a QdrantStore for the given config. Call Init to
// ensure the target collection exists before first use.
func NewQdrantStore(cfg *QdrantConfig, log *slog.Logger) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if log == nil {
		log = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: qdrant client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg, log: log}, nil
}

// Init creates the collection with cosine distance if it does not exist.
func (s *QdrantStore) Init(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("rag: qdrant collection check: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("rag: qdrant create collection %q: %w", s.cfg.Collection, err)
	}
	s.log.Info("qdrant collection created", slog.String("collection", s.cfg.Collection))
	return nil
}

// pointID derives a deterministic Qdrant UUID from a document ID, so that
// re-upserting the same document replaces the prior point.
func pointID(docID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String())
}

// Upsert stores or replaces documents by their derived point IDs.
// Documents without an embedding are skipped with a warning.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document) error {
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for _, doc := range docs {
		if doc.Embedding == nil {
			s.log.Warn("document has no embedding, skipping", slog.String("id", doc.ID))
			continue
		}

		payload := map[string]interface{}{
			"doc_id":  doc.ID,
			"content": doc.Content,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      pointID(doc.ID),
			Vectors: qdrant.NewVectors(doc.Embedding...),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	if len(points) == 0 {
		return nil
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("rag: qdrant upsert: %w", err)
	}
	return nil
}

// Search runs a server-side cosine similarity query with the score threshold
// pushed down, returning at most k results ordered best first.
func (s *QdrantStore) Search(ctx context.Context, queryVector []float32, k int, threshold float64) ([]ScoredDocument, error) {
	limit := uint64(k)
	scoreThreshold := float32(threshold)

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          &limit,
		ScoreThreshold: &scoreThreshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("rag: qdrant search: %w", err)
	}

	results := make([]ScoredDocument, 0, len(points))
	for _, p := range points {
		doc := Document{Metadata: make(map[string]string)}
		for key, value := range p.Payload {
			switch key {
			case "doc_id":
				doc.ID = value.GetStringValue()
			case "content":
				doc.Content = value.GetStringValue()
			default:
				doc.Metadata[key] = value.GetStringValue()
			}
		}
		results = append(results, ScoredDocument{Score: float64(p.Score), Doc: doc})
	}
	return results, nil
}

// Stats reports document and per-file counts by scrolling point payloads.
// The scroll is bounded to the target corpus scale (thousands of chunks).
func (s *QdrantStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{FileCounts: make(map[string]int)}

	limit := uint32(10000)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.cfg.Collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayloadInclude(MetaSourceFile),
	})
	if err != nil {
		return nil, fmt.Errorf("rag: qdrant stats scroll: %w", err)
	}

	stats.TotalDocuments = len(points)
	for _, p := range points {
		if v, ok := p.Payload[MetaSourceFile]; ok {
			if source := v.GetStringValue(); source != "" {
				stats.FileCounts[source]++
			}
		}
	}
	stats.FilesIndexed = len(stats.FileCounts)
	return stats, nil
}

// Clear drops and recreates the collection.
func (s *QdrantStore) Clear(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return fmt.Errorf("rag: qdrant delete collection: %w", err)
	}
	return s.Init(ctx)
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// Ping probes the Qdrant instance; used by readiness checks.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	return nil
}

// Name returns the backend label used in readiness responses.
func (s *QdrantStore) Name() string { return "qdrant" }

// String describes the store target for log messages.
func (s *QdrantStore) String() string {
	return "qdrant://" + s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port) + "/" + s.cfg.Collection
}
