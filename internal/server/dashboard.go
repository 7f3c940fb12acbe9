package server

import (
	"log/slog"
	"net/http"

	"github.com/assura-labs/assura-go/internal/logging"
)

// handleDashboard handles GET /api/dashboard/data, aggregating operational
// statistics from every wired component. Sections for components that are
// not configured are omitted from the response.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := dashboardResponse{Initialized: true}
	if s.initialized != nil {
		resp.Initialized = s.initialized()
	}

	if s.store != nil {
		stats, err := s.store.Stats(r.Context())
		if err != nil {
			log.Error("dashboard: store stats failed", slog.Any("error", err))
		} else {
			resp.Store = stats
		}
	}

	if s.extractor != nil {
		stats := s.extractor.Stats()
		resp.Extraction = &stats
	}

	if s.embedCache != nil {
		stats := s.embedCache.Stats()
		resp.EmbeddingCache = &stats
	}

	if s.respCache != nil {
		stats := s.respCache.Stats(r.Context())
		resp.ResponseCache = &stats
	}

	writeJSON(w, http.StatusOK, resp)
}

// cacheClearResponse is the JSON body returned by POST /api/cache/clear.
type cacheClearResponse struct {
	// Cleared lists the caches that were emptied.
	Cleared []string `json:"cleared"`
}

// handleCacheClear handles POST /api/cache/clear, emptying the embedding
// cache and the response cache. Counters survive so dashboards keep their
// history across a clear.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := cacheClearResponse{Cleared: []string{}}

	if s.embedCache != nil {
		s.embedCache.Clear()
		resp.Cleared = append(resp.Cleared, "embeddings")
	}

	if s.respCache != nil {
		if err := s.respCache.Clear(r.Context()); err != nil {
			log.Error("cache clear: response cache failed", slog.Any("error", err))
			http.Error(w, "failed to clear response cache", http.StatusInternalServerError)
			return
		}
		resp.Cleared = append(resp.Cleared, "responses")
	}

	log.Info("caches cleared", slog.Any("caches", resp.Cleared))
	writeJSON(w, http.StatusOK, resp)
}
