package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/assura-labs/assura-go/internal/logging"
)

// probeTimeout is the maximum time allowed for each individual dependency
// probe during a readiness check. Kept short so /api/ready responds quickly
// even when a dependency is slow rather than unreachable.
const probeTimeout = 5 * time.Second

// healthResponse is the JSON body returned by GET /api/health.
type healthResponse struct {
	// Status is always "ok" when the process is serving requests.
	Status string `json:"status"`
	// Initialized is true when the knowledge base holds at least one
	// document. False means the server is up but answering in degraded mode.
	Initialized bool `json:"initialized"`
}

// handleHealth handles GET /api/health for liveness checks. The process
// being able to respond is the liveness signal; the initialized flag tells
// operators whether ingestion produced a usable knowledge base.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	initialized := true
	if s.initialized != nil {
		initialized = s.initialized()
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Initialized: initialized})
}

// readyCheck holds the per-dependency result of a readiness probe.
type readyCheck struct {
	// Name is the dependency label (e.g. "qdrant", "openai").
	Name string `json:"name"`
	// OK is true when the dependency responded successfully.
	OK bool `json:"ok"`
	// Error contains the failure reason when OK is false. Empty on success.
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	// Ready is true only when every dependency probe succeeded.
	Ready bool `json:"ready"`
	// Checks contains the per-dependency probe results.
	Checks []readyCheck `json:"checks"`
}

// handleReady handles GET /api/ready for readiness checks.
// It probes each registered Pinger with a short timeout and returns 200 when
// all dependencies are reachable, or 503 when any probe fails.
// Unlike /api/health (liveness), this endpoint reflects actual dependency state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true}
	allOK := true

	for _, p := range s.pingers {
		probeCtx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Ping(probeCtx)
		cancel()

		check := readyCheck{Name: p.Name(), OK: err == nil}
		if err != nil {
			check.Error = err.Error()
			allOK = false
			log.Warn("readiness probe failed",
				slog.String("dependency", p.Name()),
				slog.Any("error", err),
			)
		}
		resp.Checks = append(resp.Checks, check)
	}

	resp.Ready = allOK

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
