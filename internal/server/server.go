// Package server implements the HTTP server that exposes the assura
// assistant via a JSON REST API. The server is started by the `assura serve`
// CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assura-labs/assura-go/internal/intent"
	"github.com/assura-labs/assura-go/internal/logging"
)

// New constructs a Server from the provided dependencies and config.
// Prometheus metrics are registered against reg; pass a fresh
// prometheus.NewRegistry() in tests to keep them hermetic.
func New(deps Dependencies, cfg *Config, reg *prometheus.Registry) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("server: engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Generation calls can take a while on slow backends.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		querier:     deps.Engine,
		store:       deps.Store,
		extractor:   deps.Extractor,
		initialized: deps.Initialized,
		analyzer:    intent.NewAnalyzer(),
		cfg:         cfg,
		log:         log,
		pingers:     cfg.Pingers,
		metrics:     newServerMetrics(reg),
	}
	// Typed nils must not survive into the interface fields, otherwise the
	// nil checks in the handlers stop working.
	if deps.RespCache != nil {
		s.respCache = deps.RespCache
	}
	if deps.EmbedCache != nil {
		s.embedCache = deps.EmbedCache
	}
	if deps.History != nil {
		s.history = deps.History
	}

	if cfg.APIKey == "" {
		log.Warn("server: API key not configured, authentication disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	// protect layers the per-IP rate limit and Bearer auth onto a handler.
	protect := func(h http.Handler) http.Handler {
		return rl.middleware(authMiddleware(cfg.APIKey, h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", protect(http.HandlerFunc(s.handleChat)))
	mux.Handle("GET /api/conversations/{id}", protect(http.HandlerFunc(s.handleConversation)))
	mux.Handle("GET /api/dashboard/data", protect(http.HandlerFunc(s.handleDashboard)))
	mux.Handle("POST /api/cache/clear", protect(http.HandlerFunc(s.handleCacheClear)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.metrics.middleware(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
