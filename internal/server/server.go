// Package server implements the HTTP server that exposes the retrieval
// pipeline as a REST API: document CRUD, similarity search, and grounded
// chat. The server is started by the `ragd serve` CLI command.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// New constructs a Server from the provided pipeline components and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("server: store must not be nil")
	}
	if deps.Embeddings == nil {
		return nil, fmt.Errorf("server: embedding generator must not be nil")
	}
	if deps.Retriever == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if deps.Synthesizer == nil {
		return nil, fmt.Errorf("server: synthesizer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full chat round-trip including the retry.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MaxDocumentLength == 0 {
		cfg.MaxDocumentLength = 50000
	}
	if cfg.DefaultSearchLimit == 0 {
		cfg.DefaultSearchLimit = 5
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		store:      deps.Store,
		embeddings: deps.Embeddings,
		searcher:   deps.Retriever,
		asker:      deps.Synthesizer,
		cfg:        cfg,
		log:        cfg.Logger,
		pingers:    cfg.Pingers,
		registry:   cfg.Registry,
		metrics:    newServerMetrics(cfg.Registry),
		started:    time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /documents", s.handleAddDocument)
	mux.HandleFunc("POST /documents/bulk", s.handleBulkAdd)
	mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	mux.HandleFunc("PUT /documents/{id}", s.handleUpdateDocument)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /search", s.handleSearch)
	mux.HandleFunc("POST /chat", s.handleChat)

	if cfg.APIKey == "" {
		s.log.Warn("authentication disabled: no API key configured")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	var handler http.Handler = mux
	handler = rl.middleware(handler)
	handler = authMiddleware(cfg.APIKey, handler)
	handler = s.metrics.middleware(mux, handler)
	handler = requestLogger(s.log, handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// rootResponse is the JSON body returned by GET /.
type rootResponse struct {
	Name       string         `json:"name"`
	Version    string         `json:"version"`
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
	Statistics map[string]any `json:"statistics"`
}

// handleRoot handles GET / with a service summary: identity, component
// configuration, and store statistics.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	}
	if count, err := s.store.Count(r.Context()); err == nil {
		stats["document_count"] = count
	}

	writeJSON(w, r, http.StatusOK, rootResponse{
		Name:    "ragd",
		Version: s.cfg.Version,
		Status:  "healthy",
		Components: map[string]any{
			"collection":       s.store.CollectionName(),
			"embedding_model":  s.embeddings.ModelName(),
			"embedding_status": embeddingStatus(s.embeddings),
			"chat_model":       s.asker.ModelName(),
			"mock_mode":        s.asker.MockMode(),
		},
		Statistics: stats,
	})
}
