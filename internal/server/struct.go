package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/corpuslabs/ragd/internal/answer"
	"github.com/corpuslabs/ragd/internal/embedder"
	"github.com/corpuslabs/ragd/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 0.0.0.0).
	Host string
	// Port is the TCP port to listen on (default: 8000).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default() is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /ready.
	// If empty, /ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all document, search, and chat
	// routes. If empty, authentication is disabled (development mode).
	APIKey string
	// MaxDocumentLength rejects documents longer than this many characters.
	// Defaults to 50000 if zero.
	MaxDocumentLength int
	// DefaultSearchLimit is the result count used when GET /search omits the
	// limit parameter. Defaults to 5 if zero.
	DefaultSearchLimit int
	// Registry receives all server metrics. If nil a private registry is
	// created, which keeps unit tests hermetic.
	Registry *prometheus.Registry
	// Version is reported by GET / (set from build metadata).
	Version string
}

// searcher is the interface handleSearch calls. *rag.Retriever satisfies it.
type searcher interface {
	Search(ctx context.Context, query string, limit int) ([]rag.SearchResult, error)
}

// asker is the interface handleChat calls. *answer.Synthesizer satisfies it.
type asker interface {
	Ask(ctx context.Context, question string, maxResults int) (*rag.Answer, error)
	ModelName() string
	MockMode() bool
	DefaultResults() int
}

// Deps bundles the pipeline components the server exposes over HTTP.
type Deps struct {
	// Store persists documents and serves vector queries.
	Store rag.DocumentStore
	// Embeddings converts text to vectors and reports the active model state.
	Embeddings *embedder.Generator
	// Retriever answers GET /search.
	Retriever *rag.Retriever
	// Synthesizer answers POST /chat.
	Synthesizer *answer.Synthesizer
}

// Server is the HTTP server exposing the retrieval pipeline as a REST API.
type Server struct {
	// store persists documents and serves vector queries.
	store rag.DocumentStore
	// embeddings produces vectors for added documents and reports model state.
	embeddings *embedder.Generator
	// searcher serves GET /search; set to the Retriever in production.
	searcher searcher
	// asker serves POST /chat; set to the Synthesizer in production.
	asker asker
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// registry is the Prometheus registry served by GET /metrics.
	registry *prometheus.Registry
	// started records the process start time for uptime reporting.
	started time.Time
}

// documentRequest is the JSON body for POST /documents and PUT /documents/{id}.
type documentRequest struct {
	// Text is the document content to embed and store.
	Text string `json:"text"`
	// Metadata holds caller-supplied key-value pairs stored with the document.
	Metadata map[string]any `json:"metadata,omitempty"`
	// AllowDuplicates disables content-based duplicate suppression (POST only).
	AllowDuplicates bool `json:"allow_duplicates,omitempty"`
}

// documentResponse is the JSON response for POST /documents.
type documentResponse struct {
	Success  bool           `json:"success"`
	ID       string         `json:"id"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata"`
}

// documentView is the JSON representation returned by GET /documents/{id}.
type documentView struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// bulkEntry is one document in a POST /documents/bulk request.
type bulkEntry struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// bulkRequest is the JSON body for POST /documents/bulk.
type bulkRequest struct {
	Documents       []bulkEntry `json:"documents"`
	AllowDuplicates bool        `json:"allow_duplicates,omitempty"`
}

// bulkResponse is the JSON response for POST /documents/bulk.
type bulkResponse struct {
	Message        string   `json:"message"`
	DocumentsAdded int      `json:"documents_added"`
	DocumentIDs    []string `json:"document_ids"`
	TotalRequested int      `json:"total_requested"`
}

// mutationResponse is the JSON response for PUT and DELETE on /documents/{id}.
type mutationResponse struct {
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
}

// chatRequest is the JSON body for POST /chat.
type chatRequest struct {
	// Question is the user's natural-language question.
	Question string `json:"question"`
	// MaxResults caps the number of context documents retrieved. A pointer
	// distinguishes an omitted field (configured default) from an explicit 0,
	// which is rejected like any other out-of-range value.
	MaxResults *int `json:"max_results,omitempty"`
}
