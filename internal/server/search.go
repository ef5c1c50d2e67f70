package server

import (
	"net/http"
	"strconv"

	"github.com/corpuslabs/ragd/internal/rag"
)

// handleSearch handles GET /search?query=...&limit=N. Results are returned
// ordered by descending similarity score; an empty store yields an empty
// list, not an error.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	// An omitted limit gets the configured default; an explicit value is
	// passed through as-is, so limit=0 fails validation downstream.
	limit := s.cfg.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, rag.Validationf("limit", "must be an integer, got %q", raw))
			return
		}
		limit = n
	}

	results, err := s.searcher.Search(r.Context(), query, limit)
	if err != nil {
		s.metrics.searchesTotal.WithLabelValues("error").Inc()
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []rag.SearchResult{}
	}

	s.metrics.searchesTotal.WithLabelValues("ok").Inc()
	writeJSON(w, r, http.StatusOK, results)
}
