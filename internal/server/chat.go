package server

import (
	"encoding/json"
	"net/http"

	"github.com/corpuslabs/ragd/internal/rag"
)

// handleChat handles POST /chat. It retrieves context documents for the
// question and synthesizes a grounded answer. When the chat backend is
// unavailable and mock fallback is enabled, a degraded answer is returned
// instead of an error.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, rag.Validationf("body", "invalid request body"))
		return
	}

	maxResults := s.asker.DefaultResults()
	if req.MaxResults != nil {
		maxResults = *req.MaxResults
	}

	ans, err := s.asker.Ask(r.Context(), req.Question, maxResults)
	if err != nil {
		s.metrics.chatRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, r, err)
		return
	}

	outcome := "ok"
	if ans.Degraded {
		outcome = "degraded"
	}
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatTokensTotal.Add(float64(ans.TokensUsed))

	writeJSON(w, r, http.StatusOK, ans)
}
