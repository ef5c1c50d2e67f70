package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corpuslabs/ragd/internal/logging"
	"github.com/corpuslabs/ragd/internal/rag"
)

// errorBody is the JSON error envelope: {"detail": "..."}.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError maps a pipeline error onto an HTTP status and writes the error
// envelope. The mapping mirrors the error taxonomy: validation failures are
// the caller's fault (400), missing documents are 404, upstream chat failures
// are 502, and store or unknown failures are 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	detail := "internal server error"

	var ve *rag.ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		detail = ve.Reason
	case errors.Is(err, rag.ErrNotFound):
		status = http.StatusNotFound
		detail = "Document not found"
	case rag.IsUpstream(err):
		status = http.StatusBadGateway
		detail = err.Error()
	case rag.IsStore(err):
		detail = err.Error()
	}

	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		log.Warn("request rejected", slog.Int("status", status), slog.Any("error", err))
	}

	writeJSON(w, r, status, errorBody{Detail: detail})
}
