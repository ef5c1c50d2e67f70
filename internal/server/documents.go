package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/corpuslabs/ragd/internal/rag"
)

// handleAddDocument handles POST /documents. It validates the text, embeds
// it, and upserts the document. Re-adding identical content returns the
// existing ID unless allow_duplicates is set.
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, rag.Validationf("body", "invalid request body"))
		return
	}
	if err := s.validateText(req.Text); err != nil {
		writeError(w, r, err)
		return
	}

	embeddings, err := s.embeddings.Embed(r.Context(), []string{req.Text})
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.store.Upsert(r.Context(), req.Text, req.Metadata, embeddings[0], req.AllowDuplicates)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.documentsAddedTotal.WithLabelValues("single").Inc()
	writeJSON(w, r, http.StatusOK, documentResponse{
		Success: true,
		ID:      id,
		Message: "Document added successfully",
		Metadata: map[string]any{
			"text_length":         len(req.Text),
			"embedding_dimension": len(embeddings[0]),
		},
	})
}

// handleBulkAdd handles POST /documents/bulk. All texts are embedded in one
// batch, then inserted atomically with in-batch and cross-batch duplicate
// suppression.
func (s *Server) handleBulkAdd(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, rag.Validationf("body", "invalid request body"))
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, r, rag.Validationf("documents", "No documents provided"))
		return
	}

	texts := make([]string, 0, len(req.Documents))
	for _, d := range req.Documents {
		if strings.TrimSpace(d.Text) == "" {
			writeError(w, r, rag.Validationf("documents", "All documents must have 'text' field"))
			return
		}
		if err := s.validateText(d.Text); err != nil {
			writeError(w, r, err)
			return
		}
		texts = append(texts, d.Text)
	}

	embeddings, err := s.embeddings.Embed(r.Context(), texts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	docs := make([]rag.PendingDocument, 0, len(req.Documents))
	for i, d := range req.Documents {
		docs = append(docs, rag.PendingDocument{
			Content:   d.Text,
			Metadata:  d.Metadata,
			Embedding: embeddings[i],
		})
	}

	res, err := s.store.BulkUpsert(r.Context(), docs, req.AllowDuplicates)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids := res.AddedIDs
	if ids == nil {
		ids = []string{}
	}
	s.metrics.documentsAddedTotal.WithLabelValues("bulk").Add(float64(len(ids)))
	writeJSON(w, r, http.StatusOK, bulkResponse{
		Message:        "Bulk add completed",
		DocumentsAdded: len(ids),
		DocumentIDs:    ids,
		TotalRequested: res.TotalRequested,
	})
}

// handleGetDocument handles GET /documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, documentView{
		ID:        doc.ID,
		Text:      doc.Content,
		Metadata:  doc.Metadata,
		CreatedAt: doc.CreatedAt,
	})
}

// handleUpdateDocument handles PUT /documents/{id}. The replacement text is
// re-embedded; the document keeps its ID and creation time.
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, rag.Validationf("body", "invalid request body"))
		return
	}
	if err := s.validateText(req.Text); err != nil {
		writeError(w, r, err)
		return
	}

	embeddings, err := s.embeddings.Embed(r.Context(), []string{req.Text})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := s.store.Update(r.Context(), id, req.Text, req.Metadata, embeddings[0]); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, mutationResponse{
		Message:    "Document updated successfully",
		DocumentID: id,
	})
}

// handleDeleteDocument handles DELETE /documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, mutationResponse{
		Message:    "Document deleted successfully",
		DocumentID: id,
	})
}

// validateText enforces the non-empty and maximum-length rules shared by the
// add and update handlers.
func (s *Server) validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return rag.Validationf("text", "Document text cannot be empty")
	}
	if len(text) > s.cfg.MaxDocumentLength {
		return rag.Validationf("text", "Document text too long (max %d characters)", s.cfg.MaxDocumentLength)
	}
	return nil
}
