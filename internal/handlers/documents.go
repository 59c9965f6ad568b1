package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"docqa/internal/documents"
)

// DocumentsHandler lists and deletes documents.
type DocumentsHandler struct {
	docs DocumentService
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(docs DocumentService) *DocumentsHandler {
	return &DocumentsHandler{docs: docs}
}

// DocumentResponse is one stored document.
//
// swagger:model DocumentResponse
type DocumentResponse struct {
	Filename   string `json:"filename"`
	SizeBytes  int64  `json:"size_bytes"`
	UploadedAt string `json:"uploaded_at"`
	// Null when the count could not be determined
	ChunksCount      *int `json:"chunks_count"`
	ChunksCountExact bool `json:"chunks_count_exact"`
}

// DocumentListResponse lists stored documents.
//
// swagger:model DocumentListResponse
type DocumentListResponse struct {
	Documents  []DocumentResponse `json:"documents"`
	TotalCount int                `json:"total_count"`
}

// DeleteResponse reports a deletion.
//
// swagger:model DeleteResponse
type DeleteResponse struct {
	Message       string `json:"message"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

// List handles GET /api/documents.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.docs.List(ctx)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list documents")
		return
	}

	resp := DocumentListResponse{
		Documents:  make([]DocumentResponse, len(docs)),
		TotalCount: len(docs),
	}
	for i, d := range docs {
		resp.Documents[i] = DocumentResponse{
			Filename:         d.Filename,
			SizeBytes:        d.SizeBytes,
			UploadedAt:       d.UploadedAt.UTC().Format(time.RFC3339),
			ChunksCount:      d.ChunkCount,
			ChunksCountExact: d.ChunkCountExact,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/documents/{filename}.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filename := chi.URLParam(r, "filename")

	result, err := h.docs.Delete(ctx, filename)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to delete document")
		return
	}
	if result.Status == documents.StatusNotFound {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Document %s not found", filename))
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{
		Message:       fmt.Sprintf("Document %s deleted", filename),
		ChunksDeleted: result.ChunksDeleted,
	})
}
