package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"docqa/internal/contextutil"
)

// multipartOverhead is the allowance for multipart framing on top of the file limit.
const multipartOverhead = 1 << 20

// UploadHandler accepts document uploads.
type UploadHandler struct {
	docs        DocumentService
	maxFileSize int64
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(docs DocumentService, maxFileSize int64) *UploadHandler {
	return &UploadHandler{docs: docs, maxFileSize: maxFileSize}
}

// UploadResponse reports an indexed upload.
//
// swagger:model UploadResponse
type UploadResponse struct {
	Message        string `json:"message"`
	Filename       string `json:"filename"`
	ChunksCreated  int    `json:"chunks_created"`
	ChunksReplaced int    `json:"chunks_replaced"`
}

// ServeHTTP stores and indexes one document sent as the multipart field "file".
// An optional "metadata" field carries a JSON object attached to every chunk.
//
// swagger:route POST /api/upload uploadDocument
//
// responses:
//
//	'200': UploadResponse
//	'400': ErrorResponse
//	'413': ErrorResponse
//	'422': ErrorResponse
//	'503': ErrorResponse
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large, limit is %d bytes", h.maxFileSize))
			return
		}
		logger.WarnContext(ctx, "invalid multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "Expected a multipart form with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read upload", "error", err)
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	var metadata map[string]any
	if m := r.FormValue("metadata"); m != "" {
		if err := json.Unmarshal([]byte(m), &metadata); err != nil {
			writeError(w, http.StatusBadRequest, "metadata must be a JSON object")
			return
		}
	}

	result, err := h.docs.Upload(ctx, header.Filename, raw, metadata)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to process upload")
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Message:        fmt.Sprintf("Document %s indexed", result.Filename),
		Filename:       result.Filename,
		ChunksCreated:  result.ChunksCreated,
		ChunksReplaced: result.ChunksReplaced,
	})
}
