package handlers

import (
	"encoding/json"
	"math"
	"net/http"

	"docqa/internal/contextutil"
	"docqa/internal/rag"
)

// AskHandler handles HTTP requests for RAG queries.
type AskHandler struct {
	engine rag.Engine
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(engine rag.Engine) *AskHandler {
	return &AskHandler{engine: engine}
}

// AskRequest represents the HTTP request payload for RAG queries.
//
// swagger:model AskRequest
type AskRequest struct {
	Question string `json:"question"`
	// TopK is the number of chunks to retrieve. Zero selects the server default.
	TopK int `json:"top_k,omitempty"`
}

// SourceResponse is one retrieved chunk cited by an answer.
//
// swagger:model SourceResponse
type SourceResponse struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// AskResponse represents the HTTP response payload for RAG queries.
//
// swagger:model AskResponse
type AskResponse struct {
	// The generated answer
	Answer string `json:"answer"`

	// Chunks used as context, best first
	Sources []SourceResponse `json:"sources"`

	// Wall-clock seconds spent answering
	ProcessingTime float64 `json:"processing_time"`
}

// ServeHTTP answers a question from the indexed documents.
//
// swagger:route POST /api/ask askQuestion
//
// # Ask a question about the uploaded documents
//
// responses:
//
//	'200': AskResponse
//	'400': ErrorResponse
//	'502': ErrorResponse
//	'503': ErrorResponse
//	'504': ErrorResponse
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	answer, err := h.engine.Answer(ctx, req.Question, req.TopK)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to answer question")
		return
	}

	sources := make([]SourceResponse, len(answer.Sources))
	for i, s := range answer.Sources {
		sources[i] = SourceResponse{
			Content: s.Content,
			Source:  s.Source,
			Score:   s.Score,
		}
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:         answer.Text,
		Sources:        sources,
		ProcessingTime: math.Round(answer.Elapsed.Seconds()*100) / 100,
	})
}
