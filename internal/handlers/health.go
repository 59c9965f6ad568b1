package handlers

import (
	"context"
	"net/http"
	"time"

	"docqa/internal/contextutil"
)

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	docs               DocumentService
	llm                LLMStatus
	version            string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(docs DocumentService, llm LLMStatus, version string) *HealthHandler {
	return &HealthHandler{
		docs:               docs,
		llm:                llm,
		version:            version,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status         string `json:"status"`
	Version        string `json:"version"`
	LLMStatus      string `json:"llm_status"`
	ModelAvailable bool   `json:"model_available"`
	IndexStatus    string `json:"index_status"`
	DocumentsCount int    `json:"documents_count"`
	Timestamp      string `json:"timestamp"`
}

// ServeHTTP reports the health of the service and its dependencies.
// Returns 503 only when the index is unreachable; an unreachable LLM degrades the status.
//
// swagger:route GET /api/health healthCheck
//
// responses:
//
//	'200': HealthResponse
//	'503': HealthResponse
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		LLMStatus:   "connected",
		IndexStatus: "connected",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.llm.Ping(checkCtx); err != nil {
		logger.WarnContext(ctx, "LLM health check failed", "error", err)
		resp.LLMStatus = "disconnected"
		resp.Status = "degraded"
	} else {
		available, err := h.llm.ModelAvailable(checkCtx)
		if err != nil {
			logger.WarnContext(ctx, "model availability check failed", "error", err)
		}
		resp.ModelAvailable = available
		if !available {
			resp.Status = "degraded"
		}
	}

	httpStatus := http.StatusOK
	if h.docs.IsIndexReachable(checkCtx) {
		resp.DocumentsCount = h.docs.DocumentCount(checkCtx)
	} else {
		resp.IndexStatus = "disconnected"
		resp.Status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}
