package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docqa/internal/handlers"
	"docqa/internal/rag"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Engine      rag.Engine
	Documents   handlers.DocumentService
	LLM         handlers.LLMStatus
	MaxFileSize int64
	Version     string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.Engine)
	uploadHandler := handlers.NewUploadHandler(deps.Documents, deps.MaxFileSize)
	documentsHandler := handlers.NewDocumentsHandler(deps.Documents)
	healthHandler := handlers.NewHealthHandler(deps.Documents, deps.LLM, deps.Version)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodPost, "/upload", uploadHandler)
		r.Get("/documents", documentsHandler.List)
		r.Delete("/documents/{filename}", documentsHandler.Delete)
	})

	r.Method(http.MethodGet, "/health", healthHandler)

	return r
}
