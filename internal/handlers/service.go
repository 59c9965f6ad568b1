package handlers

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_service.go -package=mocks docqa/internal/handlers DocumentService
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_llm_status.go -package=mocks docqa/internal/handlers LLMStatus

import (
	"context"

	"docqa/internal/documents"
)

// DocumentService is the document lifecycle the HTTP layer drives.
type DocumentService interface {
	Upload(ctx context.Context, filename string, raw []byte, metadata map[string]any) (documents.UploadResult, error)
	Delete(ctx context.Context, filename string) (documents.DeleteResult, error)
	List(ctx context.Context) ([]documents.DocumentInfo, error)
	IsIndexReachable(ctx context.Context) bool
	DocumentCount(ctx context.Context) int
}

// LLMStatus reports on the language model server.
type LLMStatus interface {
	Ping(ctx context.Context) error
	ModelAvailable(ctx context.Context) (bool, error)
}
