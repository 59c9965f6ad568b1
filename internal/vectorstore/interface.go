package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks docqa/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
// Score is the cosine similarity (1 - cosine distance).
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// VectorStore defines the interface for vector storage operations.
// Filters are exact-match conditions on payload fields; a nil or empty filter matches every point.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the k nearest points by cosine similarity, best first.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)

	// DeleteWhere removes every point matching filters and returns how many were removed.
	DeleteWhere(ctx context.Context, collection string, filters map[string]any) (int, error)

	// Count returns the number of points matching filters.
	Count(ctx context.Context, collection string, filters map[string]any) (int, error)

	// Scroll returns the payloads of every point matching filters.
	// When fields is non-empty only those payload fields are returned.
	Scroll(ctx context.Context, collection string, filters map[string]any, fields []string) ([]map[string]any, error)

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)
}
