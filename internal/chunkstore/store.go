package chunkstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks docqa/internal/chunkstore Embedder

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"docqa/internal/contextutil"
	"docqa/internal/indexer"
	"docqa/internal/service"
	"docqa/internal/vectorstore"
)

// pointNamespace derives index point IDs from chunk IDs.
var pointNamespace = uuid.MustParse("6f1c8a5e-2b0d-4f7a-9c3e-5d8b1a2e4f60")

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is a chunk returned by similarity search.
type Result struct {
	Content    string
	Source     string
	ChunkIndex int
	// Score is the cosine similarity clamped to [0, 1].
	Score float64
}

// Store maps chunks onto a vector collection.
type Store struct {
	vectors    vectorstore.VectorStore
	embedder   Embedder
	collection string
}

// NewStore creates a chunk store writing to collection.
func NewStore(vectors vectorstore.VectorStore, embedder Embedder, collection string) *Store {
	return &Store{
		vectors:    vectors,
		embedder:   embedder,
		collection: collection,
	}
}

// ChunkID returns the stable identifier of a chunk.
func ChunkID(source string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", source, chunkIndex)
}

// PointID returns the index point ID for a chunk ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

// Add embeds chunks in one batch and writes them to the index.
// Returns the number of chunks written.
func (s *Store) Add(ctx context.Context, chunks []indexer.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	logger := contextutil.LoggerFromContext(ctx)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("expected %d embeddings, got %d", len(chunks), len(vectors))
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		chunkID := ChunkID(c.Source, c.ChunkIndex)
		meta := make(map[string]any, len(c.Metadata)+4)
		for k, v := range c.Metadata {
			meta[k] = v
		}
		meta[indexer.MetaSource] = c.Source
		meta[indexer.MetaChunkIndex] = c.ChunkIndex
		meta[indexer.MetaChunkID] = chunkID
		meta[indexer.MetaContent] = c.Content

		points[i] = vectorstore.Point{
			ID:   PointID(chunkID),
			Vec:  vectors[i],
			Meta: meta,
		}
	}

	if err := s.vectors.Upsert(ctx, s.collection, points); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}

	logger.DebugContext(ctx, "chunks added", "count", len(points), "source", chunks[0].Source)
	return len(points), nil
}

// Search returns up to topK chunks most similar to query, best first.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK < 1 {
		return nil, &service.ValidationError{Field: "top_k", Message: "must be at least 1"}
	}

	total, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []Result{}, nil
	}
	if topK > total {
		topK = total
	}

	vectors, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}

	hits, err := s.vectors.Search(ctx, s.collection, vectors[0], topK, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			Content:    stringField(hit.Meta, indexer.MetaContent),
			Source:     stringField(hit.Meta, indexer.MetaSource),
			ChunkIndex: intField(hit.Meta, indexer.MetaChunkIndex),
			Score:      clampScore(float64(hit.Score)),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

// DeleteBySource removes all chunks of source.
// Index failures are logged and reported as zero deletions.
func (s *Store) DeleteBySource(ctx context.Context, source string) int {
	n, err := s.RemoveSource(ctx, source)
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to delete chunks", "source", source, "error", err)
		return 0
	}
	return n
}

// RemoveSource removes all chunks of source and reports index failures.
func (s *Store) RemoveSource(ctx context.Context, source string) (int, error) {
	n, err := s.vectors.DeleteWhere(ctx, s.collection, map[string]any{indexer.MetaSource: source})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %s: %w", source, err)
	}
	return n, nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.vectors.Count(ctx, s.collection, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// CountBySource returns the number of chunks stored for source.
func (s *Store) CountBySource(ctx context.Context, source string) (int, error) {
	n, err := s.vectors.Count(ctx, s.collection, map[string]any{indexer.MetaSource: source})
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks for %s: %w", source, err)
	}
	return n, nil
}

// ListSources returns the distinct sources in the index, sorted.
// Index failures are logged and yield an empty list.
func (s *Store) ListSources(ctx context.Context) []string {
	payloads, err := s.vectors.Scroll(ctx, s.collection, nil, []string{indexer.MetaSource})
	if err != nil {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "failed to list sources", "error", err)
		return []string{}
	}

	seen := make(map[string]struct{})
	sources := []string{}
	for _, p := range payloads {
		src := stringField(p, indexer.MetaSource)
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	sort.Strings(sources)
	return sources
}

// ClearAll removes every chunk from the index.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	n, err := s.vectors.DeleteWhere(ctx, s.collection, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to clear chunks: %w", err)
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "index cleared", "deleted", n)
	return n, nil
}

// Ping checks that the index collection is reachable.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.vectors.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("collection %s does not exist", s.collection)
	}
	return nil
}

func stringField(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

// intField reads an integer payload field.
// Payload integers come back as int64 from Qdrant and may be float64 after JSON round-trips.
func intField(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
