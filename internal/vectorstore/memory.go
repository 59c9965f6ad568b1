package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// ErrCollectionNotFound is returned by MemoryStore when a collection was never created.
var ErrCollectionNotFound = errors.New("collection not found")

// MemoryStore is an in-process VectorStore using brute-force cosine similarity.
// Points keep insertion order so ties in score resolve deterministically.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

type memoryCollection struct {
	dimension int
	ids       []string
	points    map[string]Point
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

// EnsureCollection creates the collection if needed and validates its dimension.
func (s *MemoryStore) EnsureCollection(_ context.Context, collection string, vectorSize int, _ ...string) error {
	if vectorSize <= 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[collection]; ok {
		if c.dimension != vectorSize {
			return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, c.dimension)
		}
		return nil
	}
	s.collections[collection] = &memoryCollection{dimension: vectorSize, points: make(map[string]Point)}
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	for _, p := range points {
		if len(p.Vec) != c.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", c.dimension, len(p.Vec))
		}
	}
	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			c.ids = append(c.ids, p.ID)
		}
		c.points[p.ID] = Point{ID: p.ID, Vec: append([]float32(nil), p.Vec...), Meta: copyMeta(p.Meta)}
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	results := make([]SearchResult, 0, len(c.ids))
	for _, id := range c.ids {
		p := c.points[id]
		if !matches(p.Meta, filters) {
			continue
		}
		results = append(results, SearchResult{
			PointID: p.ID,
			Score:   cosine(p.Vec, query),
			Meta:    copyMeta(p.Meta),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryStore) DeleteWhere(_ context.Context, collection string, filters map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	kept := c.ids[:0]
	deleted := 0
	for _, id := range c.ids {
		if matches(c.points[id].Meta, filters) {
			delete(c.points, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	c.ids = kept
	return deleted, nil
}

func (s *MemoryStore) Count(_ context.Context, collection string, filters map[string]any) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	n := 0
	for _, id := range c.ids {
		if matches(c.points[id].Meta, filters) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Scroll(_ context.Context, collection string, filters map[string]any, fields []string) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	var payloads []map[string]any
	for _, id := range c.ids {
		meta := c.points[id].Meta
		if !matches(meta, filters) {
			continue
		}
		if len(fields) == 0 {
			payloads = append(payloads, copyMeta(meta))
			continue
		}
		selected := make(map[string]any, len(fields))
		for _, f := range fields {
			if v, ok := meta[f]; ok {
				selected[f] = v
			}
		}
		payloads = append(payloads, selected)
	}
	return payloads, nil
}

func (s *MemoryStore) CollectionExists(_ context.Context, collection string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[collection]
	return ok, nil
}

// matches reports whether meta satisfies every exact-match filter.
// Integer kinds compare by value so 3 and int64(3) are equal.
func matches(meta, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := meta[key]
		if !ok {
			return false
		}
		if wi, ok := asInt64(want); ok {
			gi, ok := asInt64(got)
			if !ok || gi != wi {
				return false
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
