// Package cache stores embeddings in Redis so unchanged text is not re-embedded.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa/internal/contextutil"
)

const embeddingPrefix = "docqa:emb:"

// Embedder is the embedding backend being cached.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingCache wraps an Embedder with a Redis read-through cache.
// Redis failures are logged and the call falls through to the backend.
type EmbeddingCache struct {
	client *redis.Client
	next   Embedder
	model  string
	ttl    time.Duration
}

// NewEmbeddingCache creates a cache keyed by model and text hash.
func NewEmbeddingCache(client *redis.Client, next Embedder, model string, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{
		client: client,
		next:   next,
		model:  model,
		ttl:    ttl,
	}
}

// EmbedTexts returns cached vectors where present and embeds the rest in one backend call.
func (c *EmbeddingCache) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return c.next.EmbedTexts(ctx, texts)
	}
	logger := contextutil.LoggerFromContext(ctx)

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.key(text)
	}

	result := make([][]float32, len(texts))
	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		logger.WarnContext(ctx, "embedding cache read failed", "error", err)
		cached = nil
	}
	for i, v := range cached {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if vec, err := decodeVector([]byte(s)); err == nil {
			result[i] = vec
		}
	}

	var missIdx []int
	var missTexts []string
	for i, vec := range result {
		if vec == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	if len(missTexts) == 0 {
		logger.DebugContext(ctx, "embedding cache hit", "count", len(texts))
		return result, nil
	}

	fresh, err := c.next.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(fresh))
	}

	pipe := c.client.Pipeline()
	for j, i := range missIdx {
		result[i] = fresh[j]
		pipe.Set(ctx, keys[i], encodeVector(fresh[j]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.WarnContext(ctx, "embedding cache write failed", "error", err)
	}

	logger.DebugContext(ctx, "embedding cache", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return result, nil
}

func (c *EmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return embeddingPrefix + c.model + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid cached vector length %d", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
