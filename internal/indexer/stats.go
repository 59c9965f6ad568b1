package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"
)

const (
	// ChunkerVersion identifies the splitting algorithm.
	// Update this when chunking logic changes in a way that affects stored chunks.
	ChunkerVersion = "v2.0"
	// CharsPerToken is an approximation used for token estimates (4 chars per token).
	CharsPerToken = 4.0
)

// ChunkStats summarizes chunk lengths for one split.
type ChunkStats struct {
	// Count is the number of chunks.
	Count int `json:"count"`
	// MinChars is the shortest chunk length in characters.
	MinChars int `json:"min_chars"`
	// MaxChars is the longest chunk length in characters.
	MaxChars int `json:"max_chars"`
	// MeanChars is the mean chunk length in characters.
	MeanChars float64 `json:"mean_chars"`
	// P95Chars is the 95th percentile chunk length in characters.
	P95Chars int `json:"p95_chars"`
	// EstimatedTokens is the approximate token count across all chunks.
	EstimatedTokens int `json:"estimated_tokens"`
}

// ComputeStats computes length statistics for chunks.
func ComputeStats(chunks []Chunk) ChunkStats {
	if len(chunks) == 0 {
		return ChunkStats{}
	}

	lengths := make([]int, len(chunks))
	total := 0
	for i, chunk := range chunks {
		lengths[i] = utf8.RuneCountInString(chunk.Content)
		total += lengths[i]
	}
	sort.Ints(lengths)

	p95Index := int(math.Ceil(float64(len(lengths))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	mean := float64(total) / float64(len(lengths))
	tokens := int(math.Round(float64(total) / CharsPerToken))
	if tokens < 1 {
		tokens = 1
	}

	return ChunkStats{
		Count:           len(lengths),
		MinChars:        lengths[0],
		MaxChars:        lengths[len(lengths)-1],
		MeanChars:       math.Round(mean*100) / 100,
		P95Chars:        lengths[p95Index],
		EstimatedTokens: tokens,
	}
}

// IndexVersion returns a short hash identifying an index build
// (chunker version, embedding model and chunking parameters).
// Chunks produced under different versions should not be mixed in one collection.
func IndexVersion(embeddingModel string, chunkSize, chunkOverlap int) string {
	input := fmt.Sprintf("%s|%s|chunkSize=%d|chunkOverlap=%d",
		ChunkerVersion, embeddingModel, chunkSize, chunkOverlap)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}
