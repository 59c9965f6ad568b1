package indexer

import "errors"

// Chunk represents a bounded slice of a document's text, embedded and indexed on its own.
type Chunk struct {
	Content    string         // Chunk text content (non-empty after trimming)
	Source     string         // Originating document filename
	ChunkIndex int            // Position within the source (starts at 0)
	Metadata   map[string]any // Caller-supplied scalar fields
}

// Reserved metadata keys. The chunk store writes these into every stored payload,
// so caller metadata may not use them.
const (
	MetaSource     = "source"
	MetaChunkIndex = "chunk_index"
	MetaChunkID    = "chunk_id"
	MetaContent    = "content"
)

var (
	// ErrReservedMetadataKey is returned when caller metadata uses a reserved key.
	ErrReservedMetadataKey = errors.New("reserved metadata key")
	// ErrInvalidMetadata is returned when a metadata value is not a scalar.
	ErrInvalidMetadata = errors.New("invalid metadata value")
)

// IsReservedKey reports whether key is written by the chunk store itself.
func IsReservedKey(key string) bool {
	switch key {
	case MetaSource, MetaChunkIndex, MetaChunkID, MetaContent:
		return true
	}
	return false
}
