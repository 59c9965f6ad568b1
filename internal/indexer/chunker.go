package indexer

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 500
	// DefaultChunkOverlap is the number of trailing characters repeated at the start of the next chunk.
	DefaultChunkOverlap = 50

	paragraphSeparator = "\n\n"
	wordSeparator      = " "
)

// blankLine matches a paragraph boundary: a newline, optional horizontal whitespace, and another newline.
var blankLine = regexp.MustCompile(`\n[ \t\f\v]*\n`)

// Chunker splits extracted document text into overlapping, size-bounded chunks.
// Lengths are measured in characters (Unicode code points).
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker. A non-positive size falls back to DefaultChunkSize
// and a negative overlap is treated as zero. An overlap at or above the size is
// tolerated: the overlap tail is dropped whenever it would push a chunk past the limit.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// ChunkSize returns the configured maximum chunk length.
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// ChunkOverlap returns the configured overlap length.
func (c *Chunker) ChunkOverlap() int {
	return c.chunkOverlap
}

// Split splits text into chunks tagged with source and a sequential chunk index.
// Paragraphs (separated by blank lines) are packed greedily; a paragraph longer than
// the chunk size is split on word boundaries. Empty or whitespace-only text yields
// no chunks. Output is deterministic for identical input and configuration.
func (c *Chunker) Split(text, source string, metadata map[string]any) ([]Chunk, error) {
	if err := validateMetadata(metadata); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return []Chunk{}, nil
	}

	b := &chunkBuilder{source: source, metadata: metadata}
	var buffer string

	for _, para := range splitParagraphs(text) {
		if buffer == "" {
			if runeLen(para) > c.chunkSize {
				c.splitWords(b, para)
				continue
			}
			buffer = para
			continue
		}

		if runeLen(buffer)+runeLen(para)+len(paragraphSeparator) <= c.chunkSize {
			buffer += paragraphSeparator + para
			continue
		}

		// Buffer is full: flush it and start over with the overlap tail.
		b.emit(buffer)
		tail := c.overlapTail(buffer)

		switch {
		case tail != "" && runeLen(tail)+len(paragraphSeparator)+runeLen(para) <= c.chunkSize:
			buffer = tail + paragraphSeparator + para
		case runeLen(para) <= c.chunkSize:
			buffer = para
		default:
			buffer = ""
			c.splitWords(b, para)
		}
	}

	if strings.TrimSpace(buffer) != "" {
		b.emit(buffer)
	}

	return b.chunks, nil
}

// splitWords packs the words of an oversized paragraph into chunks without overlap.
// A single word longer than the chunk size becomes a chunk on its own.
func (c *Chunker) splitWords(b *chunkBuilder, para string) {
	var current string
	for _, word := range strings.Fields(para) {
		if current == "" {
			current = word
			continue
		}
		if runeLen(current)+runeLen(word)+len(wordSeparator) <= c.chunkSize {
			current += wordSeparator + word
			continue
		}
		b.emit(current)
		current = word
	}
	if current != "" {
		b.emit(current)
	}
}

// overlapTail returns the last chunkOverlap characters of s with leading whitespace removed.
func (c *Chunker) overlapTail(s string) string {
	if c.chunkOverlap == 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > c.chunkOverlap {
		runes = runes[len(runes)-c.chunkOverlap:]
	}
	return strings.TrimLeftFunc(string(runes), unicode.IsSpace)
}

// chunkBuilder assigns sequential indexes across everything emitted for one document.
type chunkBuilder struct {
	source   string
	metadata map[string]any
	chunks   []Chunk
}

func (b *chunkBuilder) emit(content string) {
	b.chunks = append(b.chunks, Chunk{
		Content:    content,
		Source:     b.source,
		ChunkIndex: len(b.chunks),
		Metadata:   copyMetadata(b.metadata),
	})
}

// splitParagraphs splits text on blank lines and drops empty paragraphs.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := blankLine.Split(text, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		paragraphs = append(paragraphs, part)
	}
	return paragraphs
}

func copyMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func validateMetadata(metadata map[string]any) error {
	for k, v := range metadata {
		if IsReservedKey(k) {
			return fmt.Errorf("%w: %q", ErrReservedMetadataKey, k)
		}
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return fmt.Errorf("%w: key %q has type %T", ErrInvalidMetadata, k, v)
		}
	}
	return nil
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
