// Package extract turns uploaded document bytes into plain text.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for extensions with no registered reader.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// readerFunc extracts text from raw document bytes.
type readerFunc func(raw []byte) (string, error)

// Extractor dispatches on the file extension.
type Extractor struct {
	readers map[string]readerFunc
}

// New creates an Extractor for .txt, .md, .pdf and .docx files.
func New() *Extractor {
	return &Extractor{
		readers: map[string]readerFunc{
			".txt":  extractPlainText,
			".md":   extractMarkdown,
			".pdf":  extractPDF,
			".docx": extractDOCX,
		},
	}
}

// Supports reports whether ext (with leading dot, any case) has a reader.
func (e *Extractor) Supports(ext string) bool {
	_, ok := e.readers[strings.ToLower(ext)]
	return ok
}

// Extract returns the text content of filename.
func (e *Extractor) Extract(filename string, raw []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	read, ok := e.readers[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return read(raw)
}

// joinBlocks joins non-blank blocks with blank lines so the chunker sees paragraph boundaries.
func joinBlocks(blocks []string) string {
	kept := blocks[:0]
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n\n")
}
