// Package documents manages the lifecycle of uploaded documents: validation,
// extraction, indexing, listing, deletion and reconciliation with the index.
package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"docqa/internal/contextutil"
	"docqa/internal/filestore"
	"docqa/internal/indexer"
	"docqa/internal/lock"
	"docqa/internal/service"
	"docqa/internal/storage"
)

// DefaultMaxFileSize is the upload size limit when none is configured.
const DefaultMaxFileSize = 10 << 20

// DefaultAllowedExtensions are the formats the extractor understands.
var DefaultAllowedExtensions = []string{".pdf", ".txt", ".md", ".docx"}

// Index is the chunk index the manager writes to.
type Index interface {
	Add(ctx context.Context, chunks []indexer.Chunk) (int, error)
	RemoveSource(ctx context.Context, source string) (int, error)
	DeleteBySource(ctx context.Context, source string) int
	CountBySource(ctx context.Context, source string) (int, error)
	Count(ctx context.Context) (int, error)
	ListSources(ctx context.Context) []string
	ClearAll(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Extractor turns raw document bytes into text.
type Extractor interface {
	Extract(filename string, raw []byte) (string, error)
}

// FileStore keeps the raw uploads.
type FileStore interface {
	Save(name string, raw []byte) error
	Delete(name string) (bool, error)
	Exists(name string) (bool, error)
	List(ctx context.Context) ([]filestore.FileInfo, error)
}

// Config holds upload limits.
type Config struct {
	AllowedExtensions []string
	MaxFileSize       int64
}

// Manager coordinates uploads, deletions and listings.
type Manager struct {
	index     Index
	extractor Extractor
	files     FileStore
	registry  storage.DocumentStore
	chunker   *indexer.Chunker
	locker    lock.Locker
	allowed   map[string]struct{}
	maxSize   int64
}

// NewManager creates a Manager. Empty config fields fall back to the defaults.
func NewManager(
	index Index,
	extractor Extractor,
	files FileStore,
	registry storage.DocumentStore,
	chunker *indexer.Chunker,
	locker lock.Locker,
	cfg Config,
) *Manager {
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	return &Manager{
		index:     index,
		extractor: extractor,
		files:     files,
		registry:  registry,
		chunker:   chunker,
		locker:    locker,
		allowed:   allowed,
		maxSize:   maxSize,
	}
}

// UploadResult describes a successful upload.
type UploadResult struct {
	Filename       string
	ChunksCreated  int
	ChunksReplaced int
	Stats          indexer.ChunkStats
}

// DeleteStatus is the outcome of a delete.
type DeleteStatus string

const (
	// StatusDeleted means chunks or a file were removed.
	StatusDeleted DeleteStatus = "deleted"
	// StatusNotFound means there was nothing to remove.
	StatusNotFound DeleteStatus = "not_found"
)

// DeleteResult describes a delete.
type DeleteResult struct {
	Status        DeleteStatus
	ChunksDeleted int
	FileRemoved   bool
}

// SanitizeFilename reduces name to its base name and rejects anything that is not a plain file name.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	// Browsers on Windows may send full paths
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "" || base == "." || base == ".." || base == "/" || strings.HasPrefix(base, ".") {
		return "", &service.ValidationError{Field: "filename", Message: fmt.Sprintf("invalid file name %q", name)}
	}
	return base, nil
}

// validateUpload checks the name, extension and size of an upload.
func (m *Manager) validateUpload(filename string, size int) (string, string, error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return "", "", err
	}

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := m.allowed[ext]; !ok {
		return "", "", &service.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported file type %q, allowed: %s", ext, strings.Join(m.AllowedExtensions(), ", ")),
		}
	}

	if int64(size) > m.maxSize {
		return "", "", &service.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file too large: %d bytes, limit %d bytes", size, m.maxSize),
		}
	}
	return name, ext, nil
}

// AllowedExtensions returns the accepted extensions, sorted.
func (m *Manager) AllowedExtensions() []string {
	exts := make([]string, 0, len(m.allowed))
	for ext := range m.allowed {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Upload validates, extracts and indexes a document, replacing any previous version.
// The raw bytes are stored only after indexing succeeds.
func (m *Manager) Upload(ctx context.Context, filename string, raw []byte, metadata map[string]any) (UploadResult, error) {
	name, ext, err := m.validateUpload(filename, len(raw))
	if err != nil {
		return UploadResult{}, err
	}
	ctx = contextutil.With(ctx, "filename", name)
	logger := contextutil.LoggerFromContext(ctx)

	text, err := m.extractor.Extract(name, raw)
	if err != nil {
		logger.WarnContext(ctx, "text extraction failed", "error", err)
		return UploadResult{}, &service.ExtractionError{Filename: name, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return UploadResult{}, &service.ValidationError{Field: "file", Message: "document contains no extractable text"}
	}

	chunks, err := m.chunker.Split(text, name, metadata)
	if err != nil {
		return UploadResult{}, &service.ValidationError{Field: "metadata", Message: err.Error()}
	}

	unlock, err := m.locker.Lock(ctx, name)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to lock %s: %w", name, err)
	}
	defer unlock()

	replaced, err := m.index.RemoveSource(ctx, name)
	if err != nil {
		logger.ErrorContext(ctx, "failed to remove previous chunks", "error", err)
		return UploadResult{}, fmt.Errorf("%w: %v", service.ErrServiceUnavailable, err)
	}

	created, err := m.index.Add(ctx, chunks)
	if err != nil {
		logger.ErrorContext(ctx, "failed to index chunks", "error", err)
		if replaced > 0 {
			m.markUnindexed(ctx, name)
		}
		return UploadResult{}, fmt.Errorf("%w: failed to index %s: %v", service.ErrExternalService, name, err)
	}

	if err := m.files.Save(name, raw); err != nil {
		return UploadResult{}, fmt.Errorf("failed to store %s: %w", name, err)
	}

	sum := sha256.Sum256(raw)
	record := &storage.DocumentRecord{
		Filename:   name,
		Extension:  ext,
		SizeBytes:  int64(len(raw)),
		SHA256:     hex.EncodeToString(sum[:]),
		ChunkCount: created,
	}
	if err := m.registry.Upsert(ctx, record); err != nil {
		// Listing falls back to the file store when the registry is stale
		logger.WarnContext(ctx, "failed to record upload", "error", err)
	}

	stats := indexer.ComputeStats(chunks)
	logger.InfoContext(ctx, "document uploaded",
		"chunks_created", created,
		"chunks_replaced", replaced,
		"mean_chars", stats.MeanChars,
		"max_chars", stats.MaxChars,
	)

	return UploadResult{
		Filename:       name,
		ChunksCreated:  created,
		ChunksReplaced: replaced,
		Stats:          stats,
	}, nil
}

// markUnindexed records that the stored previous version of name lost its chunks
// so listings report zero chunks until it is uploaded again.
func (m *Manager) markUnindexed(ctx context.Context, name string) {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := m.files.Exists(name)
	if err != nil || !exists {
		return
	}
	logger.WarnContext(ctx, "previous version is stored but no longer indexed, upload it again")

	record, err := m.registry.Get(ctx, name)
	if err != nil {
		logger.WarnContext(ctx, "failed to read upload record", "error", err)
		return
	}
	record.ChunkCount = 0
	if err := m.registry.Upsert(ctx, record); err != nil {
		logger.WarnContext(ctx, "failed to record lost chunks", "error", err)
	}
}

// Delete removes a document's chunks, file and registry record.
func (m *Manager) Delete(ctx context.Context, filename string) (DeleteResult, error) {
	name, err := SanitizeFilename(filename)
	if err != nil {
		return DeleteResult{}, err
	}
	ctx = contextutil.With(ctx, "filename", name)
	logger := contextutil.LoggerFromContext(ctx)

	unlock, err := m.locker.Lock(ctx, name)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to lock %s: %w", name, err)
	}
	defer unlock()

	chunksDeleted := m.index.DeleteBySource(ctx, name)

	fileRemoved, err := m.files.Delete(name)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("failed to delete file %s: %w", name, err)
	}

	if _, err := m.registry.Delete(ctx, name); err != nil {
		logger.WarnContext(ctx, "failed to delete upload record", "error", err)
	}

	result := DeleteResult{
		Status:        StatusDeleted,
		ChunksDeleted: chunksDeleted,
		FileRemoved:   fileRemoved,
	}
	if chunksDeleted == 0 && !fileRemoved {
		result.Status = StatusNotFound
	}

	logger.InfoContext(ctx, "document delete", "status", result.Status, "chunks_deleted", chunksDeleted, "file_removed", fileRemoved)
	return result, nil
}

// Reconcile removes chunks whose source has no stored file.
// Returns the number of chunks removed.
func (m *Manager) Reconcile(ctx context.Context) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := m.files.List(ctx)
	if err != nil {
		return 0, err
	}
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.Name] = struct{}{}
	}

	removed := 0
	for _, source := range m.index.ListSources(ctx) {
		if _, ok := present[source]; ok {
			continue
		}
		unlock, err := m.locker.Lock(ctx, source)
		if err != nil {
			return removed, fmt.Errorf("failed to lock %s: %w", source, err)
		}
		n, err := m.index.RemoveSource(ctx, source)
		unlock()
		if err != nil {
			return removed, err
		}
		if _, err := m.registry.Delete(ctx, source); err != nil {
			logger.WarnContext(ctx, "failed to delete upload record", "filename", source, "error", err)
		}
		logger.InfoContext(ctx, "removed orphaned chunks", "source", source, "chunks", n)
		removed += n
	}
	return removed, nil
}

// ResetResult describes a full reset.
type ResetResult struct {
	ChunksDeleted int
	FilesDeleted  int
}

// Reset removes every chunk, stored file and registry record.
func (m *Manager) Reset(ctx context.Context) (ResetResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	chunks, err := m.index.ClearAll(ctx)
	if err != nil {
		return ResetResult{}, err
	}

	files, err := m.files.List(ctx)
	if err != nil {
		return ResetResult{ChunksDeleted: chunks}, err
	}
	result := ResetResult{ChunksDeleted: chunks}
	for _, f := range files {
		removed, err := m.files.Delete(f.Name)
		if err != nil {
			return result, err
		}
		if removed {
			result.FilesDeleted++
		}
	}

	records, err := m.registry.ListAll(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to list upload records", "error", err)
		return result, nil
	}
	for _, r := range records {
		if _, err := m.registry.Delete(ctx, r.Filename); err != nil {
			logger.WarnContext(ctx, "failed to delete upload record", "filename", r.Filename, "error", err)
		}
	}

	logger.InfoContext(ctx, "documents reset", "chunks_deleted", result.ChunksDeleted, "files_deleted", result.FilesDeleted)
	return result, nil
}

// IsIndexReachable reports whether the chunk index answers.
func (m *Manager) IsIndexReachable(ctx context.Context) bool {
	return m.index.Ping(ctx) == nil
}

// DocumentCount returns the number of distinct indexed sources.
func (m *Manager) DocumentCount(ctx context.Context) int {
	return len(m.index.ListSources(ctx))
}
