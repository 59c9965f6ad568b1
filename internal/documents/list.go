package documents

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"docqa/internal/contextutil"
	"docqa/internal/storage"
)

// DocumentInfo is one row of the document listing.
type DocumentInfo struct {
	Filename   string
	SizeBytes  int64
	UploadedAt time.Time
	// ChunkCount is nil when neither the index nor the registry could provide it.
	ChunkCount *int
	// ChunkCountExact is true when ChunkCount came from the index itself.
	ChunkCountExact bool
}

// List returns the stored documents sorted by name.
func (m *Manager) List(ctx context.Context) ([]DocumentInfo, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := m.files.List(ctx)
	if err != nil {
		return nil, err
	}

	records := make(map[string]storage.DocumentRecord)
	all, err := m.registry.ListAll(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to read upload records", "error", err)
	}
	for _, r := range all {
		records[r.Filename] = r
	}

	docs := make([]DocumentInfo, 0, len(files))
	for _, f := range files {
		if _, ok := m.allowed[strings.ToLower(filepath.Ext(f.Name))]; !ok {
			continue
		}

		info := DocumentInfo{
			Filename:   f.Name,
			SizeBytes:  f.Size,
			UploadedAt: f.ModTime,
		}
		rec, hasRecord := records[f.Name]
		if hasRecord {
			info.UploadedAt = rec.UploadedAt
		}

		if n, err := m.index.CountBySource(ctx, f.Name); err == nil {
			info.ChunkCount = &n
			info.ChunkCountExact = true
		} else {
			logger.WarnContext(ctx, "failed to count chunks", "filename", f.Name, "error", err)
			if hasRecord {
				n := rec.ChunkCount
				info.ChunkCount = &n
			}
		}

		docs = append(docs, info)
	}
	return docs, nil
}
