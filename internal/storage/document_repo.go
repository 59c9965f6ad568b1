package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks docqa/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// timestampLayout is how uploaded_at is written.
const timestampLayout = time.RFC3339Nano

// DocumentStore defines the interface for the upload registry.
type DocumentStore interface {
	// Upsert inserts a record or replaces the one with the same filename.
	Upsert(ctx context.Context, doc *DocumentRecord) error
	// Get returns the record for filename, or ErrNotFound.
	Get(ctx context.Context, filename string) (*DocumentRecord, error)
	// Delete removes the record for filename. It reports whether a row was removed.
	Delete(ctx context.Context, filename string) (bool, error)
	// ListAll returns every record ordered by filename.
	ListAll(ctx context.Context) ([]DocumentRecord, error)
}

// DocumentRepo provides methods for document registry operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// Upsert inserts a new record or updates the existing one for the same filename.
// A zero UploadedAt is set to the current time.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *DocumentRecord) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (filename, extension, size_bytes, sha256, chunk_count, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (filename) DO UPDATE SET
		 extension = excluded.extension, size_bytes = excluded.size_bytes, sha256 = excluded.sha256,
		 chunk_count = excluded.chunk_count, uploaded_at = excluded.uploaded_at`,
		doc.Filename, doc.Extension, doc.SizeBytes, doc.SHA256, doc.ChunkCount, doc.UploadedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

// Get returns the record for filename.
// Returns nil and ErrNotFound if not found.
func (r *DocumentRepo) Get(ctx context.Context, filename string) (*DocumentRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT filename, extension, size_bytes, sha256, chunk_count, uploaded_at FROM documents WHERE filename = ?",
		filename,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return doc, nil
}

// Delete removes the record for filename.
func (r *DocumentRepo) Delete(ctx context.Context, filename string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE filename = ?", filename)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ListAll returns every record ordered by filename.
func (r *DocumentRepo) ListAll(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT filename, extension, size_bytes, sha256, chunk_count, uploaded_at FROM documents ORDER BY filename",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := []DocumentRecord{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*DocumentRecord, error) {
	var doc DocumentRecord
	var uploadedAtStr string
	if err := row.Scan(&doc.Filename, &doc.Extension, &doc.SizeBytes, &doc.SHA256, &doc.ChunkCount, &uploadedAtStr); err != nil {
		return nil, err
	}

	uploadedAt, err := parseTimestamp(uploadedAtStr)
	if err != nil {
		return nil, err
	}
	doc.UploadedAt = uploadedAt
	return &doc, nil
}

// parseTimestamp accepts RFC3339 as written by Upsert and SQLite's CURRENT_TIMESTAMP format.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse uploaded_at timestamp: %w", err)
	}
	return t, nil
}
