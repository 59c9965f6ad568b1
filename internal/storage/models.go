package storage

import "time"

// DocumentRecord is the registry row written after a successful upload.
type DocumentRecord struct {
	Filename   string    // Base name, primary key
	Extension  string    // Lower-case extension including the dot
	SizeBytes  int64     // Size of the raw upload
	SHA256     string    // Hex digest of the raw upload
	ChunkCount int       // Chunks created by the last upload
	UploadedAt time.Time // Time of the last successful upload
}
