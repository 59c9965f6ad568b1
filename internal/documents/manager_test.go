package documents

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"docqa/internal/chunkstore"
	"docqa/internal/extract"
	"docqa/internal/filestore"
	"docqa/internal/indexer"
	"docqa/internal/lock"
	"docqa/internal/service"
	"docqa/internal/storage"
	storage_mocks "docqa/internal/storage/mocks"
	"docqa/internal/vectorstore"
)

// wordEmbedder maps text to counts of a few keywords.
type wordEmbedder struct{}

func (wordEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	vocab := []string{"python", "golang", "cooking", "garden"}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		vec := make([]float32, len(vocab)+1)
		for j, w := range vocab {
			vec[j] = float32(strings.Count(lower, w))
		}
		vec[len(vocab)] = 0.01
		out[i] = vec
	}
	return out, nil
}

type extractorFunc func(filename string, raw []byte) (string, error)

func (f extractorFunc) Extract(filename string, raw []byte) (string, error) {
	return f(filename, raw)
}

// flakyIndex fails per-source counts.
type flakyIndex struct {
	*chunkstore.Store
}

func (flakyIndex) CountBySource(context.Context, string) (int, error) {
	return 0, errors.New("index unreachable")
}

type fixture struct {
	manager *Manager
	vectors *vectorstore.MemoryStore
	chunks  *chunkstore.Store
	files   *filestore.Store
	repo    *storage.DocumentRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	mem := vectorstore.NewMemoryStore()
	if err := mem.EnsureCollection(ctx, "documents", 5); err != nil {
		t.Fatalf("EnsureCollection() error = %v", err)
	}
	chunks := chunkstore.NewStore(mem, wordEmbedder{}, "documents")

	files, err := filestore.New(filepath.Join(t.TempDir(), "docs"))
	if err != nil {
		t.Fatalf("filestore.New() error = %v", err)
	}

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	repo := storage.NewDocumentRepo(db)

	m := NewManager(chunks, extract.New(), files, repo, indexer.NewChunker(60, 10), lock.NewLocalLocker(), Config{})
	return &fixture{manager: m, vectors: mem, chunks: chunks, files: files, repo: repo}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "notes.txt", want: "notes.txt"},
		{in: "  notes.txt ", want: "notes.txt"},
		{in: "dir/sub/notes.md", want: "notes.md"},
		{in: `C:\Users\me\report.pdf`, want: "report.pdf"},
		{in: "", wantErr: true},
		{in: "..", wantErr: true},
		{in: "a/..", wantErr: true},
		{in: ".env", wantErr: true},
		{in: "/", wantErr: true},
	}
	for _, tt := range tests {
		got, err := SanitizeFilename(tt.in)
		if tt.wantErr {
			var vErr *service.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("SanitizeFilename(%q) error = %v, want ValidationError", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestManager_UploadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		raw      []byte
		metadata map[string]any
		field    string
	}{
		{name: "bad extension", filename: "image.png", raw: []byte("x"), field: "file"},
		{name: "too large", filename: "big.txt", raw: make([]byte, DefaultMaxFileSize+1), field: "file"},
		{name: "empty text", filename: "blank.txt", raw: []byte("   \n\n "), field: "file"},
		{name: "reserved metadata", filename: "a.txt", raw: []byte("Python"), metadata: map[string]any{"source": "x"}, field: "metadata"},
		{name: "hidden file", filename: ".secret.txt", raw: []byte("Python"), field: "filename"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Upload(ctx, tt.filename, tt.raw, tt.metadata)
			var vErr *service.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Upload() error = %v, want ValidationError", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.field)
			}
		})
	}

	if n, _ := f.chunks.Count(ctx); n != 0 {
		t.Errorf("Count() = %d after rejected uploads, want 0", n)
	}
	if files, _ := f.files.List(ctx); len(files) != 0 {
		t.Errorf("stored files = %v, want none", files)
	}
}

func TestManager_UploadExtensionCaseInsensitive(t *testing.T) {
	f := newFixture(t)

	res, err := f.manager.Upload(context.Background(), "NOTES.TXT", []byte("Golang notes"), nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Filename != "NOTES.TXT" || res.ChunksCreated != 1 {
		t.Errorf("Upload() = %+v", res)
	}
}

func TestManager_UploadExtractionError(t *testing.T) {
	f := newFixture(t)
	f.manager.extractor = extractorFunc(func(string, []byte) (string, error) {
		return "", errors.New("corrupt pdf")
	})

	_, err := f.manager.Upload(context.Background(), "broken.pdf", []byte("%PDF-garbage"), nil)
	var exErr *service.ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("Upload() error = %v, want ExtractionError", err)
	}
	if exErr.Filename != "broken.pdf" {
		t.Errorf("Filename = %q, want broken.pdf", exErr.Filename)
	}
	if !errors.Is(err, service.ErrExtraction) {
		t.Errorf("Upload() error = %v, want it to match ErrExtraction", err)
	}
}

func TestManager_UploadReplaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := "Python paragraph one.\n\nPython paragraph two.\n\nPython paragraph three is here."
	res, err := f.manager.Upload(ctx, "langs.txt", []byte(first), map[string]any{"lang": "en"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.ChunksCreated < 2 || res.ChunksReplaced != 0 {
		t.Errorf("first Upload() = %+v", res)
	}
	if res.Stats.Count != res.ChunksCreated {
		t.Errorf("Stats.Count = %d, want %d", res.Stats.Count, res.ChunksCreated)
	}

	res2, err := f.manager.Upload(ctx, "langs.txt", []byte("Golang only now."), nil)
	if err != nil {
		t.Fatalf("second Upload() error = %v", err)
	}
	if res2.ChunksReplaced != res.ChunksCreated || res2.ChunksCreated != 1 {
		t.Errorf("second Upload() = %+v, want replaced %d created 1", res2, res.ChunksCreated)
	}

	n, err := f.chunks.CountBySource(ctx, "langs.txt")
	if err != nil || n != 1 {
		t.Errorf("CountBySource() = %d, %v, want 1", n, err)
	}

	results, err := f.chunks.Search(ctx, "python", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, r := range results {
		if strings.Contains(r.Content, "Python") {
			t.Errorf("stale chunk survived re-upload: %q", r.Content)
		}
	}

	raw, err := f.files.Read("langs.txt")
	if err != nil || string(raw) != "Golang only now." {
		t.Errorf("stored file = %q, %v", raw, err)
	}
	rec, err := f.repo.Get(ctx, "langs.txt")
	if err != nil {
		t.Fatalf("registry Get() error = %v", err)
	}
	if rec.ChunkCount != 1 || rec.Extension != ".txt" || rec.SizeBytes != int64(len("Golang only now.")) {
		t.Errorf("registry record = %+v", rec)
	}
}

func TestManager_UploadIndexFailureKeepsFileOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mem := vectorstore.NewMemoryStore() // no collection created
	f.manager.index = chunkstore.NewStore(mem, wordEmbedder{}, "missing")

	_, err := f.manager.Upload(ctx, "a.txt", []byte("Python"), nil)
	if !errors.Is(err, service.ErrServiceUnavailable) {
		t.Fatalf("Upload() error = %v, want ErrServiceUnavailable", err)
	}
	if ok, _ := f.files.Exists("a.txt"); ok {
		t.Error("file stored although indexing failed")
	}
}

// failingAddIndex removes chunks normally but cannot add new ones.
type failingAddIndex struct {
	*chunkstore.Store
}

func (failingAddIndex) Add(context.Context, []indexer.Chunk) (int, error) {
	return 0, errors.New("embedding server down")
}

func TestManager_UploadIndexFailureMarksPreviousVersionUnindexed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.manager.Upload(ctx, "a.txt", []byte("Python first.\n\nGolang second."), nil); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	f.manager.index = failingAddIndex{f.chunks}
	_, err := f.manager.Upload(ctx, "a.txt", []byte("New content."), nil)
	if !errors.Is(err, service.ErrExternalService) {
		t.Fatalf("Upload() error = %v, want ErrExternalService", err)
	}

	if ok, _ := f.files.Exists("a.txt"); !ok {
		t.Error("previous file should remain stored")
	}
	rec, err := f.repo.Get(ctx, "a.txt")
	if err != nil {
		t.Fatalf("registry Get() error = %v", err)
	}
	if rec.ChunkCount != 0 {
		t.Errorf("registry ChunkCount = %d, want 0 after chunks were lost", rec.ChunkCount)
	}
	if n, _ := f.chunks.CountBySource(ctx, "a.txt"); n != 0 {
		t.Errorf("CountBySource() = %d, want 0", n)
	}
}

func TestManager_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.manager.Upload(ctx, "garden.md", []byte("# Garden\n\nGarden tips."), nil); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	res, err := f.manager.Delete(ctx, "garden.md")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if res.Status != StatusDeleted || res.ChunksDeleted == 0 || !res.FileRemoved {
		t.Errorf("Delete() = %+v", res)
	}
	if _, err := f.repo.Get(ctx, "garden.md"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("registry Get() error = %v, want ErrNotFound", err)
	}

	res, err = f.manager.Delete(ctx, "garden.md")
	if err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if res.Status != StatusNotFound || res.ChunksDeleted != 0 || res.FileRemoved {
		t.Errorf("second Delete() = %+v, want not_found", res)
	}
}

func TestManager_DeleteFileWithoutChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.files.Save("stray.txt", []byte("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	res, err := f.manager.Delete(ctx, "stray.txt")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if res.Status != StatusDeleted || res.ChunksDeleted != 0 || !res.FileRemoved {
		t.Errorf("Delete() = %+v", res)
	}
}

func TestManager_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"b.txt", "a.md"} {
		if _, err := f.manager.Upload(ctx, name, []byte("Cooking notes."), nil); err != nil {
			t.Fatalf("Upload(%s) error = %v", name, err)
		}
	}
	// Not an allowed extension, never listed
	if err := f.files.Save("ignore.png", []byte("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	docs, err := f.manager.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 || docs[0].Filename != "a.md" || docs[1].Filename != "b.txt" {
		t.Fatalf("List() = %+v", docs)
	}
	for _, d := range docs {
		if d.ChunkCount == nil || *d.ChunkCount != 1 || !d.ChunkCountExact {
			t.Errorf("%s chunk count = %v exact=%v, want exact 1", d.Filename, d.ChunkCount, d.ChunkCountExact)
		}
		if d.SizeBytes != int64(len("Cooking notes.")) {
			t.Errorf("%s SizeBytes = %d", d.Filename, d.SizeBytes)
		}
		if d.UploadedAt.IsZero() {
			t.Errorf("%s UploadedAt is zero", d.Filename)
		}
	}
}

func TestManager_ListFallsBackToRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.manager.Upload(ctx, "known.txt", []byte("Python facts."), nil); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := f.files.Save("unknown.txt", []byte("no record")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	f.manager.index = flakyIndex{Store: f.chunks}

	docs, err := f.manager.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("List() = %+v", docs)
	}
	known, unknown := docs[0], docs[1]
	if known.ChunkCount == nil || *known.ChunkCount != 1 || known.ChunkCountExact {
		t.Errorf("known = %+v, want inexact count 1", known)
	}
	if unknown.ChunkCount != nil {
		t.Errorf("unknown.ChunkCount = %v, want nil", *unknown.ChunkCount)
	}
}

func TestManager_ListRegistryFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	if err := f.files.Save("doc.txt", []byte("Golang")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	registry := storage_mocks.NewMockDocumentStore(ctrl)
	registry.EXPECT().ListAll(gomock.Any()).Return(nil, errors.New("database is locked"))
	f.manager.registry = registry

	docs, err := f.manager.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 1 || docs[0].ChunkCount == nil || *docs[0].ChunkCount != 0 || !docs[0].ChunkCountExact {
		t.Errorf("List() = %+v", docs)
	}
}

func TestManager_UploadRegistryFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)

	registry := storage_mocks.NewMockDocumentStore(ctrl)
	registry.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	f.manager.registry = registry

	res, err := f.manager.Upload(context.Background(), "a.txt", []byte("Python"), nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.ChunksCreated != 1 {
		t.Errorf("ChunksCreated = %d, want 1", res.ChunksCreated)
	}
}

func TestManager_Reconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.manager.Upload(ctx, "keep.txt", []byte("Golang"), nil); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := f.chunks.Add(ctx, []indexer.Chunk{
		{Content: "orphan one", Source: "gone.txt", ChunkIndex: 0},
		{Content: "orphan two", Source: "gone.txt", ChunkIndex: 1},
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	removed, err := f.manager.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Reconcile() = %d, want 2", removed)
	}
	if got := f.chunks.ListSources(ctx); len(got) != 1 || got[0] != "keep.txt" {
		t.Errorf("ListSources() = %v, want [keep.txt]", got)
	}

	removed, err = f.manager.Reconcile(ctx)
	if err != nil || removed != 0 {
		t.Errorf("second Reconcile() = %d, %v, want 0", removed, err)
	}
}

func TestManager_ResetAndHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := f.manager.Upload(ctx, name, []byte("Python"), nil); err != nil {
			t.Fatalf("Upload(%s) error = %v", name, err)
		}
	}
	if !f.manager.IsIndexReachable(ctx) {
		t.Error("IsIndexReachable() = false, want true")
	}
	if got := f.manager.DocumentCount(ctx); got != 2 {
		t.Errorf("DocumentCount() = %d, want 2", got)
	}

	res, err := f.manager.Reset(ctx)
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if res.ChunksDeleted != 2 || res.FilesDeleted != 2 {
		t.Errorf("Reset() = %+v", res)
	}
	if got := f.manager.DocumentCount(ctx); got != 0 {
		t.Errorf("DocumentCount() after reset = %d, want 0", got)
	}
	records, err := f.repo.ListAll(ctx)
	if err != nil || len(records) != 0 {
		t.Errorf("registry after reset = %v, %v", records, err)
	}
}

func TestManager_AllowedExtensions(t *testing.T) {
	m := NewManager(nil, nil, nil, nil, nil, nil, Config{AllowedExtensions: []string{".TXT", ".md"}})
	got := m.AllowedExtensions()
	if len(got) != 2 || got[0] != ".md" || got[1] != ".txt" {
		t.Errorf("AllowedExtensions() = %v", got)
	}
}

// slowEmbedder widens the window between removing old chunks and adding new ones.
type slowEmbedder struct{ wordEmbedder }

func (e slowEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	time.Sleep(2 * time.Millisecond)
	return e.wordEmbedder.EmbedTexts(ctx, texts)
}

func TestManager_ConcurrentReuploadsStayContiguous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chunks := chunkstore.NewStore(f.vectors, slowEmbedder{}, "documents")
	m := NewManager(chunks, extract.New(), f.files, f.repo, indexer.NewChunker(60, 10), lock.NewLocalLocker(), Config{})

	// Version v has v+1 paragraphs, each one chunk
	const versions = 8
	var wg sync.WaitGroup
	for v := 0; v < versions; v++ {
		paragraphs := make([]string, v+1)
		for p := range paragraphs {
			paragraphs[p] = fmt.Sprintf("version%02d paragraph %02d about golang and python code", v, p)
		}
		raw := []byte(strings.Join(paragraphs, "\n\n"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Upload(ctx, "a.txt", raw, nil); err != nil {
				t.Errorf("Upload() error = %v", err)
			}
		}()
	}
	wg.Wait()

	payloads, err := f.vectors.Scroll(ctx, "documents", map[string]any{indexer.MetaSource: "a.txt"}, nil)
	if err != nil {
		t.Fatalf("Scroll() error = %v", err)
	}
	if len(payloads) == 0 {
		t.Fatal("no chunks stored for a.txt")
	}

	indexes := make([]int, 0, len(payloads))
	marker := ""
	for _, p := range payloads {
		idx, ok := p[indexer.MetaChunkIndex].(int)
		if !ok {
			t.Fatalf("chunk_index = %#v, want int", p[indexer.MetaChunkIndex])
		}
		indexes = append(indexes, idx)

		content, _ := p[indexer.MetaContent].(string)
		version := strings.Fields(content)[0]
		if marker == "" {
			marker = version
		} else if version != marker {
			t.Errorf("chunks from %s and %s are mixed", marker, version)
		}
	}

	sort.Ints(indexes)
	for i, idx := range indexes {
		if idx != i {
			t.Fatalf("chunk indexes = %v, want 0..%d without gaps or duplicates", indexes, len(indexes)-1)
		}
	}

	var v int
	if _, err := fmt.Sscanf(marker, "version%02d", &v); err != nil {
		t.Fatalf("unexpected marker %q", marker)
	}
	if len(indexes) != v+1 {
		t.Errorf("stored %d chunks for %s, want %d", len(indexes), marker, v+1)
	}
}
