package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"docqa/internal/config"
	"docqa/internal/lock"
	"docqa/internal/vectorstore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		APIPort:            "0",
		LogLevel:           slog.LevelInfo,
		LogFormat:          "text",
		LLMBaseURL:         "http://127.0.0.1:1",
		LLMModelName:       "llama3.1:8b",
		LLMAPIKey:          "k",
		LLMTimeout:         time.Second,
		EmbeddingBaseURL:   "http://127.0.0.1:1",
		EmbeddingModelName: "all-minilm",
		EmbeddingTimeout:   time.Second,
		VectorBackend:      config.BackendMemory,
		QdrantCollection:   "documents",
		QdrantVectorSize:   4,
		DBPath:             filepath.Join(dir, "docqa.db"),
		DocumentsDir:       filepath.Join(dir, "documents"),
		ChunkSize:          500,
		ChunkOverlap:       50,
		MaxFileSize:        1 << 20,
		AllowedExtensions:  []string{".txt", ".md"},
		TopK:               3,
		MaxTopK:            10,
		PreviewLength:      200,
		EmbeddingCacheTTL:  time.Hour,
		LockTTL:            time.Minute,
	}
}

func TestNew_MemoryBackend(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if a.Documents == nil || a.Engine == nil || a.LLM == nil {
		t.Fatal("New() left services nil")
	}
	if !a.Documents.IsIndexReachable(context.Background()) {
		t.Error("index should be reachable after New()")
	}

	// LLM is unreachable, index is fine: degraded but 200
	w := httptest.NewRecorder()
	a.Router("test").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"degraded"`) {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestNew_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if a.redis == nil {
		t.Fatal("redis client not created")
	}
	if err := lock.NewRedisLocker(a.redis, time.Second).Ping(context.Background()); err != nil {
		t.Errorf("redis Ping() error = %v", err)
	}
}

func TestNew_BadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisURL = "not a url"

	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("New() expected error for invalid REDIS_URL")
	}
}

func TestNew_UnsupportedExtension(t *testing.T) {
	cfg := testConfig(t)
	cfg.AllowedExtensions = []string{".txt", ".rtf"}

	_, err := New(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), ".rtf") {
		t.Errorf("New() error = %v, want unsupported .rtf", err)
	}
}

// flakyCollections fails EnsureCollection a fixed number of times.
type flakyCollections struct {
	*vectorstore.MemoryStore
	failures int
	calls    int
}

func (f *flakyCollections) EnsureCollection(ctx context.Context, collection string, vectorSize int, fields ...string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	return f.MemoryStore.EnsureCollection(ctx, collection, vectorSize, fields...)
}

func TestCheckEmbedder(t *testing.T) {
	tests := []struct {
		name      string
		modelsOK  bool
		dimension int
		wantErr   string
	}{
		{name: "healthy", modelsOK: true, dimension: 4},
		{name: "models endpoint down", modelsOK: false, dimension: 4, wantErr: "embedding server unreachable"},
		{name: "wrong vector size", modelsOK: true, dimension: 3, wantErr: "size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var embedCalls int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/v1/models":
					if !tt.modelsOK {
						w.WriteHeader(http.StatusBadGateway)
						return
					}
					_, _ = w.Write([]byte(`{"data":[{"id":"all-minilm"}]}`))
				case "/v1/embeddings":
					embedCalls++
					_ = json.NewEncoder(w).Encode(map[string]any{
						"data": []map[string]any{{"index": 0, "embedding": make([]float64, tt.dimension)}},
					})
				default:
					http.NotFound(w, r)
				}
			}))
			defer srv.Close()

			cfg := testConfig(t)
			cfg.EmbeddingBaseURL = srv.URL
			a, err := New(context.Background(), cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			t.Cleanup(func() { _ = a.Close() })

			err = a.CheckEmbedder(context.Background())
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("CheckEmbedder() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("CheckEmbedder() error = %v, want %q", err, tt.wantErr)
			}
			if !tt.modelsOK && embedCalls != 0 {
				t.Errorf("embeddings called %d times after failed ping", embedCalls)
			}
		})
	}
}

func TestEnsureCollectionWithRetry(t *testing.T) {
	ctx := context.Background()

	store := &flakyCollections{MemoryStore: vectorstore.NewMemoryStore(), failures: 2}
	if err := ensureCollectionWithRetry(ctx, store, "documents", 4, 3, time.Millisecond); err != nil {
		t.Fatalf("ensureCollectionWithRetry() error = %v", err)
	}
	if store.calls != 3 {
		t.Errorf("calls = %d, want 3", store.calls)
	}

	store = &flakyCollections{MemoryStore: vectorstore.NewMemoryStore(), failures: 5}
	if err := ensureCollectionWithRetry(ctx, store, "documents", 4, 2, time.Millisecond); err == nil {
		t.Error("ensureCollectionWithRetry() expected error after exhausting attempts")
	}
	if store.calls != 2 {
		t.Errorf("calls = %d, want 2", store.calls)
	}
}

func TestNewLogger(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogFormat = "json"
	cfg.LogLevel = slog.LevelWarn

	var buf bytes.Buffer
	logger := NewLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("unexpected output: %s", out)
	}
}
