// Package app wires the long-lived services shared by the HTTP server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa/internal/cache"
	"docqa/internal/chunkstore"
	"docqa/internal/config"
	"docqa/internal/documents"
	"docqa/internal/extract"
	"docqa/internal/filestore"
	apihttp "docqa/internal/http"
	"docqa/internal/indexer"
	"docqa/internal/llm"
	"docqa/internal/lock"
	"docqa/internal/rag"
	"docqa/internal/storage"
	"docqa/internal/vectorstore"
)

const (
	bootstrapRetryAttempts = 5
	bootstrapRetryDelay    = 2 * time.Second
	shutdownTimeout        = 10 * time.Second
)

// collectionStore is a vector store that can create its collection.
type collectionStore interface {
	vectorstore.VectorStore
	EnsureCollection(ctx context.Context, collection string, vectorSize int, indexedFields ...string) error
}

// App holds the constructed services.
type App struct {
	Config    *config.Config
	Documents *documents.Manager
	Engine    rag.Engine
	LLM       *llm.Client

	db       *sql.DB
	vectors  collectionStore
	embedder *llm.EmbeddingsClient
	redis    *redis.Client
	closers  []func() error
}

// NewLogger builds the process logger from the configured level and format.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// New connects to every backing service and builds the document manager and RAG engine.
// Close releases what New opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, err := storage.SchemaVersion(ctx, db); err == nil {
		slog.Debug("Database initialized", "path", cfg.DBPath, "schema_version", v)
	}

	switch cfg.VectorBackend {
	case config.BackendMemory:
		a.vectors = vectorstore.NewMemoryStore()
		slog.Warn("Using in-memory vector index, chunks are lost on exit")
	default:
		qs, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey)
		if err != nil {
			return fmt.Errorf("failed to create Qdrant client: %w", err)
		}
		a.vectors = qs
		a.closers = append(a.closers, qs.Close)
	}
	if err := ensureCollectionWithRetry(ctx, a.vectors, cfg.QdrantCollection, cfg.QdrantVectorSize, bootstrapRetryAttempts, bootstrapRetryDelay); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}
	slog.Debug("Vector collection ready", "backend", cfg.VectorBackend, "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	a.embedder = llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize, cfg.EmbeddingTimeout)
	var embedder chunkstore.Embedder = a.embedder
	var locker lock.Locker = lock.NewLocalLocker()

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.closers = append(a.closers, a.redis.Close)
		redisLocker := lock.NewRedisLocker(a.redis, cfg.LockTTL)
		if err := redisLocker.Ping(ctx); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		embedder = cache.NewEmbeddingCache(a.redis, a.embedder, cfg.EmbeddingModelName, cfg.EmbeddingCacheTTL)
		locker = redisLocker
		slog.Debug("Redis enabled for embedding cache and source locks")
	}

	chunker := indexer.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	extractor := extract.New()
	for _, ext := range cfg.AllowedExtensions {
		if !extractor.Supports(ext) {
			return fmt.Errorf("no text extractor for allowed extension %q", ext)
		}
	}

	files, err := filestore.New(cfg.DocumentsDir)
	if err != nil {
		return fmt.Errorf("failed to open documents directory: %w", err)
	}

	chunks := chunkstore.NewStore(a.vectors, embedder, cfg.QdrantCollection)
	a.LLM = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName, cfg.LLMTimeout)

	a.Engine = rag.NewEngine(chunks, a.LLM, rag.Config{
		DefaultTopK:       cfg.TopK,
		MaxTopK:           cfg.MaxTopK,
		PreviewLength:     cfg.PreviewLength,
		GenerationTimeout: cfg.LLMTimeout,
		RetrievalTimeout:  cfg.EmbeddingTimeout,
	})

	a.Documents = documents.NewManager(
		chunks,
		extractor,
		files,
		storage.NewDocumentRepo(db),
		chunker,
		locker,
		documents.Config{
			AllowedExtensions: cfg.AllowedExtensions,
			MaxFileSize:       cfg.MaxFileSize,
		},
	)

	slog.Debug("Services initialized",
		"documents_dir", files.Root(),
		"chunk_size", chunker.ChunkSize(),
		"chunk_overlap", chunker.ChunkOverlap(),
		"index_version", indexer.IndexVersion(cfg.EmbeddingModelName, chunker.ChunkSize(), chunker.ChunkOverlap()))
	return nil
}

// ensureCollectionWithRetry retries collection setup while the index starts up.
func ensureCollectionWithRetry(ctx context.Context, store collectionStore, collection string, vectorSize, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = store.EnsureCollection(ctx, collection, vectorSize, indexer.MetaSource); err == nil {
			return nil
		}
		slog.Warn("failed to ensure vector collection, retrying...", "attempt", i+1, "error", err)
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}

// CheckEmbedder verifies the embedding server answers with vectors of the configured size.
func (a *App) CheckEmbedder(ctx context.Context) error {
	if err := a.embedder.Ping(ctx); err != nil {
		return fmt.Errorf("embedding server unreachable: %w", err)
	}
	vecs, err := a.embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		return err
	}
	if len(vecs) == 0 || len(vecs[0]) != a.Config.QdrantVectorSize {
		return fmt.Errorf("embedding vector size mismatch: expected %d", a.Config.QdrantVectorSize)
	}
	return nil
}

// Router returns the HTTP API handler.
func (a *App) Router(version string) http.Handler {
	return apihttp.NewRouter(&apihttp.Deps{
		Engine:      a.Engine,
		Documents:   a.Documents,
		LLM:         a.LLM,
		MaxFileSize: a.Config.MaxFileSize,
		Version:     version,
	})
}

// Serve reconciles the index with the stored files and runs the HTTP API until ctx is done.
func (a *App) Serve(ctx context.Context, version string) error {
	if err := a.CheckEmbedder(ctx); err != nil {
		slog.Warn("Embedding server check failed, uploads and questions will fail until it is reachable", "error", err)
	}

	removed, err := a.Documents.Reconcile(ctx)
	if err != nil {
		slog.Warn("Startup reconciliation failed", "error", err)
	} else if removed > 0 {
		slog.Info("Removed orphaned chunks", "count", removed)
	}

	srv := &http.Server{
		Addr:              ":" + a.Config.APIPort,
		Handler:           a.Router(version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting API server", "addr", srv.Addr, "version", version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases every connection opened by New, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
