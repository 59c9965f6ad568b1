package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Vector backends.
const (
	BackendQdrant = "qdrant"
	BackendMemory = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort   string
	LogLevel  slog.Level
	LogFormat string

	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string
	LLMTimeout   time.Duration

	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingTimeout   time.Duration

	VectorBackend    string
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	QdrantVectorSize int

	DBPath       string
	DocumentsDir string

	ChunkSize         int
	ChunkOverlap      int
	MaxFileSize       int64
	AllowedExtensions []string

	TopK          int
	MaxTopK       int
	PreviewLength int

	RedisURL          string
	EmbeddingCacheTTL time.Duration
	LockTTL           time.Duration
}

// Load reads configuration from environment variables and returns a Config struct.
// If a .env file exists in the current directory or a parent, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{
		APIPort:            getEnv("API_PORT", "8000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:11434"),
		LLMModelName:       getEnv("LLM_MODEL", "llama3.1:8b"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:11434"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "all-minilm"),
		VectorBackend:      strings.ToLower(getEnv("VECTOR_BACKEND", BackendQdrant)),
		QdrantURL:          getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:       getEnv("QDRANT_API_KEY", ""),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "documents"),
		DBPath:             getEnv("DB_PATH", "./data/docqa.db"),
		DocumentsDir:       getEnv("DOCUMENTS_DIR", "./documents"),
		AllowedExtensions:  parseExtensions(getEnv("ALLOWED_EXTENSIONS", ".pdf,.txt,.md,.docx")),
		RedisURL:           getEnv("REDIS_URL", ""),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.VectorBackend != BackendQdrant && cfg.VectorBackend != BackendMemory {
		return nil, fmt.Errorf("VECTOR_BACKEND must be %s or %s, got %q", BackendQdrant, BackendMemory, cfg.VectorBackend)
	}
	if len(cfg.AllowedExtensions) == 0 {
		return nil, fmt.Errorf("ALLOWED_EXTENSIONS must not be empty")
	}

	ints := []struct {
		key string
		def int
		min int
		dst *int
	}{
		{"QDRANT_VECTOR_SIZE", 384, 1, &cfg.QdrantVectorSize},
		{"CHUNK_SIZE", 500, 1, &cfg.ChunkSize},
		{"CHUNK_OVERLAP", 50, 0, &cfg.ChunkOverlap},
		{"TOP_K", 3, 1, &cfg.TopK},
		{"MAX_TOP_K", 10, 1, &cfg.MaxTopK},
		{"PREVIEW_LENGTH", 200, 1, &cfg.PreviewLength},
	}
	for _, f := range ints {
		v, err := getInt(f.key, f.def, f.min)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	if cfg.TopK > cfg.MaxTopK {
		return nil, fmt.Errorf("TOP_K (%d) must not exceed MAX_TOP_K (%d)", cfg.TopK, cfg.MaxTopK)
	}

	maxMB, err := getInt("MAX_FILE_SIZE_MB", 10, 1)
	if err != nil {
		return nil, err
	}
	cfg.MaxFileSize = int64(maxMB) << 20

	llmTimeout, err := getInt("LLM_TIMEOUT_SECONDS", 120, 1)
	if err != nil {
		return nil, err
	}
	cfg.LLMTimeout = time.Duration(llmTimeout) * time.Second

	embTimeout, err := getInt("EMBEDDING_TIMEOUT_SECONDS", 60, 1)
	if err != nil {
		return nil, err
	}
	cfg.EmbeddingTimeout = time.Duration(embTimeout) * time.Second

	if cfg.EmbeddingCacheTTL, err = getDuration("EMBEDDING_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getDuration("LOCK_TTL", 2*time.Minute); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.DocumentsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads the nearest .env file, searching up from the working directory.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	dir := wd
	for i := 0; i < 5; i++ { // Limit search depth
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue, min int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if v < min {
		return 0, fmt.Errorf("%s must be at least %d", key, min)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

// parseExtensions splits a comma list, lowercasing and adding the leading dot.
func parseExtensions(s string) []string {
	var exts []string
	for _, part := range strings.Split(s, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}
