package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_retriever.go -package=mocks docqa/internal/rag Retriever
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_generator.go -package=mocks docqa/internal/rag Generator
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks docqa/internal/rag Engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"docqa/internal/chunkstore"
	"docqa/internal/contextutil"
	"docqa/internal/service"
)

const (
	// NoContextPlaceholder is sent to the LLM when retrieval finds nothing.
	NoContextPlaceholder = "No relevant context was found."

	systemPrompt = "You are a helpful assistant that answers questions using only the provided context from the user's documents.\n\n" +
		"Rules:\n" +
		"1. Use only information found in the context.\n" +
		"2. If the answer is not in the context, say explicitly that the documents do not contain this information.\n" +
		"3. Keep answers clear and concise.\n" +
		"4. Mention which document the information came from."
)

// Retriever finds chunks relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]chunkstore.Result, error)
	Count(ctx context.Context) (int, error)
}

// Generator produces a completion from a system prompt and a user message.
type Generator interface {
	Chat(ctx context.Context, system, user string) (string, error)
	Ping(ctx context.Context) error
}

// Engine answers questions over the indexed documents.
type Engine interface {
	// Answer retrieves the topK most relevant chunks and asks the LLM to answer from them.
	// topK 0 selects the configured default.
	Answer(ctx context.Context, question string, topK int) (Answer, error)
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	retriever Retriever
	generator Generator
	cfg       Config
}

// NewEngine creates a new RAG engine.
func NewEngine(retriever Retriever, generator Generator, cfg Config) Engine {
	defaults := DefaultConfig()
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = defaults.DefaultTopK
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = defaults.MaxTopK
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = defaults.PreviewLength
	}
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = defaults.MaxQuestionLength
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaults.PingTimeout
	}
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = defaults.RetrievalTimeout
	}
	return &ragEngine{
		retriever: retriever,
		generator: generator,
		cfg:       cfg,
	}
}

// Answer answers a question using RAG.
func (e *ragEngine) Answer(ctx context.Context, question string, topK int) (Answer, error) {
	start := time.Now()
	logger := contextutil.LoggerFromContext(ctx)

	question = strings.TrimSpace(question)
	k, err := e.validate(question, topK)
	if err != nil {
		return Answer{}, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, e.cfg.PingTimeout)
	err = e.generator.Ping(pingCtx)
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Answer{}, ctxErr
		}
		logger.WarnContext(ctx, "LLM unreachable", "error", err)
		return Answer{}, fmt.Errorf("%w: LLM unreachable: %v", service.ErrServiceUnavailable, err)
	}

	countCtx, cancel := context.WithTimeout(ctx, e.cfg.RetrievalTimeout)
	total, err := e.retriever.Count(countCtx)
	cancel()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Answer{}, ctxErr
		}
		logger.WarnContext(ctx, "index unreachable", "error", err)
		return Answer{}, fmt.Errorf("%w: index unreachable: %v", service.ErrServiceUnavailable, err)
	}
	if total == 0 {
		return Answer{}, service.ErrNoDocuments
	}

	logger.InfoContext(ctx, "RAG query started", "question_length", utf8.RuneCountInString(question), "k", k)

	searchCtx, cancel := context.WithTimeout(ctx, e.cfg.RetrievalTimeout)
	results, err := e.retriever.Search(searchCtx, question, k)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			logger.ErrorContext(ctx, "search timed out", "timeout", e.cfg.RetrievalTimeout)
			return Answer{}, fmt.Errorf("%w: search exceeded %s", service.ErrTimeout, e.cfg.RetrievalTimeout)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Answer{}, ctxErr
		}
		logger.ErrorContext(ctx, "failed to search chunks", "error", err)
		return Answer{}, fmt.Errorf("%w: search failed: %v", service.ErrExternalService, err)
	}

	contextString := BuildContext(results)
	logger.DebugContext(ctx, "context formatted for LLM", "context_length", len(contextString), "chunks_included", len(results))

	genCtx := ctx
	if e.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, e.cfg.GenerationTimeout)
		defer cancel()
	}

	text, err := e.generator.Chat(genCtx, systemPrompt, userMessage(question, contextString))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			logger.ErrorContext(ctx, "LLM generation timed out", "timeout", e.cfg.GenerationTimeout)
			return Answer{}, fmt.Errorf("%w: generation exceeded %s", service.ErrTimeout, e.cfg.GenerationTimeout)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Answer{}, ctxErr
		}
		logger.ErrorContext(ctx, "failed to get LLM response", "error", err)
		return Answer{}, fmt.Errorf("%w: LLM generation failed: %v", service.ErrExternalService, err)
	}

	sources := make([]Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, Source{
			Content: Preview(r.Content, e.cfg.PreviewLength),
			Source:  r.Source,
			Score:   RoundScore(r.Score),
		})
	}

	elapsed := time.Since(start)
	logger.InfoContext(ctx, "RAG query completed", "chunks_used", len(results), "answer_length", len(text), "elapsed", elapsed)

	return Answer{
		Text:    text,
		Sources: sources,
		Elapsed: elapsed,
	}, nil
}

// validate checks the question and resolves topK.
func (e *ragEngine) validate(question string, topK int) (int, error) {
	if question == "" {
		return 0, &service.ValidationError{Field: "question", Message: "must not be empty"}
	}
	if n := utf8.RuneCountInString(question); n > e.cfg.MaxQuestionLength {
		return 0, &service.ValidationError{
			Field:   "question",
			Message: fmt.Sprintf("must be at most %d characters, got %d", e.cfg.MaxQuestionLength, n),
		}
	}
	if topK == 0 {
		return e.cfg.DefaultTopK, nil
	}
	if topK < 1 || topK > e.cfg.MaxTopK {
		return 0, &service.ValidationError{
			Field:   "top_k",
			Message: fmt.Sprintf("must be between 1 and %d", e.cfg.MaxTopK),
		}
	}
	return topK, nil
}

// BuildContext renders results as "[source]: content" blocks separated by blank lines.
func BuildContext(results []chunkstore.Result) string {
	if len(results) == 0 {
		return NoContextPlaceholder
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[%s]: %s", r.Source, r.Content))
	}
	return strings.Join(parts, "\n\n")
}

func userMessage(question, contextString string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer the question using the context above.", contextString, question)
}

// Preview truncates content to n characters, appending "..." when cut.
func Preview(content string, n int) string {
	if utf8.RuneCountInString(content) <= n {
		return content
	}
	runes := []rune(content)
	return string(runes[:n]) + "..."
}

// RoundScore rounds to three decimals.
func RoundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}
