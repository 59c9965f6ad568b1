package rag

import "time"

// Source is a retrieved chunk cited by an answer.
type Source struct {
	// Content is the chunk text, truncated to the preview length.
	Content string
	// Source is the originating document filename.
	Source string
	// Score is the similarity score rounded to three decimals.
	Score float64
}

// Answer is the result of a question.
type Answer struct {
	// Text is the generated answer.
	Text string
	// Sources are the retrieved chunks in ranking order.
	Sources []Source
	// Elapsed is the wall-clock time of the whole call.
	Elapsed time.Duration
}

// Config holds the tunables of the engine.
type Config struct {
	// DefaultTopK is used when the caller passes 0.
	DefaultTopK int
	// MaxTopK is the largest accepted top-k.
	MaxTopK int
	// PreviewLength is the number of characters kept per source.
	PreviewLength int
	// MaxQuestionLength is the longest accepted question, in characters.
	MaxQuestionLength int
	// GenerationTimeout bounds the LLM call. Zero disables it.
	GenerationTimeout time.Duration
	// PingTimeout bounds the LLM reachability check.
	PingTimeout time.Duration
	// RetrievalTimeout bounds each index call (count, search).
	RetrievalTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTopK:       3,
		MaxTopK:           10,
		PreviewLength:     200,
		MaxQuestionLength: 1000,
		GenerationTimeout: 120 * time.Second,
		PingTimeout:       5 * time.Second,
		RetrievalTimeout:  60 * time.Second,
	}
}
