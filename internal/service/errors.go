package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrExternalService is returned when an external service call fails.
	ErrExternalService = errors.New("external service error")
	// ErrServiceUnavailable is returned when a required collaborator cannot serve the request right now.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrNoDocuments is returned when a question is asked before any document was indexed.
	ErrNoDocuments = fmt.Errorf("no documents indexed: %w", ErrServiceUnavailable)
	// ErrTimeout is returned when an external call exceeds its deadline.
	ErrTimeout = errors.New("timed out")
	// ErrExtraction is the sentinel wrapped by every ExtractionError.
	ErrExtraction = errors.New("text extraction failed")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Unwrap lets callers match any validation failure with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ExtractionError reports a document whose content could not be read.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract text from %s: %v", e.Filename, e.Err)
}

// Unwrap returns both the cause and ErrExtraction.
func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// WrapError wraps an error with additional context.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
