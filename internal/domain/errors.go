package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("document not found")
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFound wraps ErrNotFound with the offending id.
func NotFound(documentID string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, documentID)
}

// LoadError means the source document could not be parsed.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ProcessingError means a parsed document could not be turned into text units.
type ProcessingError struct {
	Name   string
	Reason string
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("process %s: %s", e.Name, e.Reason)
}

// GenerationError carries a non-success answer from the completion service.
// StatusCode is 0 when no HTTP response was received.
type GenerationError struct {
	StatusCode int
	Body       string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("API call failed: %d - %s", e.StatusCode, e.Body)
}
