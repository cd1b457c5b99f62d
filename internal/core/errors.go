package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown jobs or documents.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a cancel, delete or status transition is
	// requested from an ineligible state.
	ErrConflict = errors.New("conflict")

	// ErrEmbeddingUnavailable is returned when the embedding service was
	// detected as unreachable by the startup probe.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrUpstreamUnavailable is returned when an embedding or completion call
	// fails against a service that probed healthy.
	ErrUpstreamUnavailable = errors.New("upstream service unavailable")
)

// ValidationError describes a malformed request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a named request field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
