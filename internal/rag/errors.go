package rag

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no document exists for a requested ID.
var ErrNotFound = errors.New("document not found")

// ValidationError reports invalid caller input: empty or oversized text, or
// an out-of-range parameter. It is always surfaced to the caller and never
// retried.
type ValidationError struct {
	// Field names the offending input ("query", "limit", "text", ...).
	Field string
	// Reason is a human-readable description of the violation.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf constructs a ValidationError with a formatted reason.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StoreError reports a persistence failure. Fatal when it occurs at open
// time; per-operation otherwise, but always surfaced.
type StoreError struct {
	// Op is the store operation that failed ("open", "upsert", "query", ...).
	Op string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause for errors.Is / errors.As.
func (e *StoreError) Unwrap() error { return e.Err }

// IsStore reports whether err is (or wraps) a StoreError.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// UpstreamError reports that the external chat-completion service failed
// after the configured retry was exhausted.
type UpstreamError struct {
	// Service names the upstream dependency ("chat-completion").
	Service string
	// Attempts is the number of calls made before giving up.
	Attempts int
	// Err is the last underlying failure.
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Service, e.Attempts, e.Err)
}

// Unwrap returns the underlying cause for errors.Is / errors.As.
func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err is (or wraps) an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
