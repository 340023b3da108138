// Package errors provides standardized error types and helpers for JuniperTimex.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrDetector indicates the entity detector failed or is unavailable
	ErrDetector = errors.New("detector failure")
)

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "XML", "rules")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// SpanError reports a detector span that violates the span contract:
// offsets out of range, empty, overlapping a previous span, or splitting
// a UTF-8 sequence.
type SpanError struct {
	Start  int    // Span start offset (bytes)
	End    int    // Span end offset (bytes)
	Length int    // Length of the segment the span refers to
	Reason string // What is wrong with the span
}

func (e *SpanError) Error() string {
	return fmt.Sprintf("invalid span [%d,%d) in segment of length %d: %s", e.Start, e.End, e.Length, e.Reason)
}

func (e *SpanError) Unwrap() error {
	return ErrDetector
}

// DetectorError wraps a failure of an entity detection backend.
type DetectorError struct {
	Backend string // Backend name (e.g., "remote", "rules", "cache")
	Message string // What failed
	Err     error  // Underlying error, if any
}

func (e *DetectorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s detector: %s: %v", e.Backend, e.Message, e.Err)
	}
	return fmt.Sprintf("%s detector: %s", e.Backend, e.Message)
}

// Unwrap returns both the underlying error and ErrDetector so callers can
// match either.
func (e *DetectorError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDetector, e.Err}
	}
	return []error{ErrDetector}
}

// Helper functions for creating common errors

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// NewSpan creates a SpanError
func NewSpan(start, end, length int, reason string) *SpanError {
	return &SpanError{
		Start:  start,
		End:    end,
		Length: length,
		Reason: reason,
	}
}

// NewDetector creates a DetectorError
func NewDetector(backend, message string, err error) *DetectorError {
	return &DetectorError{
		Backend: backend,
		Message: message,
		Err:     err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
