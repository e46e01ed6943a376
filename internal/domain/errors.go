package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks caller-correctable input problems.
	ErrValidation = errors.New("validation failed")

	// ErrNoData means the store holds no rows that qualify for the analytic.
	ErrNoData = errors.New("no data available")

	// ErrInsufficientData means qualifying rows exist but too few to compute the result.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrUpstreamFetch covers transport and payload failures talking to the feed.
	ErrUpstreamFetch = errors.New("upstream fetch failed")

	// ErrModelUnavailable means no usable forecast artifact has been produced.
	ErrModelUnavailable = errors.New("forecast model unavailable")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, value, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FetchError is returned when the upstream feed cannot be read. StatusCode
// is zero for transport and decode failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrUpstreamFetch
}
