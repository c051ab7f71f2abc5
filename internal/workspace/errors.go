package workspace

import (
	"errors"
	"fmt"
)

var (
	// ErrCollision is returned when a generated ID already exists.
	ErrCollision = errors.New("id collision")

	// ErrNotFound is returned when a workspace or document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrVectorNotReady is returned when the workspace collection is not ready.
	ErrVectorNotReady = errors.New("vector collection not ready")
)

// Store names used in UpstreamError.
const (
	StoreVector = "vector"
	StoreBlob   = "blob"
)

// UpstreamError wraps a vector or blob store failure.
type UpstreamError struct {
	Store string
	Op    string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s store %s: %v", e.Store, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
