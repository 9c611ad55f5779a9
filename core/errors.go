package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound matches every *NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrBackend matches every *BackendError via errors.Is.
	ErrBackend = errors.New("backend call failed")
	// ErrEngine matches every *EngineError via errors.Is.
	ErrEngine = errors.New("engine failure")
)

// ValidationError reports bad or missing caller input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for the named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// BackendError reports a failed call to one text-generation backend.
type BackendError struct {
	Backend string
	Model   string
	Err     error
}

// NewBackendError wraps err as a failure of the given backend.
func NewBackendError(backend, model string, err error) *BackendError {
	return &BackendError{Backend: backend, Model: model, Err: err}
}

func (e *BackendError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("backend %s (%s): %v", e.Backend, e.Model, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrBackend) succeed.
func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// EngineError reports an internal fault that aborted a discussion.
type EngineError struct {
	Op      string
	Timeout bool
	Err     error
}

// NewEngineError wraps err as an engine fault during op.
func NewEngineError(op string, err error) *EngineError {
	return &EngineError{Op: op, Err: err}
}

// NewTimeoutError wraps err as a deadline hit during op.
func NewTimeoutError(op string, err error) *EngineError {
	return &EngineError{Op: op, Timeout: true, Err: err}
}

func (e *EngineError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrEngine) succeed.
func (e *EngineError) Is(target error) bool { return target == ErrEngine }

// NotFoundError reports an unknown conversation or discussion id.
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError creates a NotFoundError for the resource id.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) succeed.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
