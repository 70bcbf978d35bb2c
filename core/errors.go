package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline. Wrap these with %w so callers
// can classify failures with errors.Is.
var (
	// ErrInvalidConfiguration indicates a configuration value is invalid
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrConnectionFailed indicates a connection to a dependency failed
	ErrConnectionFailed = errors.New("connection failed")

	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a request or event failed validation
	ErrValidation = errors.New("validation failed")

	// ErrMaxRetriesExceeded indicates an operation gave up after retrying
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrStoreUnavailable indicates the backing store rejected the operation
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrShuttingDown indicates the component no longer accepts work
	ErrShuttingDown = errors.New("shutting down")

	// ErrPoisonEvent indicates an event exceeded its delivery budget
	ErrPoisonEvent = errors.New("poison event")
)

// ErrorKind categorizes a PipelineError for logging and metrics.
type ErrorKind string

const (
	KindConfig     ErrorKind = "config"
	KindConnection ErrorKind = "connection"
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindTransient  ErrorKind = "transient"
	KindInternal   ErrorKind = "internal"
)

// PipelineError carries structured context about a pipeline failure: the
// operation that failed, its kind, and the event or entity involved.
type PipelineError struct {
	Op      string    // operation, e.g. "broker.publish"
	Kind    ErrorKind // category for classification
	ID      string    // event/device/patient id when known
	Message string    // human-readable summary
	Err     error     // wrapped cause
}

func (e *PipelineError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id=%s): %v", e.Op, e.Message, e.ID, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a PipelineError wrapping err.
func NewPipelineError(op string, kind ErrorKind, id, message string, err error) *PipelineError {
	return &PipelineError{Op: op, Kind: kind, ID: id, Message: message, Err: err}
}

// IsRetryable reports whether the error is worth retrying. Validation
// failures, missing entities and configuration mistakes never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrPoisonEvent) ||
		errors.Is(err, ErrShuttingDown) {
		return false
	}
	if errors.Is(err, ErrConnectionFailed) || errors.Is(err, ErrStoreUnavailable) {
		return true
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == KindConnection || pe.Kind == KindTransient
	}
	return true
}

// IsNotFound reports whether the error means the entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether the error is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConfigurationError reports whether the error stems from bad configuration.
func IsConfigurationError(err error) bool {
	if errors.Is(err, ErrInvalidConfiguration) {
		return true
	}
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Kind == KindConfig
}
