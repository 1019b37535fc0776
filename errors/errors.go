// Package errors provides custom error types for the fitvault data layer.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the failure family it belongs to. The kind
// decides how callers react: validation errors go back to the user,
// transient errors go to the sync queue, corruption reads as "absent".
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindTransient      Kind = "TRANSIENT_REMOTE"
	KindConflict       Kind = "CONFLICT"
	KindCorruption     Kind = "CORRUPTION"
	KindInitialization Kind = "INITIALIZATION"
)

// Operation represents the type of data-layer operation
type Operation string

const (
	OpInitialize Operation = "initialize"
	OpStore      Operation = "store"
	OpRetrieve   Operation = "retrieve"
	OpRemove     Operation = "remove"
	OpClear      Operation = "clear"
	OpMigrate    Operation = "migrate"
	OpSave       Operation = "save"
	OpLoad       Operation = "load"
	OpValidate   Operation = "validate"
	OpUpsert     Operation = "upsert"
	OpSelect     Operation = "select"
	OpEnqueue    Operation = "enqueue"
	OpFlush      Operation = "flush"
	OpResolve    Operation = "conflict_resolve"
	OpClose      Operation = "close"
)

// VaultError represents an error that occurred in the data layer
type VaultError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "store", "manager", "queue")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Kind for the error family
	Kind Kind

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *VaultError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Kind != "" {
		msg += fmt.Sprintf(" [%s]", e.Kind)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *VaultError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a caller-correctable validation VaultError.
// Validation errors are never retried automatically.
func NewValidationError(op Operation, cause error) *VaultError {
	return &VaultError{
		Kind:      KindValidation,
		Op:        op,
		Component: "validation",
		Err:       cause,
		Retryable: false,
	}
}

// NewTransientError creates a remote/network VaultError that the sync
// queue is allowed to retry with bounded attempts.
func NewTransientError(op Operation, cause error) *VaultError {
	return &VaultError{
		Kind:      KindTransient,
		Op:        op,
		Component: "remote",
		Err:       cause,
		Retryable: true,
	}
}

// NewConflictError creates a conflict-related VaultError
func NewConflictError(op Operation, cause error) *VaultError {
	return &VaultError{
		Kind:      KindConflict,
		Op:        op,
		Component: "conflict",
		Err:       cause,
		Retryable: false,
	}
}

// NewCorruptionError creates a decode-failure VaultError. Callers treat
// the affected key as absent rather than failing the read.
func NewCorruptionError(op Operation, cause error) *VaultError {
	return &VaultError{
		Kind:      KindCorruption,
		Op:        op,
		Component: "store",
		Err:       cause,
		Retryable: false,
	}
}

// NewInitializationError creates a fatal VaultError; the store cannot be
// used until re-initialized.
func NewInitializationError(op Operation, cause error) *VaultError {
	return &VaultError{
		Kind:      KindInitialization,
		Op:        op,
		Component: "store",
		Err:       cause,
		Retryable: false,
	}
}

// New creates a new VaultError
func New(op Operation, err error) *VaultError {
	return &VaultError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new VaultError with component information
func NewWithComponent(op Operation, component string, err error) *VaultError {
	return &VaultError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// NewRetryable creates a new retryable VaultError
func NewRetryable(op Operation, err error) *VaultError {
	return &VaultError{
		Op:        op,
		Err:       err,
		Retryable: true,
	}
}

// IsRetryable checks if an error is a retryable VaultError
func IsRetryable(err error) bool {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Retryable
	}
	return false
}

// KindOf returns the Kind of err if it is a VaultError, else "".
func KindOf(err error) Kind {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
