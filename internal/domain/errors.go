package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError with the same code and message, so wrapped
// copies created by Wrap still satisfy errors.Is against the sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Wrap returns a copy of the sentinel carrying cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return NewDomainErrorWithCause(e.Code, e.Message, cause)
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeUnsupported   = "UNSUPPORTED"
)

// Validation errors
var (
	ErrInvalidTimestamp     = NewDomainError(ErrCodeValidation, "invalid timestamp")
	ErrInvalidReconcileMode = NewDomainError(ErrCodeValidation, "invalid reconcile mode")
	ErrInvalidSyncRunStatus = NewDomainError(ErrCodeValidation, "invalid sync run status")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrInputFileNotFound = NewDomainError(ErrCodeNotFound, "input file not found")
	ErrSyncRunNotFound   = NewDomainError(ErrCodeNotFound, "sync run not found")
)

// Store and upstream errors
var (
	ErrStoreLookupUnsupported = NewDomainError(ErrCodeUnsupported, "store does not support lookup by work item")
	ErrUpstreamUnavailable    = NewDomainError(ErrCodeUnavailable, "upstream request failed")
	ErrStorageOperationFail   = NewDomainError(ErrCodeInternalError, "storage operation failed")
	ErrSyncInProgress         = NewDomainError(ErrCodeUnavailable, "a sync run is already in progress")
)
