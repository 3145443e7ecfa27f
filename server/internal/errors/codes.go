package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for pipeline operations.
type ErrorCode string

const (
	// ErrCodeValidation indicates missing or malformed caller input.
	ErrCodeValidation ErrorCode = "VALIDATION"
	// ErrCodeNotFound indicates the capture is absent or not owned by the caller.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeExternalService indicates an OCR or embedding backend failure.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE"
	// ErrCodePersistence indicates a storage read/write failure.
	ErrCodePersistence ErrorCode = "PERSISTENCE"
	// ErrCodeAlreadyInProgress indicates the capture is currently being processed.
	// This is a retry-later signal, not a failure.
	ErrCodeAlreadyInProgress ErrorCode = "ALREADY_IN_PROGRESS"
	// ErrCodeStatusUpdate indicates the initial processing-status write failed.
	ErrCodeStatusUpdate ErrorCode = "STATUS_UPDATE"
	// ErrCodeInvalidInput indicates empty or unusable input to a pipeline stage.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// PipelineError represents a structured error for pipeline operations.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *PipelineError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// Validation creates a validation error.
func Validation(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeValidation, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeNotFound, Message: msg}
}

// ExternalService creates an external service error.
func ExternalService(msg string, cause error) *PipelineError {
	return &PipelineError{Code: ErrCodeExternalService, Message: msg, Cause: cause}
}

// Persistence creates a persistence error.
func Persistence(msg string, cause error) *PipelineError {
	return &PipelineError{Code: ErrCodePersistence, Message: msg, Cause: cause}
}

// AlreadyInProgress creates an already-in-progress signal.
func AlreadyInProgress(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeAlreadyInProgress, Message: msg}
}

// StatusUpdate creates a status update error.
func StatusUpdate(msg string, cause error) *PipelineError {
	return &PipelineError{Code: ErrCodeStatusUpdate, Message: msg, Cause: cause}
}

// InvalidInput creates an invalid input error.
func InvalidInput(msg string) *PipelineError {
	return &PipelineError{Code: ErrCodeInvalidInput, Message: msg}
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code ErrorCode, msg string) *PipelineError {
	return &PipelineError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if pErr, ok := err.(*PipelineError); ok {
		return pErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a PipelineError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if pErr, ok := err.(*PipelineError); ok {
		return pErr.Code
	}
	return defaultCode
}
