package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Murmur error code.
type ErrorCode string

const (
	ErrInvalidRequest          ErrorCode = "INVALID_REQUEST"           // 400
	ErrForbidden               ErrorCode = "FORBIDDEN"                 // 403
	ErrNotFound                ErrorCode = "NOT_FOUND"                 // 404
	ErrInvalidState            ErrorCode = "INVALID_STATE"             // 409
	ErrNoteTooLarge            ErrorCode = "NOTE_TOO_LARGE"            // 413
	ErrMalformedPersistedState ErrorCode = "MALFORMED_PERSISTED_STATE" // 500 (logged, never surfaced)
	ErrInternal                ErrorCode = "INTERNAL"                  // 500
	ErrCapabilityUnavailable   ErrorCode = "CAPABILITY_UNAVAILABLE"    // 501
	ErrTranscriptionStream     ErrorCode = "TRANSCRIPTION_STREAM"      // 502
	ErrPersistenceWriteFailure ErrorCode = "PERSISTENCE_WRITE_FAILURE" // 507
)

// MurmurError represents a structured error with code, status, and details.
type MurmurError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Cause is the underlying error, if any. Not exposed to clients.
	Cause error
}

// Error implements the error interface.
func (e *MurmurError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *MurmurError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MurmurError {
	return &MurmurError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewForbidden creates a 403 error for a request the server refuses to act on.
func NewForbidden(msg string) *MurmurError {
	return &MurmurError{
		Code:    ErrForbidden,
		Status:  403,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a note cannot be found.
func NewNotFound(id string) *MurmurError {
	return &MurmurError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("note not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *MurmurError {
	return &MurmurError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewInvalidState creates a 409 error for a transition the current state does not allow.
func NewInvalidState(state, action string) *MurmurError {
	return &MurmurError{
		Code:    ErrInvalidState,
		Status:  409,
		Message: fmt.Sprintf("cannot %s while %s", action, state),
		Details: map[string]any{"state": state, "action": action},
	}
}

// NewNoteTooLarge creates a 413 error when note content exceeds the size limit.
func NewNoteTooLarge(max, actual int) *MurmurError {
	return &MurmurError{
		Code:    ErrNoteTooLarge,
		Status:  413,
		Message: fmt.Sprintf("note exceeds maximum size: %d chars (max %d)", actual, max),
		Details: map[string]any{"max_chars": max, "actual_chars": actual},
	}
}

// NewMalformedPersistedState creates an error for an unreadable stored collection.
func NewMalformedPersistedState(key string, cause error) *MurmurError {
	msg := fmt.Sprintf("stored collection %q is unreadable", key)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &MurmurError{
		Code:    ErrMalformedPersistedState,
		Status:  500,
		Message: msg,
		Details: map[string]any{"key": key},
		Cause:   cause,
	}
}

// NewCapabilityUnavailable creates a 501 error when speech recognition is not supported.
func NewCapabilityUnavailable(cause error) *MurmurError {
	msg := "speech recognition is not available on this platform"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &MurmurError{
		Code:    ErrCapabilityUnavailable,
		Status:  501,
		Message: msg,
		Cause:   cause,
	}
}

// NewTranscriptionStream creates a 502 error for a failure reported by the dictation stream.
func NewTranscriptionStream(cause error) *MurmurError {
	msg := "transcription stream error"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &MurmurError{
		Code:    ErrTranscriptionStream,
		Status:  502,
		Message: msg,
		Cause:   cause,
	}
}

// NewPersistenceWriteFailure creates a 507 error when the durable store rejects a write.
// In-memory state has already been updated when this is returned.
func NewPersistenceWriteFailure(key string, cause error) *MurmurError {
	msg := fmt.Sprintf("failed to persist %q", key)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &MurmurError{
		Code:    ErrPersistenceWriteFailure,
		Status:  507,
		Message: msg,
		Details: map[string]any{"key": key},
		Cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MurmurError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MurmurError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a MurmurError with the given code.
func Is(err error, code ErrorCode) bool {
	var mErr *MurmurError
	if stderrors.As(err, &mErr) {
		return mErr.Code == code
	}
	return false
}

// As returns the MurmurError carried by err, if any.
func As(err error) (*MurmurError, bool) {
	var mErr *MurmurError
	if stderrors.As(err, &mErr) {
		return mErr, true
	}
	return nil, false
}
