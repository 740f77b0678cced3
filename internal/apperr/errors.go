// Package apperr defines the error taxonomy shared by the orchestrator, the
// wire codec and the match engines.
package apperr

import "errors"

// Code is a machine-readable error code. It is carried verbatim in failed
// lobby responses.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"
	CodeFraming           Code = "FRAMING_ERROR"
	CodeLaunchFailed      Code = "LAUNCH_FAILED"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInternal          Code = "INTERNAL"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrConflict          = &Error{Code: CodeConflict, Message: "conflict"}
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied, Message: "permission denied"}
	ErrResourceExhausted = &Error{Code: CodeResourceExhausted, Message: "resource exhausted"}
	ErrFraming           = &Error{Code: CodeFraming, Message: "framing error"}
	ErrLaunchFailed      = &Error{Code: CodeLaunchFailed, Message: "launch failed"}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument, Message: "invalid argument"}
)

// Error is the domain error type.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message, safe to show to clients
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NotFound, Conflict and friends are shorthands used throughout the lobby.
func NotFound(message string) *Error          { return New(CodeNotFound, message) }
func Conflict(message string) *Error          { return New(CodeConflict, message) }
func PermissionDenied(message string) *Error  { return New(CodePermissionDenied, message) }
func ResourceExhausted(message string) *Error { return New(CodeResourceExhausted, message) }
func InvalidArgument(message string) *Error   { return New(CodeInvalidArgument, message) }
func Framing(message string) *Error           { return New(CodeFraming, message) }

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal
// for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsDomain reports whether err carries a domain code other than CodeInternal.
func IsDomain(err error) bool {
	return CodeOf(err) != CodeInternal
}

// MessageOf returns the client-facing message of a domain error, without the
// wrapped cause.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
