// Package apperr defines the error taxonomy shared by the store, the
// multiplexer driver, the launcher, and the RPC router.
package apperr

import "fmt"

// Code categorizes an error for logging and RPC mapping. The category is
// documentation only: every code still surfaces through RPC as -32000 with
// the error's own message.
type Code string

const (
	NotFound      Code = "not_found"
	Validation    Code = "validation"
	Conflict      Code = "conflict"
	Multiplexer   Code = "multiplexer"
	Provider      Code = "provider"
	Unimplemented Code = "unimplemented"
)

// Error is a categorized application error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an *Error wrapping an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// Validationf builds a Validation error.
func Validationf(format string, args ...any) *Error {
	return New(Validation, fmt.Sprintf(format, args...))
}

// Conflictf builds a Conflict error.
func Conflictf(format string, args ...any) *Error {
	return New(Conflict, fmt.Sprintf(format, args...))
}

// CodeOf extracts the Code from err, defaulting to "" if err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		return e.Code
	}
	return ""
}
