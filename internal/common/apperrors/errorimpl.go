package apperrors

import (
	"errors"
	"strings"
)

// appError is the concrete implementation behind the Error interface.
type appError struct {
	msg        string  // primary error message
	base       error   // base error for errors.Is/As compatibility
	wrapped    []error // additional wrapped errors
	statuscode int     // HTTP status code
}

// New creates a root-level error with the given message. Entry point for
// declaring sentinel errors.
func New(msg string) Error {
	return &appError{msg: msg}
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by all wrapped error messages,
// separated by "; ". Used when rendering the full cause chain.
func (e *appError) ErrorAll() string {
	if len(e.wrapped) == 0 {
		return e.msg
	}
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.wrapped {
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the base error for compatibility with errors.Is / errors.As.
func (e *appError) Unwrap() error {
	return e.base
}

// UnwrapAll returns all wrapped errors in the order they were added.
func (e *appError) UnwrapAll() []error {
	return e.wrapped
}

// New creates a fresh error using the current error as a template. The new
// error inherits the status code but starts with a new message and no
// wrapped errors.
func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		statuscode: e.statuscode,
	}
}

// Msg creates a new error with a new message and wraps the original error.
func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		wrapped:    append([]error{e}, e.wrapped...),
		statuscode: e.statuscode,
	}
}

// Err creates a new error by attaching additional errors to the current one.
// The message and status code are preserved.
func (e *appError) Err(errs ...error) Error {
	return &appError{
		msg:        e.msg,
		base:       e,
		wrapped:    append([]error{e}, errs...),
		statuscode: e.statuscode,
	}
}

// SetStatusCode returns a shallow copy with an updated status code. The
// original error remains unchanged.
func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

// StatusCode returns the current HTTP status code.
func (e *appError) StatusCode() int {
	return e.statuscode
}

// Is checks the base error and all wrapped errors against the target.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrapped {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
