// Package apperrors provides the application error type used across the gateway.
// It extends the standard error interface with error chaining and HTTP status
// codes so that domain packages can declare sentinel errors once and the HTTP
// layer can render them without switch ladders.
package apperrors

// Error is the interface implemented by all application errors. Methods that
// derive new errors return Error to support chaining.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error    // creates a new error using current as template
	Msg(msg string) Error    // creates a new error with message, wrapping the original
	Err(err ...error) Error  // attaches additional errors to the current error
	SetStatusCode(int) Error // sets the HTTP status code for the error
	StatusCode() int         // returns the current status code
	ErrorAll() string        // returns full message including wrapped errors
	UnwrapAll() []error      // returns all wrapped errors
}
