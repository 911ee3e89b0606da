// File: api/errors.go
//
// Common error types and sentinels shared across the transport layer.

package api

import (
	"errors"
	"fmt"
)

// Sentinel errors used across the library.
var (
	ErrClosed          = errors.New("transport is closed")
	ErrInvalidState    = errors.New("operation invalid in current lifecycle state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSupported    = errors.New("operation not supported on this platform")
	ErrBackpressure    = errors.New("write buffer full, retry after drain")
	ErrHandlerAbort    = errors.New("handler chain rejected payload")
	ErrNoWorkers       = errors.New("no live workers available")
)

// ErrorCode classifies structured errors.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeConfig
	ErrCodeInvalidState
	ErrCodeTransport
	ErrCodeProtocol
	ErrCodeProcess
	ErrCodeExhausted
	ErrCodeInternal
)

// Error is a structured error carrying a code and free-form context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.wrapped }

// NewError creates a structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches the underlying cause so errors.Is/As keep working.
func (e *Error) Wrap(err error) *Error {
	e.wrapped = err
	return e
}

// WithContext adds a key/value pair to the error context.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
