// Package errors defines the engine-wide error taxonomy. A single tagged type
// carries a machine code, a human message, and optional structured metadata;
// callers switch on Kind rather than on concrete error types.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable error code attached to every engine error.
type Kind string

const (
	KindValidation    Kind = "VALIDATION_ERROR"
	KindOrderNotFound Kind = "ORDER_NOT_FOUND"
	KindRouting       Kind = "ROUTING_ERROR"
	KindExecution     Kind = "EXECUTION_ERROR"
	KindQuote         Kind = "QUOTE_ERROR"
	KindQueue         Kind = "QUEUE_ERROR"
	KindUnknown       Kind = "UNKNOWN_ERROR"
)

// Error is the unified error value for the engine.
type Error struct {
	Kind    Kind
	Message string
	Meta    map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the error kind to the status used on the API surface.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindOrderNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// WithMeta attaches structured metadata and returns the same error.
func (e *Error) WithMeta(meta map[string]interface{}) *Error {
	e.Meta = meta
	return e
}

// KindOf extracts the Kind from any error; non-engine errors report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StatusOf maps any error to an HTTP status.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Reason returns the user-facing message for any error.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
