package response

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for the HTTP boundary.
type Kind int

const (
	// KindOperation is a failure reported by a delegated library or external tool.
	// Errors that carry no Kind are treated as operation failures.
	KindOperation Kind = iota
	KindBadRequest
	KindNotFound
	KindTooLarge
	KindUnauthorized
	KindRateLimited
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindTooLarge:
		return "too_large"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindInternal:
		return "internal"
	default:
		return "operation"
	}
}

// Status maps the kind onto an HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error attaches a Kind to an underlying error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return e.Message + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// BadRequest marks client input errors (HTTP 400).
func BadRequest(message string, err error) *Error {
	return newError(KindBadRequest, message, err)
}

// NotFound marks unknown files and folders (HTTP 404).
func NotFound(message string, err error) *Error {
	return newError(KindNotFound, message, err)
}

// TooLarge marks oversized uploads (HTTP 413).
func TooLarge(message string, err error) *Error {
	return newError(KindTooLarge, message, err)
}

// Unauthorized marks requests without a valid token (HTTP 401).
func Unauthorized(message string) *Error {
	return newError(KindUnauthorized, message, nil)
}

// RateLimited marks throttled requests (HTTP 429).
func RateLimited(message string) *Error {
	return newError(KindRateLimited, message, nil)
}

// OperationFailed marks a delegated library failure (HTTP 500, message surfaced).
func OperationFailed(message string, err error) *Error {
	return newError(KindOperation, message, err)
}

// Internal marks unexpected failures (HTTP 500, detail hidden from clients).
func Internal(message string, err error) *Error {
	return newError(KindInternal, message, err)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindOperation.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOperation
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return KindOf(err).Status()
}
