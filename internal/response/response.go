// Package response defines the uniform JSON envelope returned by every endpoint and
// the tagged result type handlers build it from.
package response

import (
	"net/http"
	"time"
)

// InternalErrorDetail replaces the detail of internal failures in client responses.
const InternalErrorDetail = "Internal server error"

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *string   `json:"error"`
}

// Result is either a success carrying a payload or a failure carrying an error.
type Result[T any] struct {
	ok      bool
	message string
	payload T
	err     error
	status  int
}

// Ok builds a successful result.
func Ok[T any](message string, payload T) Result[T] {
	return Result[T]{ok: true, message: message, payload: payload, status: http.StatusOK}
}

// Fail builds a failed result. The HTTP status is derived from err's Kind.
func Fail[T any](message string, err error) Result[T] {
	if err == nil {
		err = OperationFailed(message, nil)
	}
	return Result[T]{message: message, err: err, status: StatusFor(err)}
}

// IsOk reports whether the result is a success.
func (r Result[T]) IsOk() bool {
	return r.ok
}

// Payload returns the success payload and true, or the zero value and false.
func (r Result[T]) Payload() (T, bool) {
	return r.payload, r.ok
}

// Err returns the failure error, nil for successes.
func (r Result[T]) Err() error {
	return r.err
}

// Message returns the human-readable message.
func (r Result[T]) Message() string {
	return r.message
}

// Status returns the HTTP status for the result.
func (r Result[T]) Status() int {
	return r.status
}

// Envelope renders the result for the wire.
func (r Result[T]) Envelope() Envelope {
	env := Envelope{
		Success:   r.ok,
		Message:   r.message,
		Timestamp: time.Now().UTC(),
	}
	if r.ok {
		var data any = r.payload
		if data == nil {
			data = map[string]any{}
		}
		env.Data = data
		return env
	}

	detail := ErrorDetail(r.err)
	env.Error = &detail
	return env
}

// ErrorDetail returns the client-facing text for err. Internal errors are masked.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	if KindOf(err) == KindInternal {
		return InternalErrorDetail
	}
	return err.Error()
}

// Success is shorthand for a successful envelope with arbitrary data.
func Success(message string, data any) Envelope {
	return Ok(message, data).Envelope()
}

// Failure is shorthand for a failed envelope.
func Failure(message string, err error) Envelope {
	return Fail[any](message, err).Envelope()
}
