package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrRetryExhausted is matched by every [MaxRetriesExceeded] error, so callers
// that only care whether the retry budget ran out can use errors.Is without
// type-asserting.
//
// Example:
//
//	if errors.Is(err, apierror.ErrRetryExhausted) {
//	    // all retries failed
//	}
var ErrRetryExhausted = errors.New("docflow: all retry attempts exhausted")

// Kind classifies an [APIError] by the status family that produced it.
type Kind string

const (
	// KindServer is used for 5xx responses.
	KindServer Kind = "server_error"
	// KindClient is used for 4xx responses other than 422.
	KindClient Kind = "client_error"
)

// APIError is returned for non-2xx responses other than 422. 5xx responses
// only surface as APIError after the retry policy gave up on them, in which
// case it is wrapped by [MaxRetriesExceeded].
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Method     string
	URL        string
	RequestID  string

	// Body is a (possibly truncated) copy of the raw response body.
	Body []byte
}

func (e *APIError) Error() string {
	var b strings.Builder
	if e.Method != "" {
		b.WriteString(strings.ToUpper(e.Method))
		b.WriteString(" ")
	}
	if e.URL != "" {
		b.WriteString(e.URL)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "http %d", e.StatusCode)
	if text := http.StatusText(e.StatusCode); text != "" {
		b.WriteString(" ")
		b.WriteString(text)
	}
	if e.Message != "" && e.Message != http.StatusText(e.StatusCode) {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RequestID != "" {
		b.WriteString(" request_id=")
		b.WriteString(e.RequestID)
	}
	return b.String()
}

// Server reports whether the error came from a 5xx response.
func (e *APIError) Server() bool {
	return e.StatusCode >= 500
}

// Retryable reports whether the status is one the retry policy would retry
// for an idempotent request.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ValidationError is returned for 422 responses: the server rejected the
// request because of its shape. It is never retried.
type ValidationError struct {
	StatusCode int
	Message    string
	Method     string
	URL        string

	// Body is the raw error body.
	Body []byte
	// Detail is the decoded "detail" member of a JSON error body, if any.
	Detail any
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request validation failed"
	}
	if e.URL != "" {
		return fmt.Sprintf("%s %s: http %d: %s", strings.ToUpper(e.Method), e.URL, e.StatusCode, msg)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, msg)
}

// DecodeKind tells apart the two ways a successful response can fail to
// decode.
type DecodeKind string

const (
	// DecodeBadContentType means the payload did not parse as the declared
	// content type.
	DecodeBadContentType DecodeKind = "bad_content_type"
	// DecodeShape means the payload parsed but did not match the expected shape.
	DecodeShape DecodeKind = "shape"
)

// DecodeError reports a 2xx response whose payload could not be turned into
// the value the caller expected. Retrying never helps, so it is returned
// immediately.
type DecodeError struct {
	Kind        DecodeKind
	ContentType string
	Message     string

	// Payload is the raw payload that failed to decode.
	Payload []byte
	Cause   error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("bad content type")
	if e.Kind == DecodeShape {
		b.WriteString(" (shape mismatch)")
	}
	if e.ContentType != "" {
		b.WriteString(" for ")
		b.WriteString(e.ContentType)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// TransportError wraps a failure that happened before any response was
// received: dial errors, connection resets, timeouts.
type TransportError struct {
	Method string
	URL    string
	Cause  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: request failed: %v", strings.ToUpper(e.Method), e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// Timeout reports whether the underlying error is a timeout.
func (e *TransportError) Timeout() bool {
	var timeout interface{ Timeout() bool }
	return errors.As(e.Cause, &timeout) && timeout.Timeout()
}

// MaxRetriesExceeded is the terminal error of the retry policy. Attempts is
// the total number of transport calls made, the first one included.
type MaxRetriesExceeded struct {
	Attempts int
	LastErr  error
}

func (e *MaxRetriesExceeded) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrRetryExhausted, e.Attempts, e.LastErr)
}

func (e *MaxRetriesExceeded) Unwrap() error { return e.LastErr }

// Is makes errors.Is(err, ErrRetryExhausted) hold.
func (e *MaxRetriesExceeded) Is(target error) bool {
	return target == ErrRetryExhausted
}

// StatusCode extracts the HTTP status carried by err, or 0 when err does not
// come from a response.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.StatusCode
	}
	return 0
}
