package translator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// ErrorKind classifies backend failures
type ErrorKind int

const (
	RateLimited ErrorKind = iota + 1
	Timeout
	Transport
	Rejected
)

func (k ErrorKind) String() string {
	switch k {
	case RateLimited:
		return "rate-limited"
	case Timeout:
		return "timeout"
	case Transport:
		return "transport"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// BackendError is returned by Backend.Invoke when the provider call fails
type BackendError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend %s: %v", e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same request may succeed if sent again
func (e *BackendError) Retryable() bool {
	return e.Kind != Rejected
}

// NewBackendError classifies err using the HTTP status code when one is known.
// A status of 0 means the provider did not answer.
func NewBackendError(err error, status int) *BackendError {
	return &BackendError{Kind: classify(err, status), StatusCode: status, Err: err}
}

func classify(err error, status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return Timeout
	case status >= 500:
		return Transport
	case status >= 400:
		return Rejected
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Transport
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout
		}
		return Transport
	}
	return Rejected
}

// ConfigError is fatal and aborts a run before any batch is sent
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "config: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// UnsupportedMethodError is returned when an explicitly requested method
// needs a capability the backend does not have
type UnsupportedMethodError struct {
	Method  string
	Backend string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("backend %s does not support method %q", e.Backend, e.Method)
}

// PersistenceError reports a failed save of an accepted translation
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save translation %q: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
