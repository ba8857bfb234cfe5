package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// The connection no longer accepts packets: it was retired by an upgrade or aborted.
	ErrConnectionClosed = errors.New("transport: connection closed")

	// No session callback is registered, or the server is shutting down.
	ErrNoHandler = errors.New("transport: no handler for a new connection")
)

// Codes of the JSON error body returned to HTTP clients.
const (
	CodeUnknownTransport = iota
	CodeUnknownSID
	CodeBadHandshakeMethod
	CodeBadRequest
	CodeForbidden
	CodeUnsupportedProtocolVersion
)

// ProtocolError is fatal to the exchange it occurred in and is never retried.
// It is written as an HTTP error, or as a WebSocket close.
type ProtocolError struct {
	Message string
	Code    int
	Status  int
	Err     error
}

func NewProtocolError(code int, message string, err error) *ProtocolError {
	return &ProtocolError{
		Message: message,
		Code:    code,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func NewMethodError(t Type, method string) *ProtocolError {
	return &ProtocolError{
		Message: fmt.Sprintf("method %s is not allowed for %s", method, t),
		Code:    CodeBadRequest,
		Status:  http.StatusMethodNotAllowed,
	}
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "transport: protocol error: " + e.Message + ": " + e.Err.Error()
	}
	return "transport: protocol error: " + e.Message
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) StatusCode() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

type UnsupportedTransportError struct {
	Name string
}

func (e *UnsupportedTransportError) Error() string {
	return fmt.Sprintf("transport: unsupported transport: %q", e.Name)
}

func (e *UnsupportedTransportError) StatusCode() int { return http.StatusBadRequest }

// ConnectionError reports a failed handshake send or upgrade probe.
// It only takes the session down when no other transport remains.
type ConnectionError struct {
	Transport Type
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transport: %s connection error: %v", e.Transport, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError is always fatal to the session.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transport: no traffic for %s", e.After)
}

func (e *TimeoutError) Timeout() bool { return true }
