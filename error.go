package sio

import "errors"

var (
	ErrConnClosed    = errors.New("sio: connection is closed")
	ErrNotConnected  = errors.New("sio: namespace is not connected")
	ErrReservedEvent = errors.New("sio: event name is reserved")
)

// This is a wrapper for the errors internal to socketio-server.
//
// If you see this error, this means that the problem is
// neither a network error, nor an error caused by you, but
// the source of the error is socketio-server. Open an issue on GitHub.
type InternalError struct {
	err error
}

func (e InternalError) Error() string {
	return "sio: internal error: " + e.err.Error()
}

func (e InternalError) Unwrap() error {
	return e.err
}

func wrapInternalError(err error) *InternalError {
	return &InternalError{err: err}
}

// Return a ConnectError from a NamespaceAuthenticator to send the client
// {"message": Message, "data": Data} instead of a bare message string.
type ConnectError struct {
	Message string
	Data    any
}

func (e *ConnectError) Error() string {
	return "sio: namespace refused: " + e.Message
}

func connectErrorPayload(err error) any {
	var cerr *ConnectError
	if !errors.As(err, &cerr) {
		return err.Error()
	}
	payload := map[string]any{"message": cerr.Message}
	if cerr.Data != nil {
		payload["data"] = cerr.Data
	}
	return payload
}
