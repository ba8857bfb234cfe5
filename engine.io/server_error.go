package eio

import (
	"errors"
	"net/http"

	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/internal/json"
)

// ServerError is the JSON body of an error response.
type ServerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func GetServerError(code int) (se ServerError, ok bool) {
	se, ok = serverErrors[code]
	return
}

var serverErrors = map[int]ServerError{
	transport.CodeUnknownTransport: {
		Code:    transport.CodeUnknownTransport,
		Message: "Transport unknown",
	},
	transport.CodeUnknownSID: {
		Code:    transport.CodeUnknownSID,
		Message: "Session ID unknown",
	},
	transport.CodeBadHandshakeMethod: {
		Code:    transport.CodeBadHandshakeMethod,
		Message: "Bad handshake method",
	},
	transport.CodeBadRequest: {
		Code:    transport.CodeBadRequest,
		Message: "Bad request",
	},
	transport.CodeForbidden: {
		Code:    transport.CodeForbidden,
		Message: "Forbidden",
	},
	transport.CodeUnsupportedProtocolVersion: {
		Code:    transport.CodeUnsupportedProtocolVersion,
		Message: "Unsupported protocol version",
	},
}

// writeServerError maps err to a status code and a table entry.
// It reports whether err was expected, i.e. caused by the request.
func writeServerError(w http.ResponseWriter, err error) (expected bool) {
	var (
		status = http.StatusInternalServerError
		code   = -1

		protoErr     *transport.ProtocolError
		transportErr *transport.UnsupportedTransportError
	)

	switch {
	case errors.As(err, &protoErr):
		status, code = protoErr.StatusCode(), protoErr.Code
	case errors.As(err, &transportErr):
		status, code = transportErr.StatusCode(), transport.CodeUnknownTransport
	case errors.Is(err, transport.ErrNoHandler):
		status = http.StatusServiceUnavailable
	}

	se, ok := serverErrors[code]
	if !ok {
		http.Error(w, http.StatusText(status), status)
		return status != http.StatusInternalServerError
	}

	data, _ := json.Marshal(&se)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return true
}
