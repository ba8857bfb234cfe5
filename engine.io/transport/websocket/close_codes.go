package websocket

import "github.com/karagenc/socketio-server/engine.io/session"

// StatusCode is a WebSocket close code (RFC 6455, section 7.4).
type StatusCode int

const (
	StatusNormalClosure   StatusCode = 1000
	StatusGoingAway       StatusCode = 1001
	StatusProtocolError   StatusCode = 1002
	StatusNoStatusRcvd    StatusCode = 1005
	StatusAbnormalClosure StatusCode = 1006
	StatusMessageTooBig   StatusCode = 1009
	StatusInternalError   StatusCode = 1011

	// Returned by Socket.CloseStatus when the error doesn't carry a close frame.
	statusNone StatusCode = -1
)

// reasonFor maps how the peer ended the connection to a session reason.
// A clean close still counts as abrupt for the session unless a CLOSE packet came first.
func reasonFor(code StatusCode) session.Reason {
	switch code {
	case StatusNormalClosure:
		return session.ReasonClosed
	case StatusGoingAway, StatusNoStatusRcvd, StatusAbnormalClosure, statusNone:
		return session.ReasonClientGone
	}
	return session.ReasonError
}

// isExpected reports whether the close code is an ordinary way for a client to leave.
func isExpected(code StatusCode) bool {
	return reasonFor(code) != session.ReasonError
}
