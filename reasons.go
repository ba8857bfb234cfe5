package sio

import eio "github.com/karagenc/socketio-server/engine.io"

type Reason = eio.Reason

const (
	// Conn.Disconnect was called.
	ReasonIOServerDisconnect Reason = "io server disconnect"
	// The client disconnected from the main namespace.
	ReasonIOClientDisconnect Reason = "io client disconnect"
	// A Socket.IO packet couldn't be decoded.
	ReasonParseError Reason = "parse error"
)

const (
	ReasonClosed         = eio.ReasonClosed
	ReasonClosedRemotely = eio.ReasonClosedRemotely
	ReasonClientGone     = eio.ReasonClientGone
	ReasonTimeout        = eio.ReasonTimeout
	ReasonError          = eio.ReasonError
	ReasonServerShutdown = eio.ReasonServerShutdown
)
