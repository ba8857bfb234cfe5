package eio

import "github.com/karagenc/socketio-server/engine.io/session"

type (
	Session = session.Session

	// Called once per session, before the OPEN handshake is sent.
	// The returned callbacks can be nil. Use Callbacks.OnOpen to act once
	// the session is open.
	NewSessionCallback = session.NewSessionCallback
	Callbacks          = session.Callbacks

	PacketCallback = session.PacketCallback
	ErrorCallback  = session.ErrorCallback
	CloseCallback  = session.CloseCallback
)
