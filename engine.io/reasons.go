package eio

import "github.com/karagenc/socketio-server/engine.io/session"

type Reason = session.Reason

const (
	ReasonClosed         = session.ReasonClosed
	ReasonClosedRemotely = session.ReasonClosedRemotely
	ReasonClientGone     = session.ReasonClientGone
	ReasonTimeout        = session.ReasonTimeout
	ReasonError          = session.ReasonError
	ReasonConnectFailed  = session.ReasonConnectFailed
	ReasonServerShutdown = session.ReasonServerShutdown
)
