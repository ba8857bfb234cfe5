package session

import (
	mapset "github.com/deckarep/golang-set/v2"
)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "<invalid>"
}

type Reason string

const (
	ReasonClosed         Reason = "closed"
	ReasonClosedRemotely Reason = "closed remotely"
	ReasonClientGone     Reason = "client gone"
	ReasonTimeout        Reason = "timeout"
	ReasonError          Reason = "error"
	ReasonConnectFailed  Reason = "connect failed"
	ReasonServerShutdown Reason = "server shutting down"
	ReasonUnknown        Reason = "unknown"
)

var abruptReasons = mapset.NewThreadUnsafeSet(
	ReasonClientGone,
	ReasonError,
	ReasonTimeout,
	ReasonConnectFailed,
)

// IsAbrupt reports whether the session ended without a close handshake.
func (r Reason) IsAbrupt() bool {
	return abruptReasons.Contains(r)
}
