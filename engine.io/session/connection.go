package session

import (
	"github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/engine.io/transport"
)

// Connection binds one exchange (a WebSocket, or a polling queue) to a session.
// A session owns exactly one active connection at a time.
type Connection interface {
	Type() transport.Type

	// Send must not block beyond the transport's own write timeout.
	// It is called with the session lock held, so it must not call back into the session.
	Send(packets ...*parser.Packet) error

	// Retire is called when an upgrade supersedes this connection. A pending exchange
	// completes without application packets, and the packets that were never flushed
	// are returned so that the new connection can deliver them.
	Retire() []*parser.Packet

	// Abort releases the connection's resources. Called when the session is closed
	// or when an upgrade candidate is dropped. It must not block.
	Abort()
}
