package session

import "github.com/karagenc/socketio-server/engine.io/parser"

type (
	NewSessionCallback func(s *Session) *Callbacks
	PacketCallback     func(packet *parser.Packet)
	ErrorCallback      func(err error)
	// err can be nil. Always do a nil check.
	CloseCallback func(reason Reason, err error)
)

type Callbacks struct {
	// Called once the session is OPEN. A close from inside it is
	// reported through OnClose like any other.
	OnOpen func()
	// Called for each MESSAGE packet, in the order they were received.
	OnMessage PacketCallback
	OnError   ErrorCallback
	// Called exactly once, after the session is removed from the registry.
	OnClose CloseCallback
}

func (c *Callbacks) setMissing() {
	if c.OnOpen == nil {
		c.OnOpen = func() {}
	}
	if c.OnMessage == nil {
		c.OnMessage = func(packet *parser.Packet) {}
	}
	if c.OnError == nil {
		c.OnError = func(err error) {}
	}
	if c.OnClose == nil {
		c.OnClose = func(reason Reason, err error) {}
	}
}
