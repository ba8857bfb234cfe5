package session

import (
	"errors"

	"github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/internal/sync"
)

var errFakeSend = errors.New("fake send error")

type fakeConnection struct {
	t transport.Type

	mu       sync.Mutex
	sent     []*parser.Packet
	pending  []*parser.Packet
	failSend bool
	retired  bool
	aborted  bool
}

func newFakeConnection(t transport.Type) *fakeConnection {
	return &fakeConnection{t: t}
}

func (c *fakeConnection) Type() transport.Type { return c.t }

func (c *fakeConnection) Send(packets ...*parser.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errFakeSend
	}
	if c.aborted || c.retired {
		return transport.ErrConnectionClosed
	}
	c.sent = append(c.sent, packets...)
	if c.t.IsPolling() {
		c.pending = append(c.pending, packets...)
	}
	return nil
}

// flush imitates a GET taking everything queued so far.
func (c *fakeConnection) flush() []*parser.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending
	c.pending = nil
	return p
}

func (c *fakeConnection) Retire() []*parser.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retired = true
	p := c.pending
	c.pending = nil
	return p
}

func (c *fakeConnection) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted = true
}

func (c *fakeConnection) Sent() []*parser.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*parser.Packet(nil), c.sent...)
}

func (c *fakeConnection) setFailSend(fail bool) {
	c.mu.Lock()
	c.failSend = fail
	c.mu.Unlock()
}

func (c *fakeConnection) isAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *fakeConnection) isRetired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retired
}
