package polling

import (
	"github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/engine.io/session"
	"github.com/karagenc/socketio-server/engine.io/transport"
)

// Conn emulates a duplex connection over request/response pairs.
// It lives as long as the session is on polling; each GET drains its queue.
type Conn struct {
	t       transport.Type
	session *session.Session
	pq      *pollQueue
}

var _ session.Connection = (*Conn)(nil)

func newConn(t transport.Type, s *session.Session) *Conn {
	return &Conn{
		t:       t,
		session: s,
		pq:      newPollQueue(),
	}
}

func (c *Conn) Type() transport.Type { return c.t }

func (c *Conn) Send(packets ...*parser.Packet) error { return c.pq.add(packets...) }

func (c *Conn) Retire() []*parser.Packet { return c.pq.drain() }

func (c *Conn) Abort() { c.pq.close() }

// Pending is the number of packets waiting for a GET.
func (c *Conn) Pending() int { return c.pq.len() }
