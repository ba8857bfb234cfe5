package websocket

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/engine.io/session"
	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/internal/debug"
	"github.com/karagenc/socketio-server/internal/sync"
)

// Conn is a session connection over a native WebSocket.
// Packets are written as soon as they're sent; there's no queue.
// The socket is attached once the WebSocket handshake has succeeded.
type Conn struct {
	socket       Socket
	session      *session.Session
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once

	debug debug.Debugger
}

var _ session.Connection = (*Conn)(nil)

func newConn(s *session.Session, writeTimeout time.Duration, dbg debug.Debugger) *Conn {
	return &Conn{
		session:      s,
		writeTimeout: writeTimeout,
		debug:        dbg,
	}
}

// attach must be called before the connection is handed to the session.
func (c *Conn) attach(socket Socket) { c.socket = socket }

func (c *Conn) Type() transport.Type { return transport.TypeWebSocket }

func (c *Conn) Send(packets ...*parser.Packet) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() || c.socket == nil {
		return transport.ErrConnectionClosed
	}

	for _, packet := range packets {
		err := c.write(packet)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) write(packet *parser.Packet) error {
	ctx := context.Background()
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	if packet.IsBinary {
		return c.socket.Write(ctx, true, packet.EncodeBinary())
	}
	return c.socket.Write(ctx, false, packet.Encode())
}

// A WebSocket is never superseded, so it has nothing pending to hand over.
func (c *Conn) Retire() []*parser.Packet { return nil }

func (c *Conn) Abort() {
	c.close(StatusNormalClosure, "")
}

func (c *Conn) close(code StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.socket == nil {
			return
		}
		// The close handshake may take a while. Abort must not block.
		go func() {
			err := c.socket.Close(code, reason)
			if err != nil {
				c.debug.Log("Close", err)
			}
		}()
	})
}

// readLoop delivers inbound packets to the session until the socket fails.
// Closing the socket is what ends a pending read.
func (c *Conn) readLoop() {
	for {
		binary, data, err := c.socket.Read(context.Background())
		if err != nil {
			code := c.socket.CloseStatus(err)
			if isExpected(code) {
				err = nil
			}
			c.debug.Log("Read loop ended", code, err)
			c.close(StatusNormalClosure, "")
			c.session.Fail(c, reasonFor(code), err)
			return
		}

		var packet *parser.Packet
		if binary {
			packet, err = parser.DecodeBinary(data)
		} else {
			packet, err = parser.Decode(data)
		}
		if err != nil {
			c.close(StatusProtocolError, "malformed packet")
			c.session.Fail(c, session.ReasonError, transport.NewProtocolError(transport.CodeBadRequest, "malformed packet", err))
			return
		}

		c.session.OnPacket(c, packet)
	}
}
