package sio

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	eio "github.com/karagenc/socketio-server/engine.io"
	eioparser "github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/internal/sync"
	"github.com/karagenc/socketio-server/parser"
)

type (
	// Called for every complete packet, in order. Acks answering
	// EmitWithAck are consumed and never reach this callback.
	PacketCallback func(packet *parser.Packet)

	// err can be nil. Always do a nil check.
	DisconnectCallback func(reason Reason, err error)

	AckCallback func(args []any)
)

// Conn is a Socket.IO connection riding on a single Engine.IO session.
// It is safe for concurrent use.
type Conn struct {
	eio    *eio.Session
	server *Server
	queue  *packetQueue

	createdAt time.Time
	nsps      mapset.Set[string]

	// Guards the parser. Engine.IO may deliver from different goroutines
	// across an upgrade.
	parserMu sync.Mutex
	parser   parser.Parser

	acks   *ackStore
	closed atomic.Bool

	onPacket     atomic.Value
	onDisconnect atomic.Value

	debug Debugger
}

func newConn(server *Server, session *eio.Session) (*Conn, *eio.Callbacks) {
	c := &Conn{
		eio:       session,
		server:    server,
		queue:     newPacketQueue(),
		createdAt: time.Now(),
		nsps:      mapset.NewSet[string](),
		parser:    server.parserCreator(),
		acks:      newAckStore(),
	}
	c.debug = server.debug.WithContext("[sio/conn] " + session.ID())
	c.OnPacket(nil)
	c.OnDisconnect(nil)

	callbacks := &eio.Callbacks{
		OnOpen:    c.onOpen,
		OnMessage: c.onMessage,
		OnError:   c.onError,
		OnClose:   c.onClose,
	}
	return c, callbacks
}

// The main namespace is connected as soon as the session opens. Runs after
// the session callbacks are installed, so a close from inside the
// connection handler reaches onClose.
func (c *Conn) onOpen() {
	go c.queue.sendLoop(c.eio, c.eio.Done(), c.onError)

	c.nsps.Add("/")
	c.sendPacket(&parser.Packet{Type: parser.PacketTypeConnect, Namespace: "/"})
	c.server.onConnection.Load().(ConnectionCallback)(c)
}

// ID is the Engine.IO session ID.
func (c *Conn) ID() string { return c.eio.ID() }

func (c *Conn) Session() *eio.Session { return c.eio }

func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// Namespaces lists the namespaces the client is connected to.
func (c *Conn) Namespaces() []string { return c.nsps.ToSlice() }

func (c *Conn) IsConnectedTo(namespace string) bool { return c.nsps.Contains(namespace) }

func (c *Conn) IsClosed() bool { return c.closed.Load() }

// OnPacket sets the packet handler. Set it from the server's connection
// handler so that no packet is missed.
func (c *Conn) OnPacket(handler PacketCallback) {
	if handler == nil {
		handler = func(packet *parser.Packet) {}
	}
	c.onPacket.Store(handler)
}

func (c *Conn) OnDisconnect(handler DisconnectCallback) {
	if handler == nil {
		handler = func(reason Reason, err error) {}
	}
	c.onDisconnect.Store(handler)
}

// Emit sends an event to a connected namespace.
func (c *Conn) Emit(namespace string, event string, args ...any) error {
	return c.emit(namespace, nil, event, args)
}

// EmitWithAck sends an event and calls ack with the arguments of the
// client's acknowledgement. ack is never called if the connection closes first.
func (c *Conn) EmitWithAck(namespace string, ack AckCallback, event string, args ...any) error {
	if ack == nil {
		return c.emit(namespace, nil, event, args)
	}
	id := c.acks.add(ack)
	err := c.emit(namespace, &id, event, args)
	if err != nil {
		c.acks.remove(id)
	}
	return err
}

func (c *Conn) emit(namespace string, id *uint64, event string, args []any) error {
	if IsEventReserved(event) {
		return fmt.Errorf("%w: %s", ErrReservedEvent, event)
	}
	namespace = normalizeNamespace(namespace)
	if !c.nsps.Contains(namespace) {
		return ErrNotConnected
	}
	return c.SendPacket(parser.NewEvent(namespace, id, event, args...))
}

// Ack answers an event that was received with an ack ID.
func (c *Conn) Ack(namespace string, id uint64, args ...any) error {
	return c.SendPacket(parser.NewAck(normalizeNamespace(namespace), id, args...))
}

// SendPacket encodes and queues a raw Socket.IO packet. Binary attachments
// follow the header as binary MESSAGE packets.
func (c *Conn) SendPacket(packet *parser.Packet) error {
	c.parserMu.Lock()
	buffers, err := c.parser.Encode(packet)
	c.parserMu.Unlock()
	if err != nil {
		return err
	}

	packets, err := toEIOPackets(buffers)
	if err != nil {
		return wrapInternalError(err)
	}
	return c.queue.add(packets...)
}

func (c *Conn) sendPacket(packet *parser.Packet) {
	err := c.SendPacket(packet)
	if err != nil && !errors.Is(err, ErrConnClosed) {
		c.onError(err)
	}
}

func toEIOPackets(buffers [][]byte) ([]*eioparser.Packet, error) {
	packets := make([]*eioparser.Packet, len(buffers))
	for i, buf := range buffers {
		p, err := eioparser.NewPacket(eioparser.PacketTypeMessage, i > 0, buf)
		if err != nil {
			return nil, err
		}
		packets[i] = p
	}
	return packets, nil
}

// DisconnectNamespace leaves a single namespace. Leaving the main
// namespace disconnects the whole connection.
func (c *Conn) DisconnectNamespace(namespace string) error {
	namespace = normalizeNamespace(namespace)
	if namespace == "/" {
		c.Disconnect()
		return nil
	}
	if !c.nsps.Contains(namespace) {
		return ErrNotConnected
	}
	c.nsps.Remove(namespace)
	return c.SendPacket(&parser.Packet{Type: parser.PacketTypeDisconnect, Namespace: namespace})
}

// Disconnect sends DISCONNECT for every connected namespace and closes the
// session once everything queued before it has been handed to the transport.
func (c *Conn) Disconnect() {
	c.closeWith(ReasonIOServerDisconnect, true)
}

func (c *Conn) closeWith(reason Reason, notify bool) {
	var packets []*eioparser.Packet
	if notify {
		for _, nsp := range c.nsps.ToSlice() {
			c.parserMu.Lock()
			buffers, err := c.parser.Encode(&parser.Packet{Type: parser.PacketTypeDisconnect, Namespace: nsp})
			c.parserMu.Unlock()
			if err != nil {
				continue
			}
			p, err := toEIOPackets(buffers)
			if err != nil {
				continue
			}
			packets = append(packets, p...)
		}
	}
	if !c.queue.closeAfterFlush(reason, packets...) {
		return
	}
	c.debug.Log("Disconnecting", reason)
}

func (c *Conn) onMessage(packet *eioparser.Packet) {
	c.parserMu.Lock()
	p, err := c.parser.Add(packet.Data, packet.IsBinary)
	c.parserMu.Unlock()

	if err != nil {
		c.onError(fmt.Errorf("sio: %w", err))
		c.closeWith(ReasonParseError, false)
		return
	}
	if p == nil {
		// Waiting for attachments.
		return
	}
	c.handlePacket(p)
}

func (c *Conn) handlePacket(p *parser.Packet) {
	p.Namespace = normalizeNamespace(p.Namespace)
	c.debug.Log("Packet received", p)

	switch p.Type {
	case parser.PacketTypeConnect:
		c.connectNamespace(p)

	case parser.PacketTypeDisconnect:
		if p.Namespace == "/" {
			c.closeWith(ReasonIOClientDisconnect, false)
		} else {
			c.nsps.Remove(p.Namespace)
		}

	case parser.PacketTypeAck, parser.PacketTypeBinaryAck:
		if !c.nsps.Contains(p.Namespace) {
			c.debug.Log("Ack for a namespace that is not connected", p.Namespace)
			return
		}
		if ack, ok := c.acks.take(*p.ID); ok {
			ack(p.Args())
			return
		}

	case parser.PacketTypeEvent, parser.PacketTypeBinaryEvent:
		if !c.nsps.Contains(p.Namespace) {
			c.debug.Log("Event for a namespace that is not connected", p.Namespace)
			return
		}

	case parser.PacketTypeConnectError:
		// Only servers send these.
		c.debug.Log("Unexpected CONNECT_ERROR from the client")
		return
	}

	c.onPacket.Load().(PacketCallback)(p)
}

func (c *Conn) connectNamespace(p *parser.Packet) {
	auth, _ := p.Data.(map[string]any)

	if !c.nsps.Contains(p.Namespace) {
		if err := c.server.acceptNamespace(c, p.Namespace, auth); err != nil {
			c.debug.Log("Namespace refused", p.Namespace, err)
			c.sendPacket(&parser.Packet{
				Type:      parser.PacketTypeConnectError,
				Namespace: p.Namespace,
				Data:      connectErrorPayload(err),
			})
			return
		}
		c.nsps.Add(p.Namespace)
	}
	c.sendPacket(&parser.Packet{Type: parser.PacketTypeConnect, Namespace: p.Namespace})
}

func (c *Conn) onError(err error) {
	c.debug.Log("Error", err)
	c.server.onError(err)
}

func (c *Conn) onClose(reason Reason, err error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.queue.closeAfterFlush(reason)

	c.parserMu.Lock()
	if perr := c.parser.Finish(); perr != nil {
		c.debug.Log("Dropped incomplete packet", perr)
	}
	c.parser.Reset()
	c.parserMu.Unlock()

	c.acks.clear()
	c.server.conns.remove(c.ID())

	c.debug.Log("Disconnected", reason)
	c.onDisconnect.Load().(DisconnectCallback)(reason, err)
}

// Namespaces may carry a query string ("/admin?token=abc") when sent by
// older clients.
func normalizeNamespace(namespace string) string {
	if i := strings.IndexByte(namespace, '?'); i != -1 {
		namespace = namespace[:i]
	}
	if namespace == "" {
		return "/"
	}
	return namespace
}
