package session

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/internal/debug"
	"github.com/karagenc/socketio-server/internal/sync"
)

var (
	ErrNotConnecting = errors.New("session: handshake already done")
	ErrNotOpen       = errors.New("session: session is not open")
)

// Session is the durable logical connection. It outlives the transport
// connections that carry it and owns exactly one of them at a time.
type Session struct {
	id             string
	pingInterval   time.Duration
	pingTimeout    time.Duration
	upgradeTimeout time.Duration

	// Guards everything below, including the send path of the active connection.
	mu        sync.Mutex
	state     State
	reason    Reason
	conn      Connection
	candidate Connection

	heartbeat    *time.Timer
	deadline     time.Time
	upgradeTimer *time.Timer

	// Copy of state readable without mu, for logging.
	stateSnapshot atomic.Int32

	callbacks atomic.Value
	onSession NewSessionCallback

	onShutdown func(sid string)
	closed     chan struct{}
	closeOnce  sync.Once

	debug debug.Debugger
}

func newSession(
	id string,
	pingInterval, pingTimeout, upgradeTimeout time.Duration,
	onSession NewSessionCallback,
	onShutdown func(sid string),
	dbg debug.Debugger,
) *Session {
	// onShutdown might be nil for testing purposes.
	if onShutdown == nil {
		onShutdown = func(sid string) {}
	}
	if onSession == nil {
		onSession = func(s *Session) *Callbacks { return nil }
	}

	s := &Session{
		id:             id,
		pingInterval:   pingInterval,
		pingTimeout:    pingTimeout,
		upgradeTimeout: upgradeTimeout,
		state:          StateConnecting,
		onSession:      onSession,
		onShutdown:     onShutdown,
		closed:         make(chan struct{}),
	}
	s.debug = dbg.WithDynamicContext("[eio/session] "+id, func() string {
		return State(s.stateSnapshot.Load()).String()
	})
	s.setCallbacks(nil)
	return s
}

func (s *Session) getCallbacks() *Callbacks {
	callbacks, _ := s.callbacks.Load().(*Callbacks)
	return callbacks
}

func (s *Session) setCallbacks(callbacks *Callbacks) {
	if callbacks == nil {
		callbacks = new(Callbacks)
	}
	// Copy the callbacks so the user can't change them.
	c := *callbacks
	c.setMissing()
	s.callbacks.Store(&c)
}

func (s *Session) setStateLocked(state State) {
	s.state = state
	s.stateSnapshot.Store(int32(state))
}

func (s *Session) ID() string { return s.id }

func (s *Session) PingInterval() time.Duration { return s.pingInterval }

func (s *Session) PingTimeout() time.Duration { return s.pingTimeout }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason is the recorded disconnect reason. Empty until the session starts closing.
func (s *Session) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Connection returns the active connection. It is only meant for routing;
// anything that changes state must go through the session.
func (s *Session) Connection() Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Session) TransportType() (t transport.Type, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0, false
	}
	return s.conn.Type(), true
}

func (s *Session) IsUpgrading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidate != nil
}

// Done is closed once the session reaches CLOSED.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Open sends the OPEN handshake over c and makes c the active connection.
// The callbacks are obtained from the session handler before the session
// can be closed, and OnOpen runs once the session is OPEN.
func (s *Session) Open(c Connection, upgrades []string) error {
	if s.State() != StateConnecting {
		return ErrNotConnecting
	}
	s.setCallbacks(s.onSession(s))

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return ErrNotConnecting
	}

	handshake, err := parser.NewHandshakePacket(s.id, upgrades, s.pingInterval, s.pingTimeout)
	if err == nil {
		err = c.Send(handshake)
	}
	if err != nil {
		s.reason = ReasonConnectFailed
		s.setStateLocked(StateClosing)
		s.mu.Unlock()

		c.Abort()
		err = &transport.ConnectionError{Transport: c.Type(), Err: err}
		s.shutdown(err)
		return err
	}

	s.conn = c
	s.setStateLocked(StateOpen)
	s.startHeartbeatLocked()
	s.mu.Unlock()

	s.debug.Log("Open", c.Type(), "upgrades", upgrades)
	s.getCallbacks().OnOpen()
	return nil
}

// OnPacket is called by a connection for every decoded inbound packet, in order.
func (s *Session) OnPacket(c Connection, packets ...*parser.Packet) {
	for _, packet := range packets {
		s.handlePacket(c, packet)
	}
}

func (s *Session) handlePacket(c Connection, packet *parser.Packet) {
	s.mu.Lock()

	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if c == nil || (c != s.conn && c != s.candidate) {
		s.mu.Unlock()
		s.debug.Log("Dropping packet from a superseded connection", packet)
		return
	}
	s.touchLocked()

	if c == s.candidate {
		s.handleProbePacketLocked(c, packet)
		return
	}

	switch packet.Type {
	case parser.PacketTypePing:
		err := c.Send(parser.MustNewPacket(parser.PacketTypePong, packet.Data))
		s.mu.Unlock()
		if err != nil {
			s.Fail(c, ReasonError, err)
		}

	case parser.PacketTypeClose:
		if s.state != StateClosing {
			s.reason = ReasonClosedRemotely
			s.setStateLocked(StateClosing)
		}
		s.mu.Unlock()
		s.debug.Log("CLOSE received")
		s.shutdown(nil)

	case parser.PacketTypeMessage:
		open := s.state == StateOpen
		s.mu.Unlock()
		if open {
			s.getCallbacks().OnMessage(packet)
		}

	case parser.PacketTypePong, parser.PacketTypeNoop:
		s.mu.Unlock()

	default:
		s.mu.Unlock()
		s.getCallbacks().OnError(transport.NewProtocolError(
			transport.CodeBadRequest,
			fmt.Sprintf("unexpected %s packet", packet.Type),
			nil,
		))
	}
}

// Touch resets the heartbeat deadline. Polling requests count as traffic.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
}

// Send delivers the packets through whichever connection is active.
// The whole batch goes to a single connection, in order.
func (s *Session) Send(packets ...*parser.Packet) error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return ErrNotOpen
	}
	c := s.conn
	err := c.Send(packets...)
	s.mu.Unlock()

	if err != nil {
		s.Fail(c, ReasonError, err)
	}
	return err
}

// Close is an intentional close. The reason is recorded before anything
// else so that a concurrent transport failure cannot overwrite it.
func (s *Session) Close(reason Reason) {
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.reason = reason
	s.setStateLocked(StateClosing)
	if s.conn != nil {
		// Best effort. A polling connection delivers it with the pending exchange.
		_ = s.conn.Send(parser.MustNewPacket(parser.PacketTypeClose, nil))
	}
	s.mu.Unlock()

	s.debug.Log("Close", reason)
	s.shutdown(nil)
}

// Fail reports an abrupt failure of c. Failures of superseded connections are
// ignored, a failing upgrade candidate only cancels the upgrade.
func (s *Session) Fail(c Connection, reason Reason, err error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if c != nil && c == s.candidate {
		s.mu.Unlock()
		s.cancelUpgrade(c, &transport.ConnectionError{Transport: c.Type(), Err: err})
		return
	}
	if c != s.conn {
		s.mu.Unlock()
		return
	}
	if s.state != StateClosing {
		s.reason = reason
		s.setStateLocked(StateClosing)
	}
	s.mu.Unlock()

	s.debug.Log("Fail", reason, err)
	s.shutdown(err)
}

// shutdown moves the session to CLOSED. It runs at most once,
// whichever of close, failure and heartbeat expiry gets here first.
func (s *Session) shutdown(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.setStateLocked(StateClosed)
		if s.reason == "" {
			s.reason = ReasonUnknown
		}
		reason := s.reason
		conn, candidate := s.conn, s.candidate
		s.candidate = nil
		if s.heartbeat != nil {
			s.heartbeat.Stop()
		}
		if s.upgradeTimer != nil {
			s.upgradeTimer.Stop()
		}
		close(s.closed)
		s.mu.Unlock()

		if candidate != nil {
			candidate.Abort()
		}
		if conn != nil {
			conn.Abort()
		}

		s.onShutdown(s.id)
		s.debug.Log("Closed", reason)

		callbacks := s.getCallbacks()
		if err != nil && reason.IsAbrupt() {
			callbacks.OnError(err)
		}
		callbacks.OnClose(reason, err)
	})
}
