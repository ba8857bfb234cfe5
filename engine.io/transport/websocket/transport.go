package websocket

import (
	"net/http"
	"time"

	"github.com/karagenc/socketio-server/engine.io/session"
	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/internal/debug"
)

type Config struct {
	// Defaults to the nhooyr.io/websocket acceptor.
	Acceptor Acceptor

	// Maximum size of an inbound message in bytes. 0 means the acceptor's default.
	MaxBufferSize int64

	// Bound on every write. 0 means no timeout.
	WriteTimeout time.Duration

	// Errors that occur after the handshake response was written.
	OnError func(err error)

	Debugger debug.Debugger
}

// Transport accepts WebSocket connections, either to start a session or
// to upgrade one that is on polling.
type Transport struct {
	manager *session.Manager
	config  Config
	debug   debug.Debugger
}

var _ session.Transport = (*Transport)(nil)

func New(manager *session.Manager, config *Config) *Transport {
	if config == nil {
		config = new(Config)
	}
	c := *config
	if c.Acceptor == nil {
		c.Acceptor = NewNhooyrAcceptor(nil)
	}
	if c.OnError == nil {
		c.OnError = func(err error) {}
	}
	if c.Debugger == nil {
		c.Debugger = debug.NewNoop()
	}
	return &Transport{
		manager: manager,
		config:  c,
		debug:   c.Debugger.WithContext("[eio/websocket]"),
	}
}

func (t *Transport) Type() transport.Type { return transport.TypeWebSocket }

func (t *Transport) CreateConnection(s *session.Session) session.Connection {
	return newConn(s, t.config.WriteTimeout, t.debug.WithContext("[eio/websocket] "+s.ID()))
}

// Serve accepts the WebSocket and blocks until it is closed. Errors are
// returned only if nothing was written to w.
func (t *Transport) Serve(w http.ResponseWriter, r *http.Request, sid string) error {
	if r.Method != http.MethodGet {
		return transport.NewMethodError(transport.TypeWebSocket, r.Method)
	}
	if r.Header.Get("Sec-WebSocket-Key") == "" {
		return transport.NewProtocolError(transport.CodeBadRequest, "not a WebSocket handshake", nil)
	}

	s, created, err := t.manager.Resolve(sid)
	if err != nil {
		return err
	}
	if !created {
		tt, _ := s.TransportType()
		if s.State() != session.StateOpen || !tt.IsPolling() || s.IsUpgrading() {
			return transport.NewProtocolError(transport.CodeBadRequest, "session can't be upgraded", nil)
		}
	}

	c := t.CreateConnection(s).(*Conn)
	socket, err := t.config.Acceptor.Accept(w, r, t.config.MaxBufferSize)
	if err != nil {
		if created {
			s.Close(session.ReasonConnectFailed)
		}
		t.config.OnError(&transport.ConnectionError{Transport: transport.TypeWebSocket, Err: err})
		return nil
	}
	c.attach(socket)

	if created {
		// A session that starts on WebSocket has nothing to upgrade to.
		err = s.Open(c, nil)
	} else {
		err = s.BeginUpgrade(c)
		if err != nil {
			c.close(StatusNormalClosure, "")
		}
	}
	if err != nil {
		t.config.OnError(err)
		return nil
	}

	c.readLoop()
	return nil
}
