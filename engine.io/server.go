package eio

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/karagenc/socketio-server/engine.io/session"
	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/engine.io/transport/polling"
	"github.com/karagenc/socketio-server/engine.io/transport/websocket"
	"github.com/karagenc/socketio-server/internal/sync"
)

type AuthFunc func(w http.ResponseWriter, r *http.Request) (ok bool)

type ServerConfig struct {
	// This is a middleware function to authenticate clients before doing the handshake.
	// If this function returns false authentication will fail. Or else, the handshake will begin as usual.
	Authenticator AuthFunc

	// How often the client is told to send PING packets.
	PingInterval time.Duration

	// A session without any traffic for this long is closed.
	PingTimeout time.Duration

	// How long a probe may take before the upgrade is abandoned.
	UpgradeTimeout time.Duration

	// How long a polling GET is held open when there's nothing to send.
	// Defaults to PingInterval.
	PollTimeout time.Duration

	// MaxBufferSize is used for preventing DOS.
	// This is the equivalent of maxHTTPBufferSize.
	MaxBufferSize        int64
	DisableMaxBufferSize bool

	// Bound on every WebSocket write.
	WriteTimeout time.Duration

	// Defaults to websocket.NewNhooyrAcceptor(nil).
	WebSocketAcceptor websocket.Acceptor

	DisableJSONP     bool
	DisableWebSocket bool

	// Gzip polling responses larger than CompressionThreshold bytes.
	HTTPCompression      bool
	CompressionThreshold int

	// Defaults to session.Base64IDGenerator.
	IDGenerator session.IDGenerator

	// Callback function for Engine.IO server errors.
	// You may use this function to log server errors.
	OnError ErrorCallback

	// For debugging purposes. Leave it nil if it is of no use.
	Debugger Debugger
}

type Server struct {
	authenticator AuthFunc

	pingInterval   time.Duration
	pingTimeout    time.Duration
	upgradeTimeout time.Duration
	pollTimeout    time.Duration

	config  ServerConfig
	onError ErrorCallback

	manager    *session.Manager
	transports map[transport.Type]session.Transport

	closed    chan struct{}
	closeOnce sync.Once

	debug Debugger
}

// NewServer creates an Engine.IO server. If onSession is nil, every new
// connection is answered with 503 Service Unavailable.
func NewServer(onSession NewSessionCallback, config *ServerConfig) *Server {
	if config == nil {
		config = new(ServerConfig)
	}
	c := *config

	s := &Server{
		authenticator: c.Authenticator,

		pingInterval:   c.PingInterval,
		pingTimeout:    c.PingTimeout,
		upgradeTimeout: c.UpgradeTimeout,
		pollTimeout:    c.PollTimeout,

		onError: c.OnError,
		closed:  make(chan struct{}),
	}

	if s.authenticator == nil {
		s.authenticator = func(w http.ResponseWriter, r *http.Request) (ok bool) { return true }
	}
	if s.pingInterval == 0 {
		s.pingInterval = defaultPingInterval
	}
	if s.pingTimeout == 0 {
		s.pingTimeout = defaultPingTimeout
	}
	if s.upgradeTimeout == 0 {
		s.upgradeTimeout = defaultUpgradeTimeout
	}
	if s.pollTimeout == 0 {
		s.pollTimeout = s.pingInterval
	}

	if c.DisableMaxBufferSize {
		c.MaxBufferSize = 0
	} else if c.MaxBufferSize == 0 {
		c.MaxBufferSize = defaultMaxBufferSize
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.CompressionThreshold == 0 {
		c.CompressionThreshold = defaultCompressionThreshold
	}
	if !c.HTTPCompression {
		c.CompressionThreshold = -1
	}
	if c.Debugger == nil {
		c.Debugger = NewNoopDebugger()
	}
	if s.onError == nil {
		s.onError = func(err error) {}
	}
	s.config = c
	s.debug = c.Debugger.WithContext("[eio/server]")

	s.manager = session.NewManager(&session.ManagerConfig{
		PingInterval:   s.pingInterval,
		PingTimeout:    s.pingTimeout,
		UpgradeTimeout: s.upgradeTimeout,
		IDGenerator:    c.IDGenerator,
		OnSession:      onSession,
		Debugger:       c.Debugger,
	})
	return s
}

// Run validates the configuration and builds the transports.
// It must be called before the server is used.
func (s *Server) Run() error {
	if s.IsClosed() {
		return fmt.Errorf("eio: server is closed. an engine.io server cannot be restarted")
	}
	if s.pingInterval < 1*time.Second {
		return fmt.Errorf("eio: pingInterval must be equal or greater than 1 second")
	}
	if s.pingTimeout < 1*time.Second {
		return fmt.Errorf("eio: pingTimeout must be equal or greater than 1 second")
	}
	if s.upgradeTimeout < 1*time.Second {
		return fmt.Errorf("eio: upgradeTimeout must be equal or greater than 1 second")
	}
	if s.pollTimeout >= s.pingTimeout {
		return fmt.Errorf("eio: pollTimeout must be less than pingTimeout")
	}
	if s.config.MaxBufferSize < 0 {
		return fmt.Errorf("eio: maxBufferSize cannot be negative")
	}

	var upgrades []string
	if !s.config.DisableWebSocket {
		upgrades = []string{transport.TypeWebSocket.Name()}
	}

	pollingConfig := &polling.Config{
		PollTimeout:          s.pollTimeout,
		MaxBufferSize:        s.config.MaxBufferSize,
		Upgrades:             upgrades,
		CompressionThreshold: s.config.CompressionThreshold,
		Debugger:             s.config.Debugger,
	}
	pollingTypes := []transport.Type{transport.TypeXHRPolling}
	if !s.config.DisableJSONP {
		pollingTypes = append(pollingTypes, transport.TypeJSONPPolling)
	}

	transports := make(map[transport.Type]session.Transport)
	for _, t := range pollingTypes {
		pt, err := polling.New(s.manager, t, pollingConfig)
		if err != nil {
			return err
		}
		transports[t] = pt
	}
	if !s.config.DisableWebSocket {
		transports[transport.TypeWebSocket] = websocket.New(s.manager, &websocket.Config{
			Acceptor:      s.config.WebSocketAcceptor,
			MaxBufferSize: s.config.MaxBufferSize,
			WriteTimeout:  s.config.WriteTimeout,
			OnError:       s.onError,
			Debugger:      s.config.Debugger,
		})
	}
	s.transports = transports
	return nil
}

func (s *Server) PollTimeout() time.Duration { return s.pollTimeout }

func (s *Server) HTTPWriteTimeout() time.Duration {
	// Add a reasonable time (10 seconds) so that if PollTimeout is reached, we can still write the HTTP response.
	return s.PollTimeout() + 10*time.Second
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	version, err := strconv.Atoi(q.Get("EIO"))
	if err != nil || version != ProtocolVersion {
		s.writeError(w, transport.NewProtocolError(transport.CodeUnsupportedProtocolVersion, "unsupported protocol version", err))
		return
	}

	_, hasJSONPIndex := q["j"]
	t, err := transport.ParseType(q.Get("transport"), hasJSONPIndex)
	if err != nil {
		s.writeError(w, err)
		return
	}
	tr, ok := s.transports[t]
	if !ok {
		s.writeError(w, &transport.UnsupportedTransportError{Name: t.String()})
		return
	}

	sid := q.Get("sid")
	if sid == "" {
		if s.IsClosed() {
			s.writeError(w, transport.ErrNoHandler)
			return
		}
		if !s.authenticator(w, r) {
			s.writeError(w, &transport.ProtocolError{
				Message: "authentication failed",
				Code:    transport.CodeForbidden,
				Status:  http.StatusForbidden,
			})
			return
		}
	}

	err = tr.Serve(w, r, sid)
	if err != nil {
		s.writeError(w, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.debug.Log("Request failed", err)
	expected := writeServerError(w, err)
	if !expected {
		err = wrapInternalError(err)
	}
	s.onError(err)
}

// Session looks up an open session.
func (s *Server) Session(sid string) (*Session, bool) { return s.manager.Session(sid) }

// SessionCount is the number of sessions in the registry.
func (s *Server) SessionCount() int { return s.manager.Len() }

func (s *Server) IsClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *Server) Close() error {
	// Prevent new clients from connecting.
	s.closeOnce.Do(func() {
		close(s.closed)
	})

	// Close all sessions that are currently connected.
	return s.manager.CloseAll(ReasonServerShutdown)
}
