package sio

import (
	"net/http"
	"sync/atomic"
	"time"

	eio "github.com/karagenc/socketio-server/engine.io"
	"github.com/karagenc/socketio-server/parser"
	jsonparser "github.com/karagenc/socketio-server/parser/json"
	"github.com/karagenc/socketio-server/parser/json/serializer"
)

type (
	// Called once per connection, after the main namespace is connected and
	// before any packet is delivered.
	ConnectionCallback func(c *Conn)

	// Return an error to refuse a namespace. The error message is sent to
	// the client in a CONNECT_ERROR packet, or the whole object if it is a
	// *ConnectError. auth is nil if the client sent none.
	NamespaceAuthenticator func(c *Conn, namespace string, auth map[string]any) error
)

type ServerConfig struct {
	EIO eio.ServerConfig

	// Defaults to the JSON parser built from Serializer, MaxAttachments and
	// OnAttachmentError.
	ParserCreator parser.Creator

	// Defaults to fast.New().
	Serializer serializer.JSONSerializer

	// Maximum number of binary attachments per packet. 0 means no limit.
	MaxAttachments int

	// Called when a binary attachment given as an io.Reader fails mid-read.
	OnAttachmentError func(err error)

	// Decides whether a client may join a namespace other than "/".
	// By default every namespace is accepted.
	AcceptNamespace NamespaceAuthenticator

	// Called for Engine.IO and Socket.IO errors alike.
	OnError func(err error)

	// For debugging purposes. Leave it nil if it is of no use.
	// This only applies to Socket.IO. For Engine.IO, use EIO.Debugger.
	Debugger Debugger
}

type Server struct {
	eio           *eio.Server
	parserCreator parser.Creator

	acceptNamespace NamespaceAuthenticator
	onConnection    atomic.Value
	onError         func(err error)

	conns *connStore

	debug Debugger
}

func NewServer(config *ServerConfig) *Server {
	if config == nil {
		config = new(ServerConfig)
	}
	c := *config

	server := &Server{
		parserCreator:   c.ParserCreator,
		acceptNamespace: c.AcceptNamespace,
		onError:         c.OnError,
		conns:           newConnStore(),
	}

	if server.parserCreator == nil {
		server.parserCreator = jsonparser.NewCreator(&jsonparser.Config{
			Serializer:        c.Serializer,
			MaxAttachments:    c.MaxAttachments,
			OnAttachmentError: c.OnAttachmentError,
		})
	}
	if server.acceptNamespace == nil {
		server.acceptNamespace = func(c *Conn, namespace string, auth map[string]any) error { return nil }
	}
	if server.onError == nil {
		server.onError = func(err error) {}
	}
	if c.Debugger != nil {
		server.debug = c.Debugger.WithContext("[sio/server]")
	} else {
		server.debug = NewNoopDebugger()
	}
	server.OnConnection(nil)

	if c.EIO.OnError == nil {
		c.EIO.OnError = server.onError
	}
	server.eio = eio.NewServer(server.onSession, &c.EIO)
	return server
}

// OnConnection sets the handler for new connections. Register packet and
// disconnect handlers on the Conn from inside it.
func (s *Server) OnConnection(handler ConnectionCallback) {
	if handler == nil {
		handler = func(c *Conn) {}
	}
	s.onConnection.Store(handler)
}

func (s *Server) onSession(session *eio.Session) *eio.Callbacks {
	c, callbacks := newConn(s, session)
	s.conns.set(c)
	s.debug.Log("New connection", c.ID())
	return callbacks
}

// Conn looks up a live connection by its session ID.
func (s *Server) Conn(sid string) (*Conn, bool) { return s.conns.get(sid) }

func (s *Server) Conns() []*Conn { return s.conns.getAll() }

func (s *Server) ConnCount() int { return s.conns.len() }

func (s *Server) Run() error {
	return s.eio.Run()
}

func (s *Server) PollTimeout() time.Duration {
	return s.eio.PollTimeout()
}

func (s *Server) HTTPWriteTimeout() time.Duration {
	return s.eio.HTTPWriteTimeout()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.eio.ServeHTTP(w, r)
}

func (s *Server) IsClosed() bool {
	return s.eio.IsClosed()
}

// Close stops accepting connections and closes every open one.
func (s *Server) Close() error {
	return s.eio.Close()
}
