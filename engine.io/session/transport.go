package session

import (
	"net/http"

	"github.com/karagenc/socketio-server/engine.io/transport"
)

// Transport is one way of carrying sessions over HTTP: XHR polling, JSONP
// polling or WebSocket.
type Transport interface {
	Type() transport.Type

	// CreateConnection binds a new connection of this transport to s. The
	// connection is not used by s until it is opened or upgraded to.
	CreateConnection(s *Session) Connection

	// Serve handles a single request. An empty sid starts a new session.
	// Errors are returned only if nothing was written to w.
	Serve(w http.ResponseWriter, r *http.Request, sid string) error
}
