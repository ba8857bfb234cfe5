package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	gorilla "github.com/gorilla/websocket"
	"nhooyr.io/websocket"
)

// Socket is an accepted WebSocket. Read is only called from the read loop,
// writes are serialized by the caller.
type Socket interface {
	Read(ctx context.Context) (binary bool, data []byte, err error)
	Write(ctx context.Context, binary bool, data []byte) error
	Close(code StatusCode, reason string) error

	// CloseStatus extracts the close code from an error returned by Read.
	CloseStatus(err error) StatusCode
}

// Acceptor completes the WebSocket handshake. On failure, it has already
// written the HTTP error response.
type Acceptor interface {
	Accept(w http.ResponseWriter, r *http.Request, readLimit int64) (Socket, error)
}

type nhooyrAcceptor struct {
	options *websocket.AcceptOptions
}

// NewNhooyrAcceptor is the default acceptor. options can be nil.
func NewNhooyrAcceptor(options *websocket.AcceptOptions) Acceptor {
	return &nhooyrAcceptor{options: options}
}

func (a *nhooyrAcceptor) Accept(w http.ResponseWriter, r *http.Request, readLimit int64) (Socket, error) {
	conn, err := websocket.Accept(w, r, a.options)
	if err != nil {
		return nil, err
	}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return &nhooyrSocket{conn: conn}, nil
}

type nhooyrSocket struct {
	conn *websocket.Conn
}

func (s *nhooyrSocket) Read(ctx context.Context) (bool, []byte, error) {
	mt, data, err := s.conn.Read(ctx)
	return mt == websocket.MessageBinary, data, err
}

func (s *nhooyrSocket) Write(ctx context.Context, binary bool, data []byte) error {
	mt := websocket.MessageText
	if binary {
		mt = websocket.MessageBinary
	}
	return s.conn.Write(ctx, mt, data)
}

func (s *nhooyrSocket) Close(code StatusCode, reason string) error {
	return s.conn.Close(websocket.StatusCode(code), reason)
}

func (s *nhooyrSocket) CloseStatus(err error) StatusCode {
	return StatusCode(websocket.CloseStatus(err))
}

type gorillaAcceptor struct {
	upgrader *gorilla.Upgrader
}

// NewGorillaAcceptor uses gorilla/websocket. upgrader can be nil.
func NewGorillaAcceptor(upgrader *gorilla.Upgrader) Acceptor {
	if upgrader == nil {
		upgrader = new(gorilla.Upgrader)
	}
	return &gorillaAcceptor{upgrader: upgrader}
}

func (a *gorillaAcceptor) Accept(w http.ResponseWriter, r *http.Request, readLimit int64) (Socket, error) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return &gorillaSocket{conn: conn}, nil
}

type gorillaSocket struct {
	conn *gorilla.Conn
}

// gorilla/websocket has no context support. Cancellation happens through Close.
func (s *gorillaSocket) Read(_ context.Context) (bool, []byte, error) {
	mt, data, err := s.conn.ReadMessage()
	return mt == gorilla.BinaryMessage, data, err
}

func (s *gorillaSocket) Write(ctx context.Context, binary bool, data []byte) error {
	mt := gorilla.TextMessage
	if binary {
		mt = gorilla.BinaryMessage
	}
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	}
	return s.conn.WriteMessage(mt, data)
}

const gorillaCloseTimeout = time.Second

func (s *gorillaSocket) Close(code StatusCode, reason string) error {
	msg := gorilla.FormatCloseMessage(int(code), reason)
	err := s.conn.WriteControl(gorilla.CloseMessage, msg, time.Now().Add(gorillaCloseTimeout))
	if err != nil && !errors.Is(err, gorilla.ErrCloseSent) {
		s.conn.Close()
		return err
	}
	return s.conn.Close()
}

func (s *gorillaSocket) CloseStatus(err error) StatusCode {
	var closeErr *gorilla.CloseError
	if errors.As(err, &closeErr) {
		return StatusCode(closeErr.Code)
	}
	return statusNone
}
