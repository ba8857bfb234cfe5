package websocket

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/engine.io/session"
	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/engine.io/transport/polling"
	"github.com/karagenc/socketio-server/internal/utils"
	"github.com/madflojo/testcerts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type closeResult struct {
	reason session.Reason
	err    error
}

type testEnv struct {
	manager  *session.Manager
	ws       *Transport
	polling  *polling.Transport
	server   *httptest.Server
	sessions chan *session.Session
	messages chan *parser.Packet
	closes   chan closeResult
}

func newTestEnv(t *testing.T, acceptor Acceptor, tlsEnabled bool) *testEnv {
	env := &testEnv{
		sessions: make(chan *session.Session, 10),
		messages: make(chan *parser.Packet, 100),
		closes:   make(chan closeResult, 10),
	}
	env.manager = session.NewManager(&session.ManagerConfig{
		PingInterval:   time.Minute,
		PingTimeout:    time.Minute,
		UpgradeTimeout: 5 * time.Second,
		OnSession: func(s *session.Session) *session.Callbacks {
			env.sessions <- s
			return &session.Callbacks{
				OnMessage: func(packet *parser.Packet) { env.messages <- packet },
				OnClose: func(reason session.Reason, err error) {
					env.closes <- closeResult{reason: reason, err: err}
				},
			}
		},
	})
	env.ws = New(env.manager, &Config{
		Acceptor:      acceptor,
		MaxBufferSize: 1024,
		WriteTimeout:  5 * time.Second,
	})

	var err error
	env.polling, err = polling.New(env.manager, transport.TypeXHRPolling, &polling.Config{
		PollTimeout:          5 * time.Second,
		Upgrades:             []string{"websocket"},
		CompressionThreshold: -1,
	})
	require.NoError(t, err)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var err error
		if q.Get("transport") == "polling" {
			err = env.polling.Serve(w, r, q.Get("sid"))
		} else {
			err = env.ws.Serve(w, r, q.Get("sid"))
		}
		if err != nil {
			status := http.StatusBadRequest
			if e, ok := err.(interface{ StatusCode() int }); ok {
				status = e.StatusCode()
			}
			http.Error(w, err.Error(), status)
		}
	})

	if tlsEnabled {
		certFile, keyFile, err := testcerts.GenerateCertsToTempFile(os.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() {
			os.Remove(certFile)
			os.Remove(keyFile)
		})
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		require.NoError(t, err)

		env.server = httptest.NewUnstartedServer(h)
		env.server.TLS = &tls.Config{Certificates: []tls.Certificate{cert}}
		env.server.StartTLS()
	} else {
		env.server = httptest.NewServer(h)
	}

	t.Cleanup(func() {
		env.manager.CloseAll(session.ReasonServerShutdown)
		env.server.Close()
	})
	return env
}

func (env *testEnv) dial(t *testing.T, sid string) *websocket.Conn {
	u := env.server.URL + "/engine.io/?EIO=3&transport=websocket"
	if sid != "" {
		u += "&sid=" + sid
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{HTTPClient: client})
	require.NoError(t, err)
	return conn
}

func (env *testEnv) nextSession(t *testing.T) *session.Session {
	select {
	case s := <-env.sessions:
		return s
	case <-time.After(utils.DefaultTestWaitTimeout):
		t.Fatal("timeout exceeded")
		return nil
	}
}

func (env *testEnv) nextMessage(t *testing.T) *parser.Packet {
	select {
	case p := <-env.messages:
		return p
	case <-time.After(utils.DefaultTestWaitTimeout):
		t.Fatal("timeout exceeded")
		return nil
	}
}

func (env *testEnv) nextClose(t *testing.T) closeResult {
	select {
	case c := <-env.closes:
		return c
	case <-time.After(utils.DefaultTestWaitTimeout):
		t.Fatal("timeout exceeded")
		return closeResult{}
	}
}

func read(t *testing.T, conn *websocket.Conn) (websocket.MessageType, []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mt, data, err := conn.Read(ctx)
	require.NoError(t, err)
	return mt, data
}

func write(t *testing.T, conn *websocket.Conn, mt websocket.MessageType, data string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, mt, []byte(data)))
}

var acceptors = map[string]func() Acceptor{
	"nhooyr":  func() Acceptor { return NewNhooyrAcceptor(nil) },
	"gorilla": func() Acceptor { return NewGorillaAcceptor(nil) },
}

func TestWebSocketSession(t *testing.T) {
	for name, newAcceptor := range acceptors {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, newAcceptor(), false)
			conn := env.dial(t, "")
			defer conn.Close(websocket.StatusNormalClosure, "")

			mt, data := read(t, conn)
			assert.Equal(t, websocket.MessageText, mt)
			packet, err := parser.Decode(data)
			require.NoError(t, err)
			hr, err := parser.ParseHandshakeResponse(packet)
			require.NoError(t, err)
			assert.Empty(t, hr.Upgrades)

			s := env.nextSession(t)
			assert.Equal(t, hr.SID, s.ID())

			write(t, conn, websocket.MessageText, "2")
			_, data = read(t, conn)
			assert.Equal(t, "3", string(data))

			write(t, conn, websocket.MessageText, "4hello")
			p := env.nextMessage(t)
			assert.False(t, p.IsBinary)
			assert.Equal(t, "hello", string(p.Data))

			write(t, conn, websocket.MessageBinary, "\x04\x01\x02\x03")
			p = env.nextMessage(t)
			assert.True(t, p.IsBinary)
			assert.Equal(t, []byte{1, 2, 3}, p.Data)

			binary, err := parser.NewPacket(parser.PacketTypeMessage, true, []byte{9, 8})
			require.NoError(t, err)
			require.NoError(t, s.Send(binary))
			mt, data = read(t, conn)
			assert.Equal(t, websocket.MessageBinary, mt)
			assert.Equal(t, []byte{4, 9, 8}, data)

			require.NoError(t, conn.Close(websocket.StatusGoingAway, ""))
			c := env.nextClose(t)
			assert.Equal(t, session.ReasonClientGone, c.reason)
			assert.NoError(t, c.err)
			assert.Eventually(t, func() bool { return env.manager.Len() == 0 }, time.Second, 5*time.Millisecond)
		})
	}
}

func TestWebSocketMalformedFrame(t *testing.T) {
	for name, newAcceptor := range acceptors {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, newAcceptor(), false)
			conn := env.dial(t, "")
			read(t, conn)

			write(t, conn, websocket.MessageText, "9oops")

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _, err := conn.Read(ctx)
			assert.Equal(t, websocket.StatusProtocolError, websocket.CloseStatus(err))

			c := env.nextClose(t)
			assert.Equal(t, session.ReasonError, c.reason)
			var protoErr *transport.ProtocolError
			assert.ErrorAs(t, c.err, &protoErr)
		})
	}
}

func TestWebSocketClosePacket(t *testing.T) {
	env := newTestEnv(t, nil, false)
	conn := env.dial(t, "")
	read(t, conn)

	write(t, conn, websocket.MessageText, "1")
	c := env.nextClose(t)
	assert.Equal(t, session.ReasonClosedRemotely, c.reason)
	assert.False(t, c.reason.IsAbrupt())
}

func TestWebSocketServerClose(t *testing.T) {
	env := newTestEnv(t, nil, false)
	conn := env.dial(t, "")
	read(t, conn)
	s := env.nextSession(t)

	s.Close(session.ReasonClosed)
	_, data := read(t, conn)
	assert.Equal(t, "1", string(data))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
	assert.Equal(t, session.ReasonClosed, env.nextClose(t).reason)
}

func TestWebSocketRejections(t *testing.T) {
	env := newTestEnv(t, nil, false)
	tr := env.ws

	tests := []struct {
		name   string
		method string
		key    string
		sid    string
		status int
	}{
		{"method", "POST", "dGhlIHNhbXBsZSBub25jZQ==", "", http.StatusMethodNotAllowed},
		{"no handshake", "GET", "", "", http.StatusBadRequest},
		{"unknown sid", "GET", "dGhlIHNhbXBsZSBub25jZQ==", "nope", http.StatusBadRequest},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			req := httptest.NewRequest(test.method, "/engine.io/?EIO=3&transport=websocket", nil)
			if test.key != "" {
				req.Header.Set("Sec-WebSocket-Key", test.key)
			}
			err := tr.Serve(httptest.NewRecorder(), req, test.sid)
			require.Error(t, err)
			status := err.(interface{ StatusCode() int }).StatusCode()
			assert.Equal(t, test.status, status)
		})
	}
	assert.Equal(t, 0, env.manager.Len())
}

func pollGET(t *testing.T, env *testEnv, sid string) string {
	u := env.server.URL + "/engine.io/?EIO=3&transport=polling"
	if sid != "" {
		u += "&sid=" + sid
	}
	resp, err := env.server.Client().Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var b bytes.Buffer
	_, err = b.ReadFrom(resp.Body)
	require.NoError(t, err)
	return b.String()
}

func TestUpgradeFromPolling(t *testing.T) {
	env := newTestEnv(t, nil, false)

	packets, err := parser.DecodePayload([]byte(pollGET(t, env, "")))
	require.NoError(t, err)
	hr, err := parser.ParseHandshakeResponse(packets[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"websocket"}, hr.Upgrades)
	s := env.nextSession(t)

	conn := env.dial(t, hr.SID)
	defer conn.Close(websocket.StatusNormalClosure, "")

	write(t, conn, websocket.MessageText, "2probe")
	_, data := read(t, conn)
	assert.Equal(t, "3probe", string(data))

	// The pending poll is completed so that the client can pause polling.
	assert.Equal(t, "1:6", pollGET(t, env, hr.SID))

	// Sent while the upgrade is in progress; must arrive once, over WebSocket.
	require.NoError(t, s.Send(parser.MustNewPacket(parser.PacketTypeMessage, []byte("during"))))

	write(t, conn, websocket.MessageText, "5")
	require.Eventually(t, func() bool {
		tt, _ := s.TransportType()
		return tt == transport.TypeWebSocket
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Send(parser.MustNewPacket(parser.PacketTypeMessage, []byte("after"))))

	_, data = read(t, conn)
	assert.Equal(t, "4during", string(data))
	_, data = read(t, conn)
	assert.Equal(t, "4after", string(data))

	write(t, conn, websocket.MessageText, "4up")
	assert.Equal(t, "up", string(env.nextMessage(t).Data))

	// Polling is over for this session.
	resp, err := env.server.Client().Get(env.server.URL + "/engine.io/?EIO=3&transport=polling&sid=" + hr.SID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpgradeProbeFailure(t *testing.T) {
	env := newTestEnv(t, nil, false)

	packets, err := parser.DecodePayload([]byte(pollGET(t, env, "")))
	require.NoError(t, err)
	hr, err := parser.ParseHandshakeResponse(packets[0])
	require.NoError(t, err)
	s := env.nextSession(t)

	conn := env.dial(t, hr.SID)
	require.Eventually(t, s.IsUpgrading, 5*time.Second, 5*time.Millisecond)
	conn.Close(websocket.StatusGoingAway, "")

	require.Eventually(t, func() bool { return !s.IsUpgrading() }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, session.StateOpen, s.State())
	tt, _ := s.TransportType()
	assert.Equal(t, transport.TypeXHRPolling, tt)
}

func TestWebSocketTLS(t *testing.T) {
	env := newTestEnv(t, nil, true)
	require.True(t, strings.HasPrefix(env.server.URL, "https://"))

	conn := env.dial(t, "")
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data := read(t, conn)
	packet, err := parser.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, parser.PacketTypeOpen, packet.Type)

	write(t, conn, websocket.MessageText, "4secure")
	assert.Equal(t, "secure", string(env.nextMessage(t).Data))
}

func TestReasonFor(t *testing.T) {
	assert.Equal(t, session.ReasonClosed, reasonFor(StatusNormalClosure))
	assert.Equal(t, session.ReasonClientGone, reasonFor(StatusGoingAway))
	assert.Equal(t, session.ReasonClientGone, reasonFor(statusNone))
	assert.Equal(t, session.ReasonError, reasonFor(StatusMessageTooBig))
	assert.False(t, isExpected(StatusInternalError))
}

func TestWebSocketCreateConnection(t *testing.T) {
	env := newTestEnv(t, nil, false)
	assert.Equal(t, transport.TypeWebSocket, env.ws.Type())

	s, err := env.manager.CreateSession()
	require.NoError(t, err)
	defer s.Close(session.ReasonClosed)

	// Nothing can be written until a socket is attached.
	c := env.ws.CreateConnection(s)
	assert.Equal(t, transport.TypeWebSocket, c.Type())
	assert.ErrorIs(t, c.Send(parser.MustNewPacket(parser.PacketTypeNoop, nil)), transport.ErrConnectionClosed)
	assert.Nil(t, c.Retire())
	c.Abort()
}
