package polling

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/engine.io/session"
	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	xhr     *Transport
	jsonp   *Transport
	manager *session.Manager

	mu       sync.Mutex
	messages []string
}

func newTestServer(t *testing.T, config *Config) *testServer {
	ts := new(testServer)
	ts.manager = session.NewManager(&session.ManagerConfig{
		PingInterval: time.Minute,
		PingTimeout:  time.Minute,
		OnSession: func(s *session.Session) *session.Callbacks {
			return &session.Callbacks{
				OnMessage: func(packet *parser.Packet) {
					ts.mu.Lock()
					ts.messages = append(ts.messages, string(packet.Data))
					ts.mu.Unlock()
				},
			}
		},
	})
	if config == nil {
		config = &Config{
			PollTimeout:          200 * time.Millisecond,
			MaxBufferSize:        1024,
			Upgrades:             []string{"websocket"},
			CompressionThreshold: -1,
		}
	}
	var err error
	ts.xhr, err = New(ts.manager, transport.TypeXHRPolling, config)
	require.NoError(t, err)
	ts.jsonp, err = New(ts.manager, transport.TypeJSONPPolling, config)
	require.NoError(t, err)
	t.Cleanup(func() { ts.manager.CloseAll(session.ReasonServerShutdown) })
	return ts
}

func (ts *testServer) Serve(w http.ResponseWriter, r *http.Request, tt transport.Type, sid string) error {
	if tt == transport.TypeJSONPPolling {
		return ts.jsonp.Serve(w, r, sid)
	}
	return ts.xhr.Serve(w, r, sid)
}

func (ts *testServer) Messages() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.messages...)
}

func (ts *testServer) do(t *testing.T, method, target string, body string, tt transport.Type, sid string) (*httptest.ResponseRecorder, error) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	err := ts.Serve(rec, req, tt, sid)
	return rec, err
}

func (ts *testServer) handshake(t *testing.T) string {
	rec, err := ts.do(t, "GET", "/engine.io/?EIO=3&transport=polling", "", transport.TypeXHRPolling, "")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	packets, err := parser.DecodePayload(rec.Body.Bytes())
	require.NoError(t, err)
	require.NotEmpty(t, packets)

	hr, err := parser.ParseHandshakeResponse(packets[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"websocket"}, hr.Upgrades)
	return hr.SID
}

func TestNewRequiresPollTimeout(t *testing.T) {
	_, err := New(session.NewManager(nil), transport.TypeXHRPolling, &Config{})
	assert.Error(t, err)
}

func TestNewRequiresPollingType(t *testing.T) {
	_, err := New(session.NewManager(nil), transport.TypeWebSocket, &Config{PollTimeout: time.Second})
	assert.Error(t, err)
}

func TestCreateConnection(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.Equal(t, transport.TypeXHRPolling, ts.xhr.Type())
	assert.Equal(t, transport.TypeJSONPPolling, ts.jsonp.Type())

	s, err := ts.manager.CreateSession()
	require.NoError(t, err)
	defer s.Close(session.ReasonClosed)

	c := ts.jsonp.CreateConnection(s)
	assert.Equal(t, transport.TypeJSONPPolling, c.Type())
	require.NoError(t, s.Open(c, nil))
	assert.Equal(t, 1, c.(*Conn).Pending(), "handshake should wait for a GET")
}

func TestTransportMismatch(t *testing.T) {
	ts := newTestServer(t, nil)
	sid := ts.handshake(t)

	_, err := ts.do(t, "GET", "/engine.io/?EIO=3&transport=polling&j=0&sid="+sid, "", transport.TypeJSONPPolling, sid)
	var protoErr *transport.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, http.StatusBadRequest, protoErr.StatusCode())

	_, err = ts.do(t, "POST", "/engine.io/?EIO=3&transport=polling&j=0&sid="+sid, "d=2%3A4x", transport.TypeJSONPPolling, sid)
	require.ErrorAs(t, err, &protoErr)
	assert.Empty(t, ts.Messages())

	// The XHR session is untouched.
	s, _ := ts.manager.Session(sid)
	assert.Equal(t, session.StateOpen, s.State())
	tt, _ := s.TransportType()
	assert.Equal(t, transport.TypeXHRPolling, tt)
}

func TestHandshake(t *testing.T) {
	ts := newTestServer(t, nil)
	sid := ts.handshake(t)

	s, ok := ts.manager.Session(sid)
	require.True(t, ok)
	assert.Equal(t, session.StateOpen, s.State())
	tt, _ := s.TransportType()
	assert.Equal(t, transport.TypeXHRPolling, tt)
}

func TestHandshakeRequiresGET(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.do(t, "POST", "/engine.io/?EIO=3&transport=polling", "1:6", transport.TypeXHRPolling, "")

	var protoErr *transport.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, transport.CodeBadHandshakeMethod, protoErr.Code)
	assert.Equal(t, 0, ts.manager.Len())
}

func TestUnknownSID(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.do(t, "GET", "/engine.io/?EIO=3&transport=polling&sid=nope", "", transport.TypeXHRPolling, "nope")

	var protoErr *transport.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, transport.CodeUnknownSID, protoErr.Code)
	assert.Equal(t, http.StatusBadRequest, protoErr.StatusCode())
}

func TestPostAndPoll(t *testing.T) {
	ts := newTestServer(t, nil)
	sid := ts.handshake(t)
	target := "/engine.io/?EIO=3&transport=polling&sid=" + sid

	rec, err := ts.do(t, "POST", target, "6:4hello2:4:5:2ping", transport.TypeXHRPolling, sid)
	require.NoError(t, err)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"hello", ":"}, ts.Messages())

	s, _ := ts.manager.Session(sid)
	require.NoError(t, s.Send(parser.MustNewPacket(parser.PacketTypeMessage, []byte("world"))))

	rec, err = ts.do(t, "GET", target, "", transport.TypeXHRPolling, sid)
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=UTF-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "5:3ping6:4world", rec.Body.String())
}

func TestPollTimeoutAnswersNoop(t *testing.T) {
	ts := newTestServer(t, nil)
	sid := ts.handshake(t)

	start := time.Now()
	rec, err := ts.do(t, "GET", "/engine.io/?EIO=3&transport=polling&sid="+sid, "", transport.TypeXHRPolling, sid)
	require.NoError(t, err)
	assert.Equal(t, "1:6", rec.Body.String())
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestOverlappingGET(t *testing.T) {
	ts := newTestServer(t, &Config{
		PollTimeout:          5 * time.Second,
		Upgrades:             []string{"websocket"},
		CompressionThreshold: -1,
	})
	sid := ts.handshake(t)
	target := "/engine.io/?EIO=3&transport=polling&sid=" + sid
	s, _ := ts.manager.Session(sid)
	c := s.Connection().(*Conn)

	first := make(chan *httptest.ResponseRecorder)
	go func() {
		rec, _ := ts.do(t, "GET", target, "", transport.TypeXHRPolling, sid)
		first <- rec
	}()
	require.Eventually(t, func() bool {
		c.pq.mu.Lock()
		defer c.pq.mu.Unlock()
		return c.pq.polling
	}, time.Second, time.Millisecond)

	_, err := ts.do(t, "GET", target, "", transport.TypeXHRPolling, sid)
	var protoErr *transport.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, http.StatusBadRequest, protoErr.StatusCode())

	// The session and the first GET survive.
	require.NoError(t, s.Send(parser.MustNewPacket(parser.PacketTypeMessage, []byte("x"))))
	assert.Equal(t, "2:4x", (<-first).Body.String())
	assert.Equal(t, session.StateOpen, s.State())
}

func TestCancelledPollKeepsPackets(t *testing.T) {
	ts := newTestServer(t, &Config{
		PollTimeout:          5 * time.Second,
		Upgrades:             []string{"websocket"},
		CompressionThreshold: -1,
	})
	sid := ts.handshake(t)
	target := "/engine.io/?EIO=3&transport=polling&sid=" + sid

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest("GET", target, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	require.NoError(t, ts.Serve(rec, req, transport.TypeXHRPolling, sid))
	assert.Equal(t, 0, rec.Body.Len())

	s, _ := ts.manager.Session(sid)
	require.NoError(t, s.Send(parser.MustNewPacket(parser.PacketTypeMessage, []byte("kept"))))
	rec, err := ts.do(t, "GET", target, "", transport.TypeXHRPolling, sid)
	require.NoError(t, err)
	assert.Equal(t, "5:4kept", rec.Body.String())
}

func TestMalformedPost(t *testing.T) {
	ts := newTestServer(t, nil)
	sid := ts.handshake(t)

	tests := []string{
		"5:4hello",
		"abc",
		"3:9ab",
		":4a",
	}

	for _, body := range tests {
		_, err := ts.do(t, "POST", "/engine.io/?EIO=3&transport=polling&sid="+sid, body, transport.TypeXHRPolling, sid)
		var protoErr *transport.ProtocolError
		if assert.ErrorAs(t, err, &protoErr, body) {
			assert.ErrorIs(t, err, parser.ErrMalformed, body)
		}
	}

	// Nothing was delivered and the session is still usable.
	assert.Empty(t, ts.Messages())
	s, _ := ts.manager.Session(sid)
	assert.Equal(t, session.StateOpen, s.State())
}

func TestMaxBufferSize(t *testing.T) {
	ts := newTestServer(t, nil)
	sid := ts.handshake(t)

	body := "1025:4" + strings.Repeat("a", 1024)
	_, err := ts.do(t, "POST", "/engine.io/?EIO=3&transport=polling&sid="+sid, body, transport.TypeXHRPolling, sid)

	var protoErr *transport.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, protoErr.StatusCode())
	assert.Empty(t, ts.Messages())
}

func TestJSONP(t *testing.T) {
	ts := newTestServer(t, nil)

	rec, err := ts.do(t, "GET", "/engine.io/?EIO=3&transport=polling&j=3", "", transport.TypeJSONPPolling, "")
	require.NoError(t, err)
	assert.Equal(t, "text/javascript; charset=UTF-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, `___eio[3]('`), body)
	require.True(t, strings.HasSuffix(body, `');`), body)
	assert.Contains(t, body, `\"sid\"`)

	sid := ts.manager.Sessions()[0].ID()
	target := "/engine.io/?EIO=3&transport=polling&j=3&sid=" + sid

	// The client escapes newlines after computing the lengths.
	form := url.Values{"d": {"4:4a\\nb"}}.Encode()
	rec, err = ts.do(t, "POST", target, form, transport.TypeJSONPPolling, sid)
	require.NoError(t, err)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, []string{"a\nb"}, ts.Messages())
}

func TestJSONPInvalidIndex(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.do(t, "GET", "/engine.io/?EIO=3&transport=polling&j=alert(1)", "", transport.TypeJSONPPolling, "")

	var protoErr *transport.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, 0, ts.manager.Len())
}

func TestRetiredConnectionIsRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	sid := ts.handshake(t)
	s, _ := ts.manager.Session(sid)

	s.Close(session.ReasonClosed)
	_, err := ts.do(t, "GET", "/engine.io/?EIO=3&transport=polling&sid="+sid, "", transport.TypeXHRPolling, sid)
	var protoErr *transport.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, transport.CodeUnknownSID, protoErr.Code)
}
