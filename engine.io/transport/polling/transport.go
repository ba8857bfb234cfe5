package polling

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/engine.io/session"
	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/internal/debug"
)

type Config struct {
	// How long a GET waits for packets before it's answered with a NOOP.
	PollTimeout time.Duration

	// Maximum size of a POST body in bytes. 0 means no limit.
	MaxBufferSize int64

	// Sent in the handshake.
	Upgrades []string

	// Responses smaller than this aren't compressed. Negative disables compression.
	CompressionThreshold int

	Debugger debug.Debugger
}

// Transport serves either XHR or JSONP polling requests. Connections
// created here are owned by the sessions of the manager.
type Transport struct {
	t        transport.Type
	manager  *session.Manager
	config   Config
	compress func(http.Handler) http.Handler
	debug    debug.Debugger
}

var _ session.Transport = (*Transport)(nil)

// New creates the polling transport of type t, which is either
// transport.TypeXHRPolling or transport.TypeJSONPPolling.
func New(manager *session.Manager, t transport.Type, config *Config) (*Transport, error) {
	if !t.IsPolling() {
		return nil, fmt.Errorf("polling: %s is not a polling transport", t)
	}
	if config == nil {
		config = new(Config)
	}
	c := *config
	if c.PollTimeout <= 0 {
		return nil, fmt.Errorf("polling: PollTimeout must be positive")
	}
	if c.Debugger == nil {
		c.Debugger = debug.NewNoop()
	}

	compress, err := newCompressor(c.CompressionThreshold)
	if err != nil {
		return nil, err
	}

	return &Transport{
		t:        t,
		manager:  manager,
		config:   c,
		compress: compress,
		debug:    c.Debugger.WithContext("[eio/" + t.String() + "]"),
	}, nil
}

func (t *Transport) Type() transport.Type { return t.t }

func (t *Transport) CreateConnection(s *session.Session) session.Connection {
	return newConn(t.t, s)
}

// Serve handles a single polling exchange. An empty sid starts a handshake.
// Errors are returned before anything was written to w.
func (t *Transport) Serve(w http.ResponseWriter, r *http.Request, sid string) (err error) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err = t.serve(w, r, sid)
	})
	if r.Method == http.MethodGet {
		t.compress(h).ServeHTTP(w, r)
	} else {
		h.ServeHTTP(w, r)
	}
	return
}

func (t *Transport) serve(w http.ResponseWriter, r *http.Request, sid string) error {
	jsonp := ""
	if t.t == transport.TypeJSONPPolling {
		jsonp = r.URL.Query().Get("j")
		if _, err := strconv.Atoi(jsonp); err != nil {
			return transport.NewProtocolError(transport.CodeBadRequest, "invalid JSONP index", err)
		}
	}

	if sid == "" && r.Method != http.MethodGet {
		return &transport.ProtocolError{
			Message: "bad handshake method",
			Code:    transport.CodeBadHandshakeMethod,
			Status:  http.StatusBadRequest,
		}
	}

	s, created, err := t.manager.Resolve(sid)
	if err != nil {
		return err
	}
	if created {
		c := t.CreateConnection(s).(*Conn)
		err = s.Open(c, t.config.Upgrades)
		if err != nil {
			return err
		}
		return t.handlePollRequest(w, r, c, jsonp)
	}

	c, ok := s.Connection().(*Conn)
	if !ok {
		return transport.NewProtocolError(transport.CodeBadRequest, "session is not on a polling transport", nil)
	}
	if c.t != t.t {
		return transport.NewProtocolError(transport.CodeBadRequest, fmt.Sprintf("session is on %s, not %s", c.t, t.t), nil)
	}
	s.Touch()

	switch r.Method {
	case http.MethodGet:
		return t.handlePollRequest(w, r, c, jsonp)
	case http.MethodPost:
		return t.handleDataRequest(w, r, c, jsonp)
	}
	return transport.NewMethodError(t.t, r.Method)
}

func setHeaders(w http.ResponseWriter, r *http.Request) {
	wh := w.Header()
	userAgent := r.UserAgent()
	if strings.Contains(userAgent, ";MSIE") || strings.Contains(userAgent, "Trident/") {
		wh.Set("X-XSS-Protection", "0")
	}
}

func writeJSONPBody(w io.Writer, jsonp string, packets []*parser.Packet) error {
	_, err := io.WriteString(w, "___eio["+jsonp+"]('")
	if err != nil {
		return err
	}
	template.JSEscape(w, parser.EncodePayloadBytes(packets...))
	_, err = io.WriteString(w, "');")
	return err
}

func (t *Transport) handlePollRequest(w http.ResponseWriter, r *http.Request, c *Conn, jsonp string) error {
	packets, err := c.pq.poll(r.Context(), t.config.PollTimeout)
	if err != nil {
		if errors.Is(err, errAlreadyPolling) {
			return transport.NewProtocolError(transport.CodeBadRequest, "overlapping GET requests", err)
		}
		// The client went away. Nothing was taken from the queue.
		t.debug.Log("Poll cancelled", c.session.ID(), err)
		return nil
	}
	if len(packets) == 0 {
		packets = []*parser.Packet{parser.MustNewPacket(parser.PacketTypeNoop, nil)}
	}

	var body []byte
	wh := w.Header()
	setHeaders(w, r)

	if jsonp == "" {
		body = parser.EncodePayloadBytes(packets...)
		wh.Set("Content-Type", "text/plain; charset=UTF-8")
	} else {
		var buf bytes.Buffer
		// Can't fail: bytes.Buffer never returns an error.
		_ = writeJSONPBody(&buf, jsonp, packets)
		body = buf.Bytes()
		wh.Set("Content-Type", "text/javascript; charset=UTF-8")
	}

	wh.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	if err != nil {
		c.session.Fail(c, session.ReasonClientGone, err)
	}
	return nil
}

var (
	slashReplacer = strings.NewReplacer("\\n", "\n", "\\\\n", "\\n")
	ok            = []byte("ok")
)

func (t *Transport) handleDataRequest(w http.ResponseWriter, r *http.Request, c *Conn, jsonp string) error {
	body := r.Body
	if t.config.MaxBufferSize > 0 {
		body = http.MaxBytesReader(w, r.Body, t.config.MaxBufferSize)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return &transport.ProtocolError{
				Message: "maximum buffer size exceeded",
				Code:    transport.CodeBadRequest,
				Status:  http.StatusRequestEntityTooLarge,
				Err:     err,
			}
		}
		return transport.NewProtocolError(transport.CodeBadRequest, "failed to read the body", err)
	}

	if jsonp != "" {
		form, err := url.ParseQuery(string(data))
		if err != nil {
			return transport.NewProtocolError(transport.CodeBadRequest, "invalid JSONP form", err)
		}
		data = []byte(slashReplacer.Replace(form.Get("d")))
	}

	packets, err := parser.DecodePayload(data)
	if err != nil {
		return transport.NewProtocolError(transport.CodeBadRequest, "malformed payload", err)
	}

	c.session.OnPacket(c, packets...)

	setHeaders(w, r)
	wh := w.Header()

	// text/html is required instead of text/plain to avoid an
	// unwanted download dialog on certain user-agents (GH-43)
	wh.Set("Content-Type", "text/html")
	wh.Set("Content-Length", "2")
	w.WriteHeader(http.StatusOK)
	w.Write(ok)
	return nil
}
