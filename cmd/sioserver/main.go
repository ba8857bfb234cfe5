// Command sioserver serves Socket.IO (protocol 4 over Engine.IO 3) and echoes
// every event back to its sender.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gorilla "github.com/gorilla/websocket"
	sio "github.com/karagenc/socketio-server"
	eio "github.com/karagenc/socketio-server/engine.io"
	"github.com/karagenc/socketio-server/engine.io/session"
	"github.com/karagenc/socketio-server/engine.io/transport/websocket"
	"github.com/karagenc/socketio-server/parser/json/serializer"
	"github.com/karagenc/socketio-server/parser/json/serializer/fast"
	gojson "github.com/karagenc/socketio-server/parser/json/serializer/go-json"
	"github.com/karagenc/socketio-server/parser/json/serializer/stdjson"
	"github.com/spf13/pflag"
	nhooyr "nhooyr.io/websocket"
)

type options struct {
	addr           string
	path           string
	pingInterval   time.Duration
	pingTimeout    time.Duration
	pollTimeout    time.Duration
	compress       bool
	wsImpl         string
	jsonImpl       string
	uuid           bool
	maxAttachments int
	allowOrigin    string
	debug          bool
	tlsCert        string
	tlsKey         string
}

func parseFlags(args []string) (*options, error) {
	o := new(options)
	f := pflag.NewFlagSet("sioserver", pflag.ContinueOnError)
	f.StringVarP(&o.addr, "addr", "a", "127.0.0.1:3000", "Address to listen on")
	f.StringVar(&o.path, "path", "/socket.io/", "Path the server is mounted on")
	f.DurationVar(&o.pingInterval, "ping-interval", 25*time.Second, "How often clients ping")
	f.DurationVar(&o.pingTimeout, "ping-timeout", 60*time.Second, "Silence after which a session is closed")
	f.DurationVar(&o.pollTimeout, "poll-timeout", 0, "How long a long-poll is held (defaults to the ping interval)")
	f.BoolVarP(&o.compress, "compress", "z", false, "Gzip polling responses")
	f.StringVar(&o.wsImpl, "ws-impl", "nhooyr", "WebSocket implementation: nhooyr or gorilla")
	f.StringVar(&o.jsonImpl, "json", "fast", "JSON serializer: fast, go-json or stdjson")
	f.BoolVar(&o.uuid, "uuid", false, "Use UUIDs as session IDs")
	f.IntVar(&o.maxAttachments, "max-attachments", 10, "Maximum binary attachments per packet (0 is unlimited)")
	f.StringVar(&o.allowOrigin, "allow-origin", "", "Origin allowed by CORS and by the WebSocket handshake")
	f.BoolVarP(&o.debug, "debug", "d", false, "Print debug output")
	f.StringVar(&o.tlsCert, "tls-cert", "", "TLS certificate file")
	f.StringVar(&o.tlsKey, "tls-key", "", "TLS key file")
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	if (o.tlsCert == "") != (o.tlsKey == "") {
		return nil, errors.New("--tls-cert and --tls-key must be given together")
	}
	if !strings.HasSuffix(o.path, "/") {
		// Otherwise requests might match files with a socket.io prefix (such as socket.io.min.js).
		o.path += "/"
	}
	if o.allowOrigin != "" && !strings.HasPrefix(o.allowOrigin, "http://") && !strings.HasPrefix(o.allowOrigin, "https://") {
		if o.tlsCert != "" {
			o.allowOrigin = "https://" + o.allowOrigin
		} else {
			o.allowOrigin = "http://" + o.allowOrigin
		}
	}
	return o, nil
}

func (o *options) serializer() (serializer.JSONSerializer, error) {
	switch o.jsonImpl {
	case "fast":
		return fast.New(), nil
	case "go-json":
		return gojson.New(nil, nil), nil
	case "stdjson":
		return stdjson.New(), nil
	}
	return nil, fmt.Errorf("unknown JSON serializer: %s", o.jsonImpl)
}

func (o *options) acceptor() (websocket.Acceptor, error) {
	switch o.wsImpl {
	case "nhooyr":
		opts := &nhooyr.AcceptOptions{}
		if o.allowOrigin != "" {
			opts.OriginPatterns = []string{strings.SplitN(o.allowOrigin, "://", 2)[1]}
		}
		return websocket.NewNhooyrAcceptor(opts), nil
	case "gorilla":
		upgrader := &gorilla.Upgrader{}
		if o.allowOrigin != "" {
			upgrader.CheckOrigin = func(r *http.Request) bool {
				return r.Header.Get("Origin") == o.allowOrigin
			}
		}
		return websocket.NewGorillaAcceptor(upgrader), nil
	}
	return nil, fmt.Errorf("unknown WebSocket implementation: %s", o.wsImpl)
}

func (o *options) serverConfig(out *output) (*sio.ServerConfig, error) {
	json, err := o.serializer()
	if err != nil {
		return nil, err
	}
	acceptor, err := o.acceptor()
	if err != nil {
		return nil, err
	}

	config := &sio.ServerConfig{
		EIO: eio.ServerConfig{
			PingInterval:      o.pingInterval,
			PingTimeout:       o.pingTimeout,
			PollTimeout:       o.pollTimeout,
			WebSocketAcceptor: acceptor,
			HTTPCompression:   o.compress,
		},
		Serializer:     json,
		MaxAttachments: o.maxAttachments,
		OnAttachmentError: func(err error) {
			out.errorf("Attachment: %v", err)
		},
		OnError: func(err error) {
			out.errorf("%v", err)
		},
	}
	if o.uuid {
		config.EIO.IDGenerator = session.UUIDGenerator
	}
	if o.debug {
		config.Debugger = sio.NewPrintDebugger()
		config.EIO.Debugger = sio.NewPrintDebugger()
	}
	return config, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	out := newOutput(os.Stdout)
	if err != nil {
		out.fatalf("%v", err)
	}

	config, err := o.serverConfig(out)
	if err != nil {
		out.fatalf("%v", err)
	}

	io := sio.NewServer(config)
	io.OnConnection(func(c *sio.Conn) { echo(c, out) })
	if err := io.Run(); err != nil {
		out.fatalf("%v", err)
	}

	router := http.NewServeMux()
	var h http.Handler = io
	if o.allowOrigin != "" {
		out.infof("Allowed origin: %s", o.allowOrigin)
		h = corsMiddleware(h, o.allowOrigin)
	}
	router.Handle(o.path, h)

	server := &http.Server{
		Addr:        o.addr,
		Handler:     router,
		ReadTimeout: 120 * time.Second,
		IdleTimeout: 120 * time.Second,

		// PollTimeout plus time to write the response. Anything shorter
		// breaks long-polling.
		WriteTimeout: io.HTTPWriteTimeout(),
	}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		out.infof("Shutting down")
		io.Close()
		server.Close()
	}()

	out.infof("Listening on %s%s (json: %s, websocket: %s)", o.addr, o.path, config.Serializer.Name(), o.wsImpl)
	if o.tlsCert != "" {
		err = server.ListenAndServeTLS(o.tlsCert, o.tlsKey)
	} else {
		err = server.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		out.fatalf("%v", err)
	}
}

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
