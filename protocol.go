package sio

import (
	eio "github.com/karagenc/socketio-server/engine.io"
	"github.com/karagenc/socketio-server/parser"
)

const (
	SocketIOProtocolVersion = parser.ProtocolVersion
	EngineIOProtocolVersion = eio.ProtocolVersion
)
