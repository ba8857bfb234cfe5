package sio

import eio "github.com/karagenc/socketio-server/engine.io"

type Debugger = eio.Debugger

func NewNoopDebugger() Debugger { return eio.NewNoopDebugger() }

func NewPrintDebugger() Debugger { return eio.NewPrintDebugger() }
