package eio

import "github.com/karagenc/socketio-server/internal/debug"

type Debugger = debug.Debugger

// NewNoopDebugger is the default debugger. It discards everything.
func NewNoopDebugger() Debugger { return debug.NewNoop() }

// NewPrintDebugger prints to stdout, one colour per goroutine.
func NewPrintDebugger() Debugger { return debug.NewPrint() }
