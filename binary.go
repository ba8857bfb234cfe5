package sio

import "github.com/karagenc/socketio-server/parser"

// Binary values passed to Emit and Ack are sent as attachments. Binary
// arguments of received packets always have this type.
type Binary = parser.Binary
