package main

import (
	sio "github.com/karagenc/socketio-server"
	"github.com/karagenc/socketio-server/parser"
)

// echo sends every event back to the client that emitted it and answers
// acknowledgement requests with the same arguments.
func echo(c *sio.Conn, out *output) {
	out.connected(c.ID())

	c.OnPacket(func(p *parser.Packet) {
		switch p.Type {
		case parser.PacketTypeConnect:
			out.event(c.ID(), p.Namespace, "connect", nil)
		case parser.PacketTypeDisconnect:
			out.event(c.ID(), p.Namespace, "disconnect", nil)
		case parser.PacketTypeEvent, parser.PacketTypeBinaryEvent:
			name, _ := p.EventName()
			args := p.Args()
			out.event(c.ID(), p.Namespace, name, args)

			var err error
			if p.ID != nil {
				err = c.Ack(p.Namespace, *p.ID, args...)
			} else if !sio.IsEventReserved(name) {
				err = c.Emit(p.Namespace, name, args...)
			}
			if err != nil {
				out.errorf("Echo %s: %v", name, err)
			}
		}
	})

	c.OnDisconnect(func(reason sio.Reason, err error) {
		out.disconnected(c.ID(), reason, err)
	})
}
