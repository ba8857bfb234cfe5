package parser

import (
	"fmt"
	"strconv"
)

type PacketType byte

const (
	PacketTypeConnect PacketType = iota
	PacketTypeDisconnect
	PacketTypeEvent
	PacketTypeAck
	PacketTypeConnectError
	PacketTypeBinaryEvent
	PacketTypeBinaryAck

	packetTypeMax = PacketTypeBinaryAck
)

func (p PacketType) ToChar() byte {
	return byte(p) + '0'
}

func (p *PacketType) FromChar(b byte) error {
	if b < '0' || b > packetTypeMax.ToChar() {
		return ErrInvalidPacketType
	}
	*p = PacketType(b - '0')
	return nil
}

func (p PacketType) String() string {
	switch p {
	case PacketTypeConnect:
		return "CONNECT"
	case PacketTypeDisconnect:
		return "DISCONNECT"
	case PacketTypeEvent:
		return "EVENT"
	case PacketTypeAck:
		return "ACK"
	case PacketTypeConnectError:
		return "CONNECT_ERROR"
	case PacketTypeBinaryEvent:
		return "BINARY_EVENT"
	case PacketTypeBinaryAck:
		return "BINARY_ACK"
	}
	return "UNKNOWN(" + strconv.Itoa(int(p)) + ")"
}

// Packet is a single Socket.IO packet carried by Engine.IO MESSAGE packets.
//
// Data holds the generic JSON tree: an []any of the event name followed by the
// arguments for events, an []any of the arguments for acks, and an object or
// nil for CONNECT, DISCONNECT and CONNECT_ERROR. Binary values are Binary.
type Packet struct {
	Type      PacketType
	Namespace string
	ID        *uint64
	Data      any

	// Raw attachments of a decoded binary packet, in placeholder order.
	Attachments [][]byte
}

func (p *Packet) IsBinary() bool {
	return p.Type == PacketTypeBinaryEvent || p.Type == PacketTypeBinaryAck
}

func (p *Packet) IsEvent() bool {
	return p.Type == PacketTypeEvent || p.Type == PacketTypeBinaryEvent
}

func (p *Packet) IsAck() bool {
	return p.Type == PacketTypeAck || p.Type == PacketTypeBinaryAck
}

// EventName returns the first element of an event's data.
func (p *Packet) EventName() (string, bool) {
	if !p.IsEvent() {
		return "", false
	}
	values, ok := p.Data.([]any)
	if !ok || len(values) == 0 {
		return "", false
	}
	name, ok := values[0].(string)
	return name, ok
}

// Args returns the arguments of an event (without the name) or an ack.
func (p *Packet) Args() []any {
	values, ok := p.Data.([]any)
	if !ok {
		return nil
	}
	if p.IsEvent() && len(values) > 0 {
		return values[1:]
	}
	if p.IsAck() {
		return values
	}
	return nil
}

func (p *Packet) String() string {
	s := p.Type.String() + " " + p.Namespace
	if p.ID != nil {
		s += " #" + strconv.FormatUint(*p.ID, 10)
	}
	if p.IsBinary() {
		s += fmt.Sprintf(" (%d attachments)", len(p.Attachments))
	}
	return s
}

// NewEvent builds an EVENT packet. It is promoted to BINARY_EVENT on encode
// if any argument is binary.
func NewEvent(namespace string, ackID *uint64, event string, args ...any) *Packet {
	return &Packet{
		Type:      PacketTypeEvent,
		Namespace: namespace,
		ID:        ackID,
		Data:      append([]any{event}, args...),
	}
}

func NewAck(namespace string, ackID uint64, args ...any) *Packet {
	if args == nil {
		args = []any{}
	}
	return &Packet{
		Type:      PacketTypeAck,
		Namespace: namespace,
		ID:        &ackID,
		Data:      args,
	}
}
