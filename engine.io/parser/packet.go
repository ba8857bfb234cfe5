package parser

import (
	"encoding/base64"
	"errors"
	"fmt"
)

type PacketType byte

const (
	PacketTypeOpen PacketType = iota
	PacketTypeClose
	PacketTypePing
	PacketTypePong
	PacketTypeMessage
	PacketTypeUpgrade
	PacketTypeNoop

	packetTypeMin = PacketTypeOpen
	packetTypeMax = PacketTypeNoop
)

func (p PacketType) ToChar() byte {
	b := byte(p)
	b += 48
	return b
}

func (p *PacketType) FromChar(b byte) error {
	if b < 48+byte(packetTypeMin) || b > 48+byte(packetTypeMax) {
		return ErrInvalidPacketType
	}

	b = b - 48
	*p = PacketType(b)
	return nil
}

func (p PacketType) String() string {
	switch p {
	case PacketTypeOpen:
		return "OPEN"
	case PacketTypeClose:
		return "CLOSE"
	case PacketTypePing:
		return "PING"
	case PacketTypePong:
		return "PONG"
	case PacketTypeMessage:
		return "MESSAGE"
	case PacketTypeUpgrade:
		return "UPGRADE"
	case PacketTypeNoop:
		return "NOOP"
	}
	return "<invalid>"
}

const base64Prefix byte = 'b'

// Every decoding error wraps ErrMalformed.
var (
	ErrMalformed = errors.New("parser: malformed input")

	ErrInvalidPacketSize = fmt.Errorf("%w: invalid packet size", ErrMalformed)
	ErrInvalidPacketType = fmt.Errorf("%w: invalid packet type", ErrMalformed)
	ErrInvalidBase64     = fmt.Errorf("%w: invalid base64 data", ErrMalformed)
)

type Packet struct {
	IsBinary bool
	Type     PacketType
	Data     []byte
}

func NewPacket(packetType PacketType, isBinary bool, data []byte) (*Packet, error) {
	if packetType != PacketTypeMessage && isBinary {
		return nil, ErrInvalidPacketType
	}
	if packetType > packetTypeMax {
		return nil, ErrInvalidPacketType
	}

	return &Packet{
		IsBinary: isBinary,
		Type:     packetType,
		Data:     data,
	}, nil
}

// MustNewPacket is for packet types that are known to be valid at compile time.
func MustNewPacket(packetType PacketType, data []byte) *Packet {
	p, err := NewPacket(packetType, false, data)
	if err != nil {
		panic(err)
	}
	return p
}

// Decode parses a single text packet: a type digit followed by the data.
// A text packet starting with 'b' is a base64 encoded binary MESSAGE.
func Decode(data []byte) (*Packet, error) {
	if len(data) < 1 {
		return nil, ErrInvalidPacketSize
	}

	packet := new(Packet)

	if data[0] == base64Prefix {
		if len(data) < 2 {
			return nil, ErrInvalidPacketSize
		}
		err := packet.Type.FromChar(data[1])
		if err != nil {
			return nil, err
		}
		if packet.Type != PacketTypeMessage {
			return nil, ErrInvalidPacketType
		}
		packet.IsBinary = true

		encoded := data[2:]
		packet.Data = make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
		n, err := base64.StdEncoding.Decode(packet.Data, encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
		}
		packet.Data = packet.Data[:n]
		return packet, nil
	}

	err := packet.Type.FromChar(data[0])
	if err != nil {
		return nil, err
	}
	packet.Data = make([]byte, len(data)-1)
	copy(packet.Data, data[1:])
	return packet, nil
}

// DecodeBinary parses a binary WebSocket frame. The first byte is the packet type,
// either raw (0x04) or as a digit; the remainder is the data of a MESSAGE packet.
func DecodeBinary(frame []byte) (*Packet, error) {
	if len(frame) < 1 {
		return nil, ErrInvalidPacketSize
	}
	t := frame[0]
	if t != byte(PacketTypeMessage) && t != PacketTypeMessage.ToChar() {
		return nil, ErrInvalidPacketType
	}
	data := make([]byte, len(frame)-1)
	copy(data, frame[1:])
	return &Packet{
		IsBinary: true,
		Type:     PacketTypeMessage,
		Data:     data,
	}, nil
}

// Encode builds the text form of the packet. Binary packets are base64 encoded.
func (p *Packet) Encode() []byte {
	if p.IsBinary {
		el := base64.StdEncoding.EncodedLen(len(p.Data))
		b := make([]byte, 2+el)
		b[0] = base64Prefix
		b[1] = p.Type.ToChar()
		base64.StdEncoding.Encode(b[2:], p.Data)
		return b
	}

	b := make([]byte, 1+len(p.Data))
	b[0] = p.Type.ToChar()
	copy(b[1:], p.Data)
	return b
}

// EncodeBinary builds the binary WebSocket frame of a binary MESSAGE packet.
func (p *Packet) EncodeBinary() []byte {
	b := make([]byte, 1+len(p.Data))
	b[0] = byte(p.Type)
	copy(b[1:], p.Data)
	return b
}

// EncodedLen is the length of the text form built by Encode.
func (p *Packet) EncodedLen() int {
	if p.IsBinary {
		return 2 + base64.StdEncoding.EncodedLen(len(p.Data))
	}
	return 1 + len(p.Data)
}

func (p *Packet) String() string {
	if p.IsBinary {
		return fmt.Sprintf("%s <binary %d bytes>", p.Type, len(p.Data))
	}
	return fmt.Sprintf("%s %q", p.Type, p.Data)
}
