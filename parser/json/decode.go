package jsonparser

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/karagenc/socketio-server/parser"
)

func (p *Parser) Add(data []byte, isBinary bool) (*parser.Packet, error) {
	if isBinary {
		if p.pending == nil {
			return nil, parser.ErrUnexpectedAttachment
		}
		p.pending.Attachments = append(p.pending.Attachments, data)
		p.remaining--
		if p.remaining > 0 {
			return nil, nil
		}
		packet := p.pending
		p.Reset()
		return p.complete(packet)
	}

	if p.pending != nil {
		p.Reset()
		return nil, parser.ErrIncompleteBinaryPacket
	}

	packet, attachments, err := p.decodeText(data)
	if err != nil {
		return nil, err
	}

	if packet.IsBinary() && attachments > 0 {
		p.pending = packet
		p.remaining = attachments
		return nil, nil
	}
	return p.complete(packet)
}

func (p *Parser) Finish() error {
	if p.pending != nil {
		p.Reset()
		return parser.ErrIncompleteBinaryPacket
	}
	return nil
}

func (p *Parser) complete(packet *parser.Packet) (*parser.Packet, error) {
	if packet.IsBinary() {
		data, err := reconstruct(packet.Data, packet.Attachments)
		if err != nil {
			return nil, err
		}
		packet.Data = data
	}
	return packet, nil
}

// decodeText parses <type>[<attachments>-][<namespace>,][<id>][<json>].
func (p *Parser) decodeText(data []byte) (packet *parser.Packet, attachments int, err error) {
	if len(data) < 1 {
		return nil, 0, parser.ErrInvalidPacketSize
	}

	packet = new(parser.Packet)
	if err = packet.Type.FromChar(data[0]); err != nil {
		return nil, 0, err
	}
	data = data[1:]

	if packet.IsBinary() {
		i := bytes.IndexByte(data, '-')
		if i < 1 {
			return nil, 0, fmt.Errorf("%w: missing attachment count", parser.ErrMalformed)
		}
		n, err := strconv.ParseUint(string(data[:i]), 10, 31)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: attachment count: %v", parser.ErrMalformed, err)
		}
		attachments = int(n)
		if p.maxAttachments > 0 && attachments > p.maxAttachments {
			return nil, 0, parser.ErrMaxAttachmentsExceeded
		}
		data = data[i+1:]
	}

	packet.Namespace = "/"
	if len(data) > 0 && data[0] == '/' {
		i := bytes.IndexByte(data, ',')
		if i == -1 {
			packet.Namespace = string(data)
			data = nil
		} else {
			packet.Namespace = string(data[:i])
			data = data[i+1:]
		}
	}

	i := 0
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.ParseUint(string(data[:i]), 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: ack id: %v", parser.ErrMalformed, err)
		}
		packet.ID = &id
		data = data[i:]
	}

	if len(data) > 0 {
		var v any
		if err := p.json.Unmarshal(data, &v); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", parser.ErrInvalidPayload, err)
		}
		packet.Data = v
	}

	if !isPayloadValid(packet) {
		return nil, 0, parser.ErrInvalidPayload
	}
	return packet, attachments, nil
}

func isPayloadValid(packet *parser.Packet) bool {
	switch packet.Type {
	case parser.PacketTypeConnect:
		if packet.Data == nil {
			return true
		}
		_, ok := packet.Data.(map[string]any)
		return ok
	case parser.PacketTypeDisconnect:
		return packet.Data == nil
	case parser.PacketTypeConnectError:
		switch packet.Data.(type) {
		case string, map[string]any:
			return true
		}
		return packet.Data == nil
	case parser.PacketTypeEvent, parser.PacketTypeBinaryEvent:
		_, ok := packet.EventName()
		return ok
	case parser.PacketTypeAck, parser.PacketTypeBinaryAck:
		_, ok := packet.Data.([]any)
		return ok && packet.ID != nil
	}
	return false
}
