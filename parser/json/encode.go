package jsonparser

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/karagenc/socketio-server/parser"
)

var errEventWithoutName = fmt.Errorf("parser/json: event packet has no data")

// Encode doesn't modify p. EVENT and ACK packets carrying binary values are
// sent as BINARY_EVENT and BINARY_ACK.
func (p *Parser) Encode(packet *parser.Packet) ([][]byte, error) {
	var (
		typ         = packet.Type
		data        = packet.Data
		attachments [][]byte
	)

	if packet.IsEvent() && data == nil {
		return nil, errEventWithoutName
	}

	if packet.IsEvent() || packet.IsAck() {
		d := deconstructor{onAttachmentError: p.onAttachmentError}
		data = d.deconstruct(data)
		attachments = d.attachments

		if p.maxAttachments > 0 && len(attachments) > p.maxAttachments {
			return nil, parser.ErrMaxAttachmentsExceeded
		}

		if len(attachments) > 0 {
			switch typ {
			case parser.PacketTypeEvent:
				typ = parser.PacketTypeBinaryEvent
			case parser.PacketTypeAck:
				typ = parser.PacketTypeBinaryAck
			}
		} else if packet.IsBinary() {
			// Nothing to attach.
			if packet.IsEvent() {
				typ = parser.PacketTypeEvent
			} else {
				typ = parser.PacketTypeAck
			}
		}
	}

	text, err := p.encodeText(typ, len(attachments), packet.Namespace, packet.ID, data)
	if err != nil {
		return nil, err
	}

	buffers := make([][]byte, 0, 1+len(attachments))
	buffers = append(buffers, text)
	return append(buffers, attachments...), nil
}

func (p *Parser) encodeText(typ parser.PacketType, attachments int, namespace string, id *uint64, data any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(1 + 4 + len(namespace) + 1 + 20)

	buf.WriteByte(typ.ToChar())

	if typ == parser.PacketTypeBinaryEvent || typ == parser.PacketTypeBinaryAck {
		buf.WriteString(strconv.Itoa(attachments))
		buf.WriteByte('-')
	}

	if namespace != "" && namespace != "/" {
		buf.WriteString(namespace)
		buf.WriteByte(',')
	}

	if id != nil {
		buf.WriteString(strconv.FormatUint(*id, 10))
	}

	if data != nil {
		b, err := p.json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("parser/json: %w", err)
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}
