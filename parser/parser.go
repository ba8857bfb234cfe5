package parser

import (
	"errors"
	"fmt"
)

// ProtocolVersion is the Socket.IO protocol spoken over Engine.IO 3.
const ProtocolVersion = 4

var (
	// Every decoding failure matches errors.Is(err, ErrMalformed).
	ErrMalformed = errors.New("parser: malformed packet")

	ErrInvalidPacketType      = fmt.Errorf("%w: invalid packet type", ErrMalformed)
	ErrInvalidPacketSize      = fmt.Errorf("%w: invalid packet size", ErrMalformed)
	ErrInvalidPayload         = fmt.Errorf("%w: invalid payload", ErrMalformed)
	ErrInvalidPlaceholder     = fmt.Errorf("%w: invalid placeholder", ErrMalformed)
	ErrIncompleteBinaryPacket = fmt.Errorf("%w: binary packet is missing attachments", ErrMalformed)
	ErrUnexpectedAttachment   = fmt.Errorf("%w: unexpected binary attachment", ErrMalformed)
	ErrMaxAttachmentsExceeded = fmt.Errorf("%w: maximum number of attachments exceeded", ErrMalformed)
)

type Creator func() Parser

// Parser is not safe for concurrent use. Each connection owns one.
type Parser interface {
	// Encode returns the text form followed by the attachments.
	Encode(p *Packet) (buffers [][]byte, err error)

	// Add consumes a text frame or, while a binary packet is pending, an
	// attachment. It returns the packet once it's complete and nil otherwise.
	Add(data []byte, isBinary bool) (*Packet, error)

	// Finish reports an error if a binary packet is still waiting for
	// attachments. The pending packet is dropped.
	Finish() error

	Reset()
}
