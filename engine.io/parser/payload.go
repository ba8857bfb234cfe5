package parser

import (
	"fmt"
	"io"
	"strconv"
)

const lengthDelimiter byte = ':'

var (
	ErrInvalidLength    = fmt.Errorf("%w: invalid length prefix", ErrMalformed)
	ErrTruncatedPayload = fmt.Errorf("%w: length exceeds the remaining payload", ErrMalformed)
)

// EncodedPayloadLen is the length of the payload built by EncodePayload.
func EncodedPayloadLen(packets ...*Packet) int {
	l := 0
	for _, packet := range packets {
		pl := packet.EncodedLen()
		l += len(strconv.Itoa(pl)) + 1 + pl
	}
	return l
}

// EncodePayload writes the packets as `<length>:<packet>` records, without separators.
// The length counts the bytes of the encoded packet, type digit included.
func EncodePayload(w io.Writer, packets ...*Packet) error {
	for _, packet := range packets {
		encoded := packet.Encode()
		prefix := strconv.AppendInt(nil, int64(len(encoded)), 10)
		prefix = append(prefix, lengthDelimiter)

		_, err := w.Write(prefix)
		if err != nil {
			return err
		}
		_, err = w.Write(encoded)
		if err != nil {
			return err
		}
	}
	return nil
}

func EncodePayloadBytes(packets ...*Packet) []byte {
	b := make([]byte, 0, EncodedPayloadLen(packets...))
	for _, packet := range packets {
		b = strconv.AppendInt(b, int64(packet.EncodedLen()), 10)
		b = append(b, lengthDelimiter)
		b = append(b, packet.Encode()...)
	}
	return b
}

// DecodePayload splits the payload using the explicit length prefixes only.
// Packet data may contain any byte, including ':' and digits.
// Either all packets are returned or none.
func DecodePayload(b []byte) ([]*Packet, error) {
	packets := make([]*Packet, 0, 1) // Minimum 1 packet expected

	if len(b) == 0 {
		return nil, ErrInvalidPacketSize
	}

	for len(b) > 0 {
		i := 0
		for ; i < len(b) && b[i] != lengthDelimiter; i++ {
			if b[i] < '0' || b[i] > '9' {
				return nil, ErrInvalidLength
			}
		}
		if i == 0 || i == len(b) {
			return nil, ErrInvalidLength
		}

		n, err := strconv.Atoi(string(b[:i]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLength, err)
		}
		b = b[i+1:]

		if n > len(b) {
			return nil, ErrTruncatedPayload
		}

		packet, err := Decode(b[:n])
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
		b = b[n:]
	}

	return packets, nil
}
