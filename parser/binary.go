package parser

// Binary marks a value to be sent as a binary attachment. Plain []byte values
// are treated the same way; decoded attachments are always Binary.
type Binary []byte

func (b Binary) SocketIOBinary() bool { return true }
