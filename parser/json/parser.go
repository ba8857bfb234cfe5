package jsonparser

import (
	"github.com/karagenc/socketio-server/parser"
	"github.com/karagenc/socketio-server/parser/json/serializer"
	"github.com/karagenc/socketio-server/parser/json/serializer/fast"
)

type Config struct {
	// Defaults to fast.New().
	Serializer serializer.JSONSerializer

	// MaxAttachments is the maximum number of binary attachments to parse/send.
	// If MaxAttachments is 0, there will be no limit set for binary attachments.
	MaxAttachments int

	// Called when an io.Reader attachment fails mid-read. The attachment is
	// still sent with the bytes read so far so placeholder numbers stay valid.
	OnAttachmentError func(err error)
}

func NewCreator(config *Config) parser.Creator {
	if config == nil {
		config = new(Config)
	}
	c := *config
	if c.Serializer == nil {
		c.Serializer = fast.New()
	}
	if c.OnAttachmentError == nil {
		c.OnAttachmentError = func(err error) {}
	}
	return func() parser.Parser {
		return &Parser{
			json:              c.Serializer,
			maxAttachments:    c.MaxAttachments,
			onAttachmentError: c.OnAttachmentError,
		}
	}
}

type Parser struct {
	json              serializer.JSONSerializer
	maxAttachments    int
	onAttachmentError func(err error)

	// Binary packet waiting for its attachments.
	pending   *parser.Packet
	remaining int
}

func (p *Parser) Reset() {
	p.pending = nil
	p.remaining = 0
}
