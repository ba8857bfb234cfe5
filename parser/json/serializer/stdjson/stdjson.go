package stdjson

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/karagenc/socketio-server/parser/json/serializer"
)

type stdjsonSerializer struct {
	escapeHTML bool
}

func (s *stdjsonSerializer) Name() string { return "stdjson" }

func (s *stdjsonSerializer) Marshal(v any) ([]byte, error) {
	if s.escapeHTML {
		return json.Marshal(v)
	}
	var buf bytes.Buffer
	e := json.NewEncoder(&buf)
	e.SetEscapeHTML(false)
	if err := e.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

func (s *stdjsonSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (s *stdjsonSerializer) NewEncoder(w io.Writer) serializer.JSONEncoder {
	e := json.NewEncoder(w)
	e.SetEscapeHTML(s.escapeHTML)
	return e
}

func (s *stdjsonSerializer) NewDecoder(r io.Reader) serializer.JSONDecoder {
	return json.NewDecoder(r)
}

// New returns the encoding/json backend. HTML characters are escaped.
func New() serializer.JSONSerializer {
	return &stdjsonSerializer{escapeHTML: true}
}

// NewWithoutHTMLEscape leaves <, > and & as they are.
func NewWithoutHTMLEscape() serializer.JSONSerializer {
	return &stdjsonSerializer{}
}
