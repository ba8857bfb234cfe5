//go:build !sio_stdjson

package json

import json "github.com/goccy/go-json"

var (
	Marshal    = json.Marshal
	Unmarshal  = json.Unmarshal
	NewDecoder = json.NewDecoder
	NewEncoder = json.NewEncoder
)
