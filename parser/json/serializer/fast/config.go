// Package fast picks the quickest JSON backend available on the build platform:
// sonic on amd64 (linux, windows, darwin) and go-json everywhere else.
package fast

import (
	"github.com/bytedance/sonic"
	"github.com/goccy/go-json"
)

type Config struct {
	SonicConfig sonic.Config
	GoJSON      GoJSONConfig
}

type GoJSONConfig struct {
	EncodeOptions []json.EncodeOptionFunc
	DecodeOptions []json.DecodeOptionFunc
}

func DefaultConfig() Config {
	return Config{
		SonicConfig: sonic.Config{
			// Decoded event arguments outlive the frame they were read from.
			CopyString: true,
			// Packets go over the wire as is.
			CompactMarshaler: true,
			EscapeHTML:       true,
			SortMapKeys:      false,
		},
		GoJSON: GoJSONConfig{
			EncodeOptions: []json.EncodeOptionFunc{
				json.UnorderedMap(),
			},
		},
	}
}
