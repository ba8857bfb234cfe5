package parser

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

var bytesType = reflect.TypeOf([]byte(nil))

// DecodeArgs converts the generic arguments of a decoded packet into typed
// values. Every v must be a non-nil pointer. Struct fields are matched by
// their json tag.
func DecodeArgs(args []any, v ...any) error {
	if len(v) > len(args) {
		return fmt.Errorf("parser: %d values requested but the packet has %d arguments", len(v), len(args))
	}
	for i, out := range v {
		d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			DecodeHook: binaryHook,
			TagName:    "json",
			Result:     out,
		})
		if err != nil {
			return err
		}
		if err := d.Decode(args[i]); err != nil {
			return fmt.Errorf("parser: argument %d: %w", i, err)
		}
	}
	return nil
}

func binaryHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	b, ok := data.(Binary)
	if !ok {
		return data, nil
	}
	switch {
	case to == bytesType:
		return []byte(b), nil
	case to.Kind() == reflect.String:
		return string(b), nil
	}
	return data, nil
}
