package jsonparser

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"

	"github.com/fatih/structs"
	"github.com/karagenc/socketio-server/parser"
)

type socketIOBinary interface {
	SocketIOBinary() bool
}

var (
	readerType    = reflect.TypeOf((*io.Reader)(nil)).Elem()
	binaryType    = reflect.TypeOf((*socketIOBinary)(nil)).Elem()
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

type placeholder struct {
	Placeholder bool `json:"_placeholder"`
	Num         int  `json:"num"`
}

// isBinaryValue reports whether rv itself becomes an attachment. Nil slices and
// byte slices with their own MarshalJSON (json.RawMessage) are left to the
// serializer.
func isBinaryValue(rv reflect.Value) bool {
	t := rv.Type()
	if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
		if rv.IsNil() {
			return false
		}
		return t.Implements(binaryType) || !t.Implements(marshalerType)
	}
	return t.Implements(readerType) && !(rv.Kind() == reflect.Ptr && rv.IsNil())
}

func hasBinary(rv reflect.Value) bool {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Ptr {
		if !rv.IsValid() || rv.IsNil() {
			return false
		}
		if rv.Kind() == reflect.Ptr && isBinaryValue(rv) {
			return true
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return false
	}
	if isBinaryValue(rv) {
		return true
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if hasBinary(rv.Index(i)) {
				return true
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if hasBinary(iter.Value()) {
				return true
			}
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if hasBinary(rv.Field(i)) {
				return true
			}
		}
	}
	return false
}

// deconstructor copies the parts of an argument tree that contain binary
// values, replacing each one with a placeholder. Subtrees without binary
// values are passed through untouched so the serializer sees them as is.
type deconstructor struct {
	attachments       [][]byte
	onAttachmentError func(err error)
}

func (d *deconstructor) deconstruct(v any) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !hasBinary(rv) {
		return v
	}
	return d.value(rv)
}

func (d *deconstructor) value(rv reflect.Value) any {
	for rv.Kind() == reflect.Interface || (rv.Kind() == reflect.Ptr && !isBinaryValue(rv)) {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	if !hasBinary(rv) {
		return rv.Interface()
	}
	if isBinaryValue(rv) {
		return d.attach(rv)
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = d.value(rv.Index(i))
		}
		return out

	case reflect.Map:
		return d.mapValue(rv)

	case reflect.Struct:
		s := structs.New(rv.Interface())
		s.TagName = "json"
		return d.mapValue(reflect.ValueOf(s.Map()))
	}
	return rv.Interface()
}

// Keys are visited in sorted order so placeholder numbers are stable.
func (d *deconstructor) mapValue(rv reflect.Value) map[string]any {
	keys := make([]string, 0, rv.Len())
	values := make(map[string]reflect.Value, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := fmt.Sprint(iter.Key().Interface())
		keys = append(keys, k)
		values[k] = iter.Value()
	}
	sort.Strings(keys)

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = d.value(values[k])
	}
	return out
}

func (d *deconstructor) attach(rv reflect.Value) placeholder {
	var buf []byte
	if r, ok := rv.Interface().(io.Reader); ok && rv.Kind() != reflect.Slice {
		b, err := io.ReadAll(r)
		if err != nil {
			d.onAttachmentError(fmt.Errorf("parser/json: attachment %d: %w", len(d.attachments), err))
		}
		buf = b
	} else {
		buf = rv.Bytes()
	}

	p := placeholder{Placeholder: true, Num: len(d.attachments)}
	d.attachments = append(d.attachments, buf)
	return p
}

// reconstruct replaces placeholders in a decoded tree with their attachments.
func reconstruct(v any, attachments [][]byte) (any, error) {
	switch v := v.(type) {
	case []any:
		for i, el := range v {
			r, err := reconstruct(el, attachments)
			if err != nil {
				return nil, err
			}
			v[i] = r
		}
		return v, nil

	case map[string]any:
		if isPlaceholder, ok := v["_placeholder"].(bool); ok && isPlaceholder {
			num, ok := placeholderNum(v["num"])
			if !ok || num < 0 || num >= len(attachments) {
				return nil, parser.ErrInvalidPlaceholder
			}
			return parser.Binary(attachments[num]), nil
		}
		for k, el := range v {
			r, err := reconstruct(el, attachments)
			if err != nil {
				return nil, err
			}
			v[k] = r
		}
		return v, nil
	}
	return v, nil
}

func placeholderNum(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
