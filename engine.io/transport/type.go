package transport

import "fmt"

type Type int

const (
	TypeWebSocket Type = iota
	TypeXHRPolling
	TypeJSONPPolling
)

// Name is the value of the `transport` query parameter for this type.
func (t Type) Name() string {
	switch t {
	case TypeWebSocket:
		return "websocket"
	case TypeXHRPolling, TypeJSONPPolling:
		return "polling"
	}
	return "<invalid>"
}

func (t Type) IsPolling() bool {
	return t == TypeXHRPolling || t == TypeJSONPPolling
}

func (t Type) String() string {
	switch t {
	case TypeWebSocket:
		return "websocket"
	case TypeXHRPolling:
		return "xhr-polling"
	case TypeJSONPPolling:
		return "jsonp-polling"
	}
	return fmt.Sprintf("<invalid transport %d>", int(t))
}

// ParseType maps the `transport` query parameter to a transport type.
// The presence of a JSONP index selects JSONP polling.
func ParseType(name string, hasJSONPIndex bool) (Type, error) {
	switch name {
	case "websocket":
		return TypeWebSocket, nil
	case "polling":
		if hasJSONPIndex {
			return TypeJSONPPolling, nil
		}
		return TypeXHRPolling, nil
	}
	return 0, &UnsupportedTransportError{Name: name}
}
