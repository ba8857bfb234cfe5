package sio

import mapset "github.com/deckarep/golang-set/v2"

var reservedEvents = mapset.NewThreadUnsafeSet(
	"connect",
	"connect_error",
	"disconnect",
	"disconnecting",
	"newListener",
	"removeListener",
	"connection",
	"error",
)

// IsEventReserved reports whether the client library uses eventName itself.
// Such events cannot be emitted.
func IsEventReserved(eventName string) bool {
	return reservedEvents.Contains(eventName)
}
