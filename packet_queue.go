package sio

import (
	eioparser "github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/internal/sync"
)

// packetQueue decouples emitting from the transport write. A single sender
// goroutine per connection takes everything queued so far and hands it to the
// session in one batch, so packet order is preserved across emitters.
type packetQueue struct {
	mu      sync.Mutex
	packets []*eioparser.Packet

	// Once set, nothing more is accepted. The sender flushes what's queued
	// and then closes the session with this reason.
	closeReason Reason

	ready chan struct{}
}

func newPacketQueue() *packetQueue {
	return &packetQueue{
		ready: make(chan struct{}, 1),
	}
}

func (pq *packetQueue) add(packets ...*eioparser.Packet) error {
	pq.mu.Lock()
	if pq.closeReason != "" {
		pq.mu.Unlock()
		return ErrConnClosed
	}
	pq.packets = append(pq.packets, packets...)
	pq.mu.Unlock()

	pq.signal()
	return nil
}

// closeAfterFlush queues the final packets and marks the queue as closing.
// It reports false if the queue was already closing.
func (pq *packetQueue) closeAfterFlush(reason Reason, packets ...*eioparser.Packet) bool {
	pq.mu.Lock()
	if pq.closeReason != "" {
		pq.mu.Unlock()
		return false
	}
	pq.packets = append(pq.packets, packets...)
	pq.closeReason = reason
	pq.mu.Unlock()

	pq.signal()
	return true
}

func (pq *packetQueue) signal() {
	select {
	case pq.ready <- struct{}{}:
	default:
	}
}

func (pq *packetQueue) get() (packets []*eioparser.Packet, closeReason Reason) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	packets = pq.packets
	pq.packets = nil
	return packets, pq.closeReason
}

func (pq *packetQueue) len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.packets)
}

// sendLoop runs until the session is done or the queue was closed and flushed.
func (pq *packetQueue) sendLoop(s sessionSender, done <-chan struct{}, onError func(err error)) {
	for {
		select {
		case <-pq.ready:
		case <-done:
			return
		}

		packets, closeReason := pq.get()
		if len(packets) > 0 {
			if err := s.Send(packets...); err != nil {
				onError(err)
				return
			}
		}
		if closeReason != "" {
			s.Close(closeReason)
			return
		}
	}
}

type sessionSender interface {
	Send(packets ...*eioparser.Packet) error
	Close(reason Reason)
}
