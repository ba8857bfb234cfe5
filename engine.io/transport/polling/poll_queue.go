package polling

import (
	"context"
	"errors"
	"time"

	"github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/internal/sync"
)

var errAlreadyPolling = errors.New("polling: overlapping GET requests")

// pollQueue is the outbound buffer of a polling connection. Adding packets and
// flushing them to a GET are serialized by mu, so a packet is taken exactly once.
type pollQueue struct {
	packets []*parser.Packet
	mu      sync.Mutex

	// Buffered so that a signal sent while no GET is waiting isn't lost.
	ready chan struct{}

	polling bool

	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

func newPollQueue() *pollQueue {
	return &pollQueue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// poll for packets. If we already have a packet, this function will immediately return.
// Otherwise it will wait until a packet arrives, the queue is closed, pollTimeout
// is reached or ctx is done. Only one poll can be in progress at a time.
func (pq *pollQueue) poll(ctx context.Context, pollTimeout time.Duration) ([]*parser.Packet, error) {
	pq.mu.Lock()
	if pq.polling {
		pq.mu.Unlock()
		return nil, errAlreadyPolling
	}
	pq.polling = true
	pq.mu.Unlock()

	defer func() {
		pq.mu.Lock()
		pq.polling = false
		pq.mu.Unlock()
	}()

	timer := time.NewTimer(pollTimeout)
	defer timer.Stop()

	for {
		packets := pq.get()
		if len(packets) > 0 {
			return packets, nil
		}

		select {
		case <-pq.ready:
		case <-pq.done:
			return pq.get(), nil
		case <-timer.C:
			return nil, nil
		case <-ctx.Done():
			// Whatever was queued stays for the next GET.
			return nil, ctx.Err()
		}
	}
}

// add a packet to the queue and signal the waiting GET (if any).
func (pq *pollQueue) add(packets ...*parser.Packet) error {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if pq.closed {
		return transport.ErrConnectionClosed
	}
	pq.packets = append(pq.packets, packets...)

	select {
	case pq.ready <- struct{}{}:
	default:
	}
	return nil
}

// Retrieve the packets without waiting.
func (pq *pollQueue) get() []*parser.Packet {
	pq.mu.Lock()
	packets := pq.packets
	pq.packets = nil
	pq.mu.Unlock()
	return packets
}

func (pq *pollQueue) len() int {
	pq.mu.Lock()
	l := len(pq.packets)
	pq.mu.Unlock()
	return l
}

// drain closes the queue and takes everything that was never flushed.
// A waiting GET returns empty handed.
func (pq *pollQueue) drain() []*parser.Packet {
	pq.mu.Lock()
	packets := pq.packets
	pq.packets = nil
	pq.closed = true
	pq.mu.Unlock()

	pq.closeOnce.Do(func() { close(pq.done) })
	return packets
}

// close stops accepting packets. A waiting GET still gets what was queued.
func (pq *pollQueue) close() {
	pq.mu.Lock()
	pq.closed = true
	pq.mu.Unlock()

	pq.closeOnce.Do(func() { close(pq.done) })
}
