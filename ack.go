package sio

import "github.com/karagenc/socketio-server/internal/sync"

// ackStore holds the callbacks of events sent with EmitWithAck.
type ackStore struct {
	mu   sync.Mutex
	next uint64
	acks map[uint64]AckCallback
}

func newAckStore() *ackStore {
	return &ackStore{acks: make(map[uint64]AckCallback)}
}

func (s *ackStore) add(ack AckCallback) (id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = s.next
	s.next++
	s.acks[id] = ack
	return id
}

// take removes the callback so that a duplicate ack is ignored.
func (s *ackStore) take(id uint64) (ack AckCallback, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ack, ok = s.acks[id]
	delete(s.acks, id)
	return
}

func (s *ackStore) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.acks, id)
}

func (s *ackStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks = make(map[uint64]AckCallback)
}

func (s *ackStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.acks)
}
