package sio

import "github.com/karagenc/socketio-server/internal/sync"

type connStore struct {
	conns map[string]*Conn
	mu    sync.Mutex
}

func newConnStore() *connStore {
	return &connStore{
		conns: make(map[string]*Conn),
	}
}

func (s *connStore) get(sid string) (c *Conn, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok = s.conns[sid]
	return
}

func (s *connStore) getAll() (conns []*Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conns = make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	return
}

func (s *connStore) set(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.ID()] = c
}

func (s *connStore) remove(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, sid)
}

func (s *connStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
