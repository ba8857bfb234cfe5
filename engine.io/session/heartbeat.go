package session

import (
	"time"

	"github.com/karagenc/socketio-server/engine.io/transport"
)

// The client drives the heartbeat with PINGs. Any inbound traffic pushes the
// deadline forward; the timer only fires late and re-arms itself if the
// deadline moved in the meantime.

func (s *Session) startHeartbeatLocked() {
	s.deadline = time.Now().Add(s.pingTimeout)
	s.heartbeat = time.AfterFunc(s.pingTimeout, s.expire)
}

func (s *Session) touchLocked() {
	if s.heartbeat == nil {
		return
	}
	s.deadline = time.Now().Add(s.pingTimeout)
}

func (s *Session) expire() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if remaining := time.Until(s.deadline); remaining > 0 {
		s.heartbeat.Reset(remaining)
		s.mu.Unlock()
		return
	}
	if s.state != StateClosing {
		s.reason = ReasonTimeout
		s.setStateLocked(StateClosing)
	}
	s.mu.Unlock()

	s.debug.Log("Heartbeat expired")
	s.shutdown(&transport.TimeoutError{After: s.pingTimeout})
}
