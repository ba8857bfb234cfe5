package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/internal/debug"
	"github.com/karagenc/socketio-server/internal/sync"
	"golang.org/x/sync/errgroup"
)

type ManagerConfig struct {
	PingInterval   time.Duration
	PingTimeout    time.Duration
	UpgradeTimeout time.Duration

	// Defaults to Base64IDGenerator.
	IDGenerator IDGenerator

	// Called once per session, before the handshake is sent. The returned
	// callbacks are in place before the session can close.
	// If nil, CreateSession fails with transport.ErrNoHandler.
	OnSession NewSessionCallback

	Debugger debug.Debugger
}

// Manager is the session registry. Lookups, inserts and removals may come
// from any number of request goroutines.
type Manager struct {
	config *ManagerConfig

	sessions map[string]*Session
	mu       sync.RWMutex

	debug debug.Debugger
}

func NewManager(config *ManagerConfig) *Manager {
	if config == nil {
		config = new(ManagerConfig)
	}
	c := *config
	if c.IDGenerator == nil {
		c.IDGenerator = Base64IDGenerator
	}
	if c.Debugger == nil {
		c.Debugger = debug.NewNoop()
	}
	return &Manager{
		config:   &c,
		sessions: make(map[string]*Session),
		debug:    c.Debugger.WithContext("[eio/manager]"),
	}
}

// CreateSession returns a new session in the CONNECTING state, already in the registry.
func (m *Manager) CreateSession() (*Session, error) {
	if m.config.OnSession == nil {
		return nil, transport.ErrNoHandler
	}

	for i := 0; i < Base64IDMaxTry; i++ {
		sid, err := m.config.IDGenerator()
		if err != nil {
			return nil, fmt.Errorf("session: ID generation failed: %w", err)
		}

		s := newSession(
			sid,
			m.config.PingInterval,
			m.config.PingTimeout,
			m.config.UpgradeTimeout,
			m.config.OnSession,
			m.remove,
			m.config.Debugger,
		)

		m.mu.Lock()
		_, exists := m.sessions[sid]
		if !exists {
			m.sessions[sid] = s
		}
		m.mu.Unlock()

		if !exists {
			m.debug.Log("Session created", sid)
			return s, nil
		}
	}
	return nil, ErrBase64IDMaxTryReached
}

func (m *Manager) Session(sid string) (s *Session, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok = m.sessions[sid]
	return
}

// Resolve maps the sid of an inbound request to a session.
// An empty sid creates a new one.
func (m *Manager) Resolve(sid string) (s *Session, created bool, err error) {
	if sid == "" {
		s, err = m.CreateSession()
		return s, err == nil, err
	}
	s, ok := m.Session(sid)
	if !ok {
		return nil, false, transport.NewProtocolError(transport.CodeUnknownSID, "Session ID unknown", nil)
	}
	return s, false, nil
}

// remove is idempotent. Explicit close and heartbeat expiry may both get here.
func (m *Manager) remove(sid string) {
	m.mu.Lock()
	_, ok := m.sessions[sid]
	delete(m.sessions, sid)
	m.mu.Unlock()
	if ok {
		m.debug.Log("Session removed", sid)
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

const closeAllWait = 5 * time.Second

var errCloseAllStuck = errors.New("session: session did not reach CLOSED")

// CloseAll closes every session with the given reason and waits for all of them
// to reach CLOSED. A session already closing on another goroutine is waited for.
func (m *Manager) CloseAll(reason Reason) error {
	var g errgroup.Group
	for _, s := range m.Sessions() {
		s := s
		g.Go(func() error {
			s.Close(reason)
			select {
			case <-s.Done():
				return nil
			case <-time.After(closeAllWait):
				return fmt.Errorf("%w: %s", errCloseAllStuck, s.ID())
			}
		})
	}
	return g.Wait()
}
