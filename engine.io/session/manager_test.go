package session

import (
	"strconv"
	"testing"
	"time"

	"github.com/karagenc/socketio-server/engine.io/transport"
	"github.com/karagenc/socketio-server/internal/sync"
	"github.com/karagenc/socketio-server/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerConcurrentSessions(t *testing.T) {
	var (
		closes   int
		closesMu sync.Mutex
	)
	m := NewManager(&ManagerConfig{
		PingInterval: time.Minute,
		PingTimeout:  time.Minute,
		OnSession: func(s *Session) *Callbacks {
			return &Callbacks{
				OnClose: func(reason Reason, err error) {
					closesMu.Lock()
					closes++
					closesMu.Unlock()
				},
			}
		},
	})

	const max = 100
	w := utils.NewTestWaiter(max)
	for i := 0; i < max; i++ {
		go func() {
			defer w.Done()
			s, created, err := m.Resolve("")
			if !assert.NoError(t, err) {
				return
			}
			assert.True(t, created)
			assert.NoError(t, s.Open(newFakeConnection(transport.TypeXHRPolling), nil))

			found, created, err := m.Resolve(s.ID())
			assert.NoError(t, err)
			assert.False(t, created)
			assert.Same(t, s, found)
		}()
	}
	w.WaitTimeout(t, utils.DefaultTestWaitTimeout)

	all := m.Sessions()
	require.Len(t, all, max)
	assert.Equal(t, max, m.Len())

	require.NoError(t, m.CloseAll(ReasonServerShutdown))
	assert.Equal(t, 0, m.Len())
	for _, s := range all {
		assert.Equal(t, StateClosed, s.State())
		assert.Equal(t, ReasonServerShutdown, s.Reason())
	}

	closesMu.Lock()
	assert.Equal(t, max, closes, "all sessions should be closed")
	closesMu.Unlock()

	// Removal is idempotent.
	for _, s := range all {
		m.remove(s.ID())
		s.Close(ReasonClosed)
	}
	assert.Equal(t, 0, m.Len())
}

func TestManagerUnknownSID(t *testing.T) {
	m := NewManager(&ManagerConfig{OnSession: func(s *Session) *Callbacks { return nil }})

	_, _, err := m.Resolve("does-not-exist")
	var protoErr *transport.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, transport.CodeUnknownSID, protoErr.Code)
}

func TestManagerWithoutHandler(t *testing.T) {
	m := NewManager(nil)
	_, err := m.CreateSession()
	assert.ErrorIs(t, err, transport.ErrNoHandler)
}

func TestManagerIDCollision(t *testing.T) {
	m := NewManager(&ManagerConfig{
		OnSession:   func(s *Session) *Callbacks { return nil },
		IDGenerator: func() (string, error) { return "same", nil },
	})

	s, err := m.CreateSession()
	require.NoError(t, err)
	assert.Equal(t, "same", s.ID())

	_, err = m.CreateSession()
	assert.ErrorIs(t, err, ErrBase64IDMaxTryReached)
}

func TestManagerCustomIDGenerator(t *testing.T) {
	var (
		n  int
		mu sync.Mutex
	)
	m := NewManager(&ManagerConfig{
		OnSession: func(s *Session) *Callbacks { return nil },
		IDGenerator: func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			n++
			return "sid-" + strconv.Itoa(n), nil
		},
	})

	s, err := m.CreateSession()
	require.NoError(t, err)
	assert.Equal(t, "sid-1", s.ID())

	s, ok := m.Session("sid-1")
	assert.True(t, ok)
	s.Close(ReasonClosed)
	_, ok = m.Session("sid-1")
	assert.False(t, ok)
}
