package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/karagenc/socketio-server/engine.io/parser"
	"github.com/karagenc/socketio-server/engine.io/transport"
)

var (
	ErrUpgradeInProgress = errors.New("session: an upgrade is already in progress")
	ErrSameTransport     = errors.New("session: already on the requested transport")
	ErrUpgradeTimeout    = errors.New("session: upgrade timed out")
	ErrUpgradeAborted    = errors.New("session: upgrade aborted by an unexpected packet")
)

const probe = "probe"

// BeginUpgrade registers c as the upgrade candidate. Until the client sends
// UPGRADE, c only carries the probe exchange and the session keeps using its
// current connection.
func (s *Session) BeginUpgrade(c Connection) error {
	s.mu.Lock()
	switch {
	case s.state != StateOpen:
		s.mu.Unlock()
		return ErrNotOpen
	case s.candidate != nil:
		s.mu.Unlock()
		return ErrUpgradeInProgress
	case s.conn.Type() == c.Type():
		s.mu.Unlock()
		return ErrSameTransport
	}

	s.candidate = c
	if s.upgradeTimeout > 0 {
		s.upgradeTimer = time.AfterFunc(s.upgradeTimeout, func() {
			s.cancelUpgrade(c, &transport.TimeoutError{After: s.upgradeTimeout})
		})
	}
	s.mu.Unlock()

	s.debug.Log("Upgrade started", c.Type())
	return nil
}

// handleProbePacketLocked is entered with the lock held and releases it.
func (s *Session) handleProbePacketLocked(c Connection, packet *parser.Packet) {
	switch {
	case packet.Type == parser.PacketTypePing && string(packet.Data) == probe:
		err := c.Send(parser.MustNewPacket(parser.PacketTypePong, packet.Data))
		if err == nil && s.conn.Type().IsPolling() {
			// Completes the pending GET so that the client can pause polling.
			_ = s.conn.Send(parser.MustNewPacket(parser.PacketTypeNoop, nil))
		}
		s.mu.Unlock()
		if err != nil {
			s.cancelUpgrade(c, &transport.ConnectionError{Transport: c.Type(), Err: err})
		}

	case packet.Type == parser.PacketTypeUpgrade:
		old := s.conn
		s.conn = c
		s.candidate = nil
		if s.upgradeTimer != nil {
			s.upgradeTimer.Stop()
			s.upgradeTimer = nil
		}

		// The swap and the resend happen under the same lock as every Send,
		// so nothing in flight can reach the retired connection.
		var resend []*parser.Packet
		for _, p := range old.Retire() {
			if p.Type != parser.PacketTypeNoop {
				resend = append(resend, p)
			}
		}
		var err error
		if len(resend) > 0 {
			err = c.Send(resend...)
		}
		s.mu.Unlock()

		old.Abort()
		s.debug.Log("Upgraded", fmt.Sprintf("%s -> %s", old.Type(), c.Type()))
		if err != nil {
			s.Fail(c, ReasonError, err)
		}

	default:
		s.mu.Unlock()
		s.cancelUpgrade(c, ErrUpgradeAborted)
	}
}

// cancelUpgrade drops the candidate and leaves the session on its prior transport.
func (s *Session) cancelUpgrade(c Connection, err error) {
	s.mu.Lock()
	if s.candidate != c {
		s.mu.Unlock()
		return
	}
	s.candidate = nil
	if s.upgradeTimer != nil {
		s.upgradeTimer.Stop()
		s.upgradeTimer = nil
	}
	s.mu.Unlock()

	c.Abort()
	s.debug.Log("Upgrade cancelled", err)
	s.getCallbacks().OnError(err)
}
