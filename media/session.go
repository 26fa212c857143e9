package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Session states.
const (
	Pending    = "pending"
	Connecting = "connecting"
	Closed     = "closed"
)

// Session is the peer connection of one call.
type Session struct {
	PeerID    string
	Initiator bool

	mu    sync.Mutex
	state string
	live  bool
	conn  *webrtc.PeerConnection
}

// State returns the session state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setLive records whether media flows and reports whether that changed.
func (s *Session) setLive(live bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == live {
		return false
	}
	s.live = live
	return true
}

// connect moves a pending session to connecting. It reports false when the
// session was not pending.
func (s *Session) connect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Pending {
		return false
	}
	s.state = Connecting
	return true
}

// close closes the peer connection and reports the state it left.
func (s *Session) close() (string, error) {
	s.mu.Lock()
	prev := s.state
	s.state = Closed
	s.mu.Unlock()
	if prev == Closed {
		return prev, nil
	}
	return prev, s.conn.Close()
}
