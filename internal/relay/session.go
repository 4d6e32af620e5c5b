package relay

import (
	"sync"

	"github.com/google/uuid"

	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/websocket"
	"github.com/thereayou/guildchat/pkg/roomkey"
)

// State is where a connection is in its lifecycle.
//
//	Connecting -> Authenticated -> Subscribed -> Closed
//	Connecting, Authenticated -> Rejected
//
// Open returns no session on rejection, so StateRejected is only reported by
// callers that track handshakes themselves.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateSubscribed
	StateClosed
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Handshake is what the transport extracted from the upgrade request.
// Exactly one of Peer and Group is set; Group is still percent-encoded.
type Handshake struct {
	Credential string
	Peer       string
	Group      string
}

// Room is the resolved target of a session.
type Room struct {
	Key   roomkey.Key
	Kind  models.MessageKind
	Peer  *models.Identity
	Group *models.Group
}

// Session is the relay's view of one connection.
type Session struct {
	Identity models.Identity
	Room     Room

	mu    sync.Mutex
	state State
	conn  websocket.Subscriber
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) connection() (websocket.Subscriber, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn, s.state == StateSubscribed
}

// ID is the connection id once attached, uuid.Nil before.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return uuid.Nil
	}
	return s.conn.ID()
}
