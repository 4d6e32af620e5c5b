package relay

import (
	"errors"

	"github.com/thereayou/guildchat/internal/websocket"
)

var (
	ErrAuthRejected       = errors.New("authentication rejected")
	ErrNotAMember         = errors.New("not a member of this group")
	ErrPeerNotFound       = errors.New("peer not found")
	ErrInvalidHandshake   = errors.New("invalid handshake")
	ErrPersistenceFailure = errors.New("message could not be stored")
	ErrSessionClosed      = errors.New("session is not subscribed")

	// ErrMalformedFrame is the frame decoder's error, re-exported so callers
	// only need this package.
	ErrMalformedFrame = websocket.ErrMalformedFrame
)
