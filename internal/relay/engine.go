// Package relay ties authentication, membership, the message log and the
// connection hub together for each connection.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
	"github.com/thereayou/guildchat/internal/websocket"
	"github.com/thereayou/guildchat/pkg/roomkey"
)

type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*models.Identity, error)
}

type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type Memberships interface {
	Group(ctx context.Context, name string) (*models.Group, error)
	IsMember(ctx context.Context, name string, userID uuid.UUID) (bool, error)
}

type MessageLog interface {
	AppendMessage(ctx context.Context, message *models.Message) error
}

// Hub is the fan-out index the engine registers connections with.
type Hub interface {
	Subscribe(roomKey string, sub websocket.Subscriber)
	Unsubscribe(roomKey string, sub websocket.Subscriber)
	Broadcast(roomKey string, payload []byte) int
	Evict(roomKey string, userID uuid.UUID) int
}

type Engine struct {
	identities  IdentityResolver
	directory   Directory
	memberships Memberships
	messages    MessageLog
	hub         Hub
}

func NewEngine(identities IdentityResolver, directory Directory, memberships Memberships, messages MessageLog, hub Hub) *Engine {
	return &Engine{
		identities:  identities,
		directory:   directory,
		memberships: memberships,
		messages:    messages,
		hub:         hub,
	}
}

// Open authenticates the handshake and resolves its room. On error the
// session never exists and nothing is registered with the hub.
func (e *Engine) Open(ctx context.Context, hs Handshake) (*Session, error) {
	if (hs.Peer == "") == (hs.Group == "") {
		return nil, ErrInvalidHandshake
	}

	identity, err := e.identities.Resolve(ctx, hs.Credential)
	if err != nil {
		log.Info().Str("module", "relay").Msg("handshake rejected: credential")
		return nil, ErrAuthRejected
	}
	var room Room
	if hs.Peer != "" {
		room, err = e.pairRoom(ctx, identity, hs.Peer)
	} else {
		room, err = e.groupRoom(ctx, identity, hs.Group)
	}
	if err != nil {
		log.Info().Str("module", "relay").Str("user", identity.Email).Err(err).Msg("handshake rejected")
		return nil, err
	}
	return &Session{Identity: *identity, Room: room, state: StateAuthenticated}, nil
}

func (e *Engine) pairRoom(ctx context.Context, identity *models.Identity, peerEmail string) (Room, error) {
	peer, err := e.directory.FindUserByEmail(ctx, peerEmail)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return Room{}, ErrPeerNotFound
		}
		return Room{}, err
	}
	peerID := peer.Identity()
	return Room{
		Key:  roomkey.Pair(identity.Email, peer.Email),
		Kind: models.KindDirect,
		Peer: &peerID,
	}, nil
}

func (e *Engine) groupRoom(ctx context.Context, identity *models.Identity, rawName string) (Room, error) {
	name, err := roomkey.GroupName(rawName)
	if err != nil {
		return Room{}, ErrInvalidHandshake
	}

	group, err := e.memberships.Group(ctx, name)
	if err != nil {
		if errors.Is(err, database.ErrGroupNotFound) {
			return Room{}, ErrPeerNotFound
		}
		return Room{}, err
	}

	ok, err := e.memberships.IsMember(ctx, name, identity.ID)
	if err != nil {
		if errors.Is(err, database.ErrGroupNotFound) {
			return Room{}, ErrPeerNotFound
		}
		return Room{}, err
	}
	if !ok {
		return Room{}, ErrNotAMember
	}

	return Room{
		Key:   roomkey.Group(group.Name),
		Kind:  models.KindGroup,
		Group: group,
	}, nil
}

// Attach registers the connection with the hub and moves the session to
// Subscribed. Group membership is checked again after subscribing: a leave
// that lands between Open and Attach either sees the connection and evicts
// it, or is seen here.
func (e *Engine) Attach(ctx context.Context, s *Session, conn websocket.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return fmt.Errorf("attach in state %s: %w", s.state, ErrSessionClosed)
	}
	e.hub.Subscribe(s.Room.Key.String(), conn)

	if err := e.checkGroup(ctx, s); err != nil {
		e.hub.Unsubscribe(s.Room.Key.String(), conn)
		s.state = StateRejected
		log.Info().Str("module", "relay").Str("user", s.Identity.Email).
			Str("room", s.Room.Key.String()).Err(err).Msg("attach rejected")
		return err
	}
	s.conn = conn
	s.state = StateSubscribed

	log.Info().Str("module", "relay").Str("user", s.Identity.Email).
		Str("room", s.Room.Key.String()).Str("conn", conn.ID().String()).Msg("connection subscribed")
	return nil
}

// checkGroup confirms that the session's group still exists under the same
// id and that the user is still in it. Direct rooms always pass.
func (e *Engine) checkGroup(ctx context.Context, s *Session) error {
	if s.Room.Kind != models.KindGroup {
		return nil
	}

	group, err := e.memberships.Group(ctx, s.Room.Group.Name)
	if err != nil {
		if errors.Is(err, database.ErrGroupNotFound) {
			return ErrNotAMember
		}
		return err
	}
	if group.ID != s.Room.Group.ID {
		return ErrNotAMember
	}

	ok, err := e.memberships.IsMember(ctx, group.Name, s.Identity.ID)
	if err != nil {
		if errors.Is(err, database.ErrGroupNotFound) {
			return ErrNotAMember
		}
		return err
	}
	if !ok {
		return ErrNotAMember
	}
	return nil
}

// Receive handles one inbound frame: validate, persist, then broadcast.
// Malformed frames and storage failures only affect this frame. A group
// session whose user is no longer a member of that group is closed.
func (e *Engine) Receive(ctx context.Context, s *Session, raw []byte) error {
	conn, ok := s.connection()
	if !ok {
		return ErrSessionClosed
	}

	frame, err := websocket.ParseInbound(raw)
	if err != nil {
		log.Debug().Str("module", "relay").Str("conn", conn.ID().String()).Err(err).Msg("frame dropped")
		return err
	}

	if err := e.checkGroup(ctx, s); err != nil {
		if errors.Is(err, ErrNotAMember) {
			log.Info().Str("module", "relay").Str("user", s.Identity.Email).
				Str("room", s.Room.Key.String()).Msg("member gone, closing session")
			e.Close(s)
			conn.Close()
		}
		return err
	}

	message := s.newMessage(frame.Message)
	if err := e.messages.AppendMessage(ctx, message); err != nil {
		log.Error().Str("module", "relay").Str("user", s.Identity.Email).
			Str("room", s.Room.Key.String()).Err(err).Msg("append failed")
		if sendErr := conn.TrySend(mustJSON(websocket.ErrorFrame{Error: ErrPersistenceFailure.Error()})); sendErr != nil {
			log.Debug().Str("module", "relay").Err(sendErr).Msg("error frame not delivered")
		}
		return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	out := websocket.OutboundFrame{
		Message:    message.Body,
		Sender:     s.Identity.Email,
		SenderName: s.Identity.Name,
		Timestamp:  websocket.FormatTimestamp(message.CreatedAt),
	}
	sent := e.hub.Broadcast(s.Room.Key.String(), mustJSON(out))

	log.Debug().Str("module", "relay").Str("room", s.Room.Key.String()).
		Uint("message", message.ID).Int("sent_to", sent).Msg("message relayed")
	return nil
}

func (s *Session) newMessage(body string) *models.Message {
	m := &models.Message{
		Kind:     s.Room.Kind,
		RoomKey:  s.Room.Key.String(),
		SenderID: s.Identity.ID,
		Body:     body,
	}
	switch s.Room.Kind {
	case models.KindDirect:
		peer := s.Room.Peer.ID
		m.RecipientID = &peer
	case models.KindGroup:
		group := s.Room.Group.ID
		m.GroupID = &group
	}
	return m
}

// Close deregisters the connection. Calling it again is a no-op.
func (e *Engine) Close(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed || s.state == StateRejected {
		return
	}
	if s.conn != nil {
		e.hub.Unsubscribe(s.Room.Key.String(), s.conn)
		log.Info().Str("module", "relay").Str("user", s.Identity.Email).
			Str("room", s.Room.Key.String()).Str("conn", s.conn.ID().String()).Msg("connection closed")
	}
	s.state = StateClosed
}

// RevokeGroup disconnects every live connection of userID from the group
// room, used after the user leaves the group.
func (e *Engine) RevokeGroup(groupName string, userID uuid.UUID) int {
	return e.hub.Evict(roomkey.Group(groupName).String(), userID)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("relay: marshal %T: %v", v, err))
	}
	return data
}
