package websocket

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Subscriber is one live connection as seen by the hub.
type Subscriber interface {
	ID() uuid.UUID
	UserID() uuid.UUID
	// TrySend queues a payload without blocking.
	TrySend(payload []byte) error
	Close()
}

// Hub maps room keys to the connections currently subscribed to them.
// It lives for the whole process and is safe for concurrent use.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]Subscriber
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[uuid.UUID]Subscriber),
	}
}

func (h *Hub) Subscribe(roomKey string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[roomKey]
	if !ok {
		room = make(map[uuid.UUID]Subscriber)
		h.rooms[roomKey] = room
	}
	room[sub.ID()] = sub

	log.Debug().Str("module", "websocket.hub").Str("room", roomKey).
		Str("conn", sub.ID().String()).Int("size", len(room)).Msg("subscribed")
}

// Unsubscribe is a no-op when the connection is not in the room.
func (h *Hub) Unsubscribe(roomKey string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(roomKey, sub.ID())
}

func (h *Hub) removeLocked(roomKey string, id uuid.UUID) bool {
	room, ok := h.rooms[roomKey]
	if !ok {
		return false
	}
	if _, ok := room[id]; !ok {
		return false
	}
	delete(room, id)
	if len(room) == 0 {
		delete(h.rooms, roomKey)
	}
	log.Debug().Str("module", "websocket.hub").Str("room", roomKey).Str("conn", id.String()).Msg("unsubscribed")
	return true
}

// Broadcast sends payload to every connection subscribed when the call
// starts and returns how many accepted it. A connection that is gone or
// backed up is skipped.
func (h *Hub) Broadcast(roomKey string, payload []byte) int {
	subs := h.snapshot(roomKey)

	sent := 0
	for _, sub := range subs {
		if err := sub.TrySend(payload); err != nil {
			log.Warn().Str("module", "websocket.hub").Str("room", roomKey).
				Str("conn", sub.ID().String()).Err(err).Msg("delivery skipped")
			continue
		}
		sent++
	}

	log.Debug().Str("module", "websocket.hub").Str("room", roomKey).
		Int("sent_to", sent).Int("dropped", len(subs)-sent).Msg("broadcast result")
	return sent
}

func (h *Hub) snapshot(roomKey string) []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[roomKey]
	subs := make([]Subscriber, 0, len(room))
	for _, sub := range room {
		subs = append(subs, sub)
	}
	return subs
}

// Evict unsubscribes and closes every connection of userID in the room.
// It returns the number of connections closed.
func (h *Hub) Evict(roomKey string, userID uuid.UUID) int {
	h.mu.Lock()
	var evicted []Subscriber
	for id, sub := range h.rooms[roomKey] {
		if sub.UserID() == userID {
			evicted = append(evicted, sub)
			h.removeLocked(roomKey, id)
		}
	}
	h.mu.Unlock()

	for _, sub := range evicted {
		sub.Close()
	}
	return len(evicted)
}

// RoomSize is the number of connections in the room.
func (h *Hub) RoomSize(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}

// RoomUsers returns the distinct users connected to the room.
func (h *Hub) RoomUsers(roomKey string) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	users := make([]uuid.UUID, 0, len(h.rooms[roomKey]))
	for _, sub := range h.rooms[roomKey] {
		if _, ok := seen[sub.UserID()]; ok {
			continue
		}
		seen[sub.UserID()] = struct{}{}
		users = append(users, sub.UserID())
	}
	return users
}

// Shutdown closes every connection and empties the hub.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	var all []Subscriber
	for _, room := range h.rooms {
		for _, sub := range room {
			all = append(all, sub)
		}
	}
	h.rooms = make(map[string]map[uuid.UUID]Subscriber)
	h.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
	log.Info().Str("module", "websocket.hub").Int("closed", len(all)).Msg("hub shut down")
}
