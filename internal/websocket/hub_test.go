package websocket

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingSubscriber always refuses delivery.
type failingSubscriber struct {
	id, userID uuid.UUID
	closed     bool
}

func (f *failingSubscriber) ID() uuid.UUID        { return f.id }
func (f *failingSubscriber) UserID() uuid.UUID    { return f.userID }
func (f *failingSubscriber) TrySend([]byte) error { return errors.New("socket is dead") }
func (f *failingSubscriber) Close()               { f.closed = true }

func newTestClient(userID uuid.UUID) *Client {
	return NewClient(nil, userID, ClientConfig{SendBuffer: 8})
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg, ok := <-c.Outbound():
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHub_BroadcastToRoom(t *testing.T) {
	hub := NewHub()
	a := newTestClient(uuid.New())
	b := newTestClient(uuid.New())
	other := newTestClient(uuid.New())

	hub.Subscribe("pair:ab", a)
	hub.Subscribe("pair:ab", b)
	hub.Subscribe("group:Other", other)

	n := hub.Broadcast("pair:ab", []byte("hi"))
	assert.Equal(t, 2, n)

	assert.Equal(t, [][]byte{[]byte("hi")}, drain(a))
	assert.Equal(t, [][]byte{[]byte("hi")}, drain(b))
	assert.Empty(t, drain(other))

	assert.Equal(t, 0, hub.Broadcast("pair:none", []byte("x")))
}

func TestHub_SubscribeTwiceDeliversOnce(t *testing.T) {
	hub := NewHub()
	a := newTestClient(uuid.New())

	hub.Subscribe("room", a)
	hub.Subscribe("room", a)

	assert.Equal(t, 1, hub.Broadcast("room", []byte("once")))
	assert.Len(t, drain(a), 1)
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	a := newTestClient(uuid.New())

	hub.Unsubscribe("room", a)
	hub.Subscribe("room", a)
	hub.Unsubscribe("room", a)
	hub.Unsubscribe("room", a)

	assert.Equal(t, 0, hub.RoomSize("room"))
	assert.Equal(t, 0, hub.Broadcast("room", []byte("gone")))
	assert.Empty(t, drain(a))
}

func TestHub_FailedDeliveryDoesNotAbort(t *testing.T) {
	hub := NewHub()
	dead := &failingSubscriber{id: uuid.New(), userID: uuid.New()}
	closed := newTestClient(uuid.New())
	closed.Close()
	alive := newTestClient(uuid.New())

	hub.Subscribe("room", dead)
	hub.Subscribe("room", closed)
	hub.Subscribe("room", alive)

	assert.Equal(t, 1, hub.Broadcast("room", []byte("hi")))
	assert.Len(t, drain(alive), 1)
}

func TestHub_FullQueueIsSkipped(t *testing.T) {
	hub := NewHub()
	slow := NewClient(nil, uuid.New(), ClientConfig{SendBuffer: 1})
	hub.Subscribe("room", slow)

	assert.Equal(t, 1, hub.Broadcast("room", []byte("1")))
	assert.Equal(t, 0, hub.Broadcast("room", []byte("2")))
	assert.ErrorIs(t, slow.TrySend([]byte("3")), ErrClientQueueFull)
}

func TestHub_EvictClosesUserConnections(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	first := newTestClient(user)
	second := newTestClient(user)
	stays := newTestClient(uuid.New())
	elsewhere := newTestClient(user)

	hub.Subscribe("group:G", first)
	hub.Subscribe("group:G", second)
	hub.Subscribe("group:G", stays)
	hub.Subscribe("group:H", elsewhere)

	assert.Equal(t, 2, hub.Evict("group:G", user))
	assert.Equal(t, 1, hub.RoomSize("group:G"))
	assert.ErrorIs(t, first.TrySend([]byte("x")), ErrClientClosed)
	assert.ErrorIs(t, second.TrySend([]byte("x")), ErrClientClosed)
	assert.NoError(t, elsewhere.TrySend([]byte("x")))
}

func TestHub_RoomUsers(t *testing.T) {
	hub := NewHub()
	user := uuid.New()
	hub.Subscribe("room", newTestClient(user))
	hub.Subscribe("room", newTestClient(user))
	hub.Subscribe("room", newTestClient(uuid.New()))

	assert.Len(t, hub.RoomUsers("room"), 2)
	assert.Equal(t, 3, hub.RoomSize("room"))
}

func TestHub_Shutdown(t *testing.T) {
	hub := NewHub()
	a := newTestClient(uuid.New())
	hub.Subscribe("room", a)

	hub.Shutdown()

	assert.Equal(t, 0, hub.RoomSize("room"))
	assert.ErrorIs(t, a.TrySend([]byte("x")), ErrClientClosed)
}

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClient(nil, uuid.New(), ClientConfig{SendBuffer: 256})
			room := fmt.Sprintf("room-%d", i%3)
			hub.Subscribe(room, c)
			for j := 0; j < 10; j++ {
				hub.Broadcast(room, []byte("msg"))
			}
			hub.Unsubscribe(room, c)
			c.Close()
		}(i)
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		require.Equal(t, 0, hub.RoomSize(fmt.Sprintf("room-%d", i)))
	}
}
