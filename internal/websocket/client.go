package websocket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

type ClientConfig struct {
	ReadLimit  int64
	PongWait   time.Duration
	SendBuffer int
}

func (c ClientConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// FrameHandler receives what a client reads. HandleClose runs exactly once,
// after the read loop stops.
type FrameHandler interface {
	HandleFrame(client *Client, raw []byte)
	HandleClose(client *Client)
}

// Client owns one WebSocket connection: a read pump, a write pump and the
// queue between the hub and the write pump.
type Client struct {
	id     uuid.UUID
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	cfg    ClientConfig

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, cfg ClientConfig) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	return &Client{
		id:     uuid.New(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBuffer),
		cfg:    cfg,
	}
}

func (c *Client) ID() uuid.UUID     { return c.id }
func (c *Client) UserID() uuid.UUID { return c.userID }

// Outbound exposes the send queue for tests that run without a socket.
func (c *Client) Outbound() <-chan []byte { return c.send }

func (c *Client) TrySend(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.TrySend(data)
}

// Close stops the write pump, which then closes the socket. Safe to call
// more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// ReadPump reads frames until the connection fails or is closed.
func (c *Client) ReadPump(handler FrameHandler) {
	defer func() {
		handler.HandleClose(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if msgType != websocket.TextMessage {
			log.Debug().Str("module", "websocket.client").Str("conn", c.id.String()).Msg("non-text frame ignored")
			continue
		}
		handler.HandleFrame(c, raw)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Warn().Str("module", "websocket.client").Str("conn", c.id.String()).
			Int64("limit", c.cfg.ReadLimit).Msg("frame exceeded read limit")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		log.Warn().Str("module", "websocket.client").Str("conn", c.id.String()).Err(err).Msg("unexpected close")
	default:
		log.Debug().Str("module", "websocket.client").Str("conn", c.id.String()).Err(err).Msg("connection closed")
	}
}

// WritePump writes queued payloads, one frame each, and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Str("module", "websocket.client").Str("conn", c.id.String()).Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
