// Package transport owns the WebSocket edge: upgrading HTTP requests,
// pumping JSON envelopes in both directions, and keepalive. Everything it
// reads is handed to a types.ConnectionRouter; it holds no game state.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/metrics"
	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is the deadline for a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before its read
	// deadline expires. Refreshed on every pong.
	pongWait = 60 * time.Second

	// pingPeriod is the keepalive interval; must be under pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound envelopes. Lobby payloads are small;
	// anything larger is a misbehaving client.
	maxMessageSize = 8192

	// sendBufferSize is the per-connection outbound queue. A client that
	// falls this far behind starts losing frames and will resync from the
	// next snapshot.
	sendBufferSize = 256
)

// wsConnection is the slice of *websocket.Conn the client uses, extracted so
// tests can substitute a scripted connection.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// Client is one live WebSocket connection. It implements
// types.ClientInterface. Identity (the profile id) is attached by the lobby
// once the connection joins or creates a room; until then only the
// connection id is meaningful.
type Client struct {
	conn   wsConnection
	router types.ConnectionRouter
	id     types.ConnectionIdType

	mu          sync.RWMutex
	profileId   types.ProfileIdType
	displayName types.DisplayNameType
	closed      bool

	closeOnce sync.Once
	send      chan []byte
}

// NewClient wraps an established connection. The caller starts the pumps.
func NewClient(conn wsConnection, router types.ConnectionRouter) *Client {
	return &Client{
		conn:   conn,
		router: router,
		id:     types.ConnectionIdType(uuid.NewString()),
		send:   make(chan []byte, sendBufferSize),
	}
}

// --- types.ClientInterface ---

func (c *Client) GetID() types.ConnectionIdType {
	return c.id
}

func (c *Client) GetProfileID() types.ProfileIdType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profileId
}

func (c *Client) SetProfileID(id types.ProfileIdType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profileId = id
}

func (c *Client) GetDisplayName() types.DisplayNameType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.displayName
}

func (c *Client) SetDisplayName(name types.DisplayNameType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displayName = name
}

// SendEvent marshals one envelope and queues it for this connection.
func (c *Client) SendEvent(event string, payload any) {
	data, err := types.MarshalEvent(event, payload)
	if err != nil {
		logging.Error(context.Background(), "Failed to marshal event",
			zap.String("connection_id", string(c.id)),
			zap.String("event", event),
			zap.Error(err))
		return
	}
	c.SendRaw(data)
}

// SendRaw queues pre-serialized envelope bytes. Never blocks: a full buffer
// drops the frame and the client resyncs from the next snapshot.
func (c *Client) SendRaw(data []byte) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	// The closed check above races with Disconnect; recover covers the
	// window where the channel closes underneath us.
	defer func() {
		if r := recover(); r != nil {
			logging.Warn(context.Background(), "Send to closing connection dropped",
				zap.String("connection_id", string(c.id)))
		}
	}()

	select {
	case c.send <- data:
	default:
		logging.Warn(context.Background(), "Send buffer full, dropping frame",
			zap.String("connection_id", string(c.id)))
	}
}

// Disconnect closes the outbound queue, which drives the write pump to send
// a close frame and tear the connection down. Safe to call more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump decodes inbound envelopes and hands them to the router. Exactly
// one per connection. On exit the router hears the disconnect exactly once.
func (c *Client) readPump() {
	defer func() {
		c.router.HandleClientDisconnect(c)
		c.Disconnect()
		_ = c.conn.Close()
		metrics.DecConnection()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logging.Warn(context.Background(), "Unexpected websocket close",
					zap.String("connection_id", string(c.id)),
					zap.Error(err))
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg types.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Warn(context.Background(), "Failed to decode envelope",
				zap.String("connection_id", string(c.id)),
				zap.Error(err))
			continue
		}
		if msg.Event == "" {
			continue
		}

		c.router.Route(context.Background(), c, &msg)
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. Exactly one per connection; it is the only writer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Warn(context.Background(), "Write failed, dropping connection",
					zap.String("connection_id", string(c.id)),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
