// Package hub carries the WebSocket transport for live sessions: one Client
// per connection, with the usual read/write pump pair.
package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chempion-hawk/messenger/internal/config"
	"github.com/chempion-hawk/messenger/pkg/log"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client wraps one live WebSocket connection. It implements registry.Conn:
// Enqueue never blocks, and Close makes in-flight enqueues fail fast.
type Client struct {
	sessionID string
	conn      *websocket.Conn
	send      chan []byte
	cfg       config.WebSocketConfig

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient creates a client for an upgraded connection.
func NewClient(sessionID string, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, cfg.SendBuffer),
		cfg:       cfg,
		closed:    make(chan struct{}),
	}
}

// SessionID returns the session this connection belongs to.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Enqueue hands a frame to the write pump without blocking. A closed
// connection or a full buffer is a delivery fault for the caller to log.
func (c *Client) Enqueue(data []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// Close shuts the connection down. Idempotent; safe under concurrent close
// and error paths.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
	return nil
}

// ReadPump reads inbound frames and hands them to handler in arrival order.
// onClose fires exactly once when the connection dies, whatever the cause.
func (c *Client) ReadPump(handler func(sessionID string, raw []byte), onClose func(sessionID string)) {
	defer func() {
		c.Close()
		onClose(c.sessionID)
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger := log.L()
				logger.Debug().Err(err).Str(log.FieldSessionID, c.sessionID).Msg("websocket read error")
			}
			break
		}

		handler(c.sessionID, message)
	}
}

// WritePump drains the send buffer onto the socket and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
