package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strayhub/chat-core/pkg/log"
)

// Options bounds a client connection.
type Options struct {
	MaxMessageSize int64
	PongWait       time.Duration
	PingInterval   time.Duration
	WriteWait      time.Duration
}

// Client is one connected websocket session.
type Client struct {
	ID     string
	UserID string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	opts   Options
}

// NewClient wraps a websocket connection for the hub.
func NewClient(id, userID string, h *Hub, conn *websocket.Conn, opts Options) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		opts:   opts,
	}
}

// ReadPump reads inbound frames and hands them to the handler until the
// connection drops, then unregisters the client.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.opts.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.L().Warn().Err(err).Str("client_id", c.ID).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the send buffer to the connection and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON queues a JSON-encoded payload, dropping it if the client's
// buffer is full.
func (c *Client) SendJSON(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
	}
	return nil
}
