package session

import (
	"sync"

	"github.com/gorilla/websocket"

	"pairpad/internal/models"
)

// Client is the connection handle shared between the transport layer and a
// room's peer set. The transport owns the connection lifetime; rooms only
// hold it for delivery and removal.
type Client struct {
	Conn *websocket.Conn
	mu   sync.Mutex
	hook func(models.Frame) error
}

func NewClient(conn *websocket.Conn) *Client { return &Client{Conn: conn} }

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.Frame) error) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send delivers a frame to the peer. Writes are serialized per connection.
func (c *Client) Send(frame models.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		return c.hook(frame)
	}
	if c.Conn == nil {
		return nil
	}
	return c.Conn.WriteJSON(frame)
}
