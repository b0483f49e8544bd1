package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Inbound frames are small JSON commands.
	maxMessageSize = 4 * 1024

	sendBuffer = 64
)

// Client is one dashboard websocket connection.
type Client struct {
	ID string

	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient registers conn with the hub. It returns nil when the hub has
// stopped.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	c := &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan Message, sendBuffer),
	}
	select {
	case hub.register <- c:
		return c
	case <-hub.done:
		return nil
	}
}

// Run pumps messages until the connection closes. It blocks, so call it
// from the websocket handler.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

// readPump hands text frames to the hub's command handler and notices
// disconnects.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debug("client read failed", "client", c.ID, "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		if handle := c.hub.handler(); handle != nil {
			handle(c, data)
		}
	}
}

// writePump is the only writer on conn.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(msg.frameType(), msg.Data); err != nil {
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
