package realtime

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxControlSize = 64 << 10
	sendBuffer     = 64
)

// controlMessage is what clients may send: subscribe, unsubscribe or ping.
type controlMessage struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// client is one websocket connection. streams is guarded by the hub lock.
type client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  string
	streams map[string]struct{}

	outbox chan Message
	done   chan struct{}
	once   sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID string) *client {
	return &client{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		streams: make(map[string]struct{}),
		outbox:  make(chan Message, sendBuffer),
		done:    make(chan struct{}),
	}
}

// push never blocks. A client that cannot keep up is disconnected.
func (c *client) push(message Message) {
	select {
	case <-c.done:
	case c.outbox <- message:
	default:
		c.hub.log.Warn("dropping slow realtime client", zap.String("user_id", c.userID))
		go c.close()
	}
}

func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxControlSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("websocket closed", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		c.handleControl(payload)
	}
}

func (c *client) handleControl(payload []byte) {
	if len(payload) == 0 {
		return
	}
	var msg controlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.hub.log.Debug("invalid control payload", zap.String("user_id", c.userID), zap.Error(err))
		return
	}

	switch strings.ToLower(strings.TrimSpace(msg.Action)) {
	case "subscribe":
		c.hub.join(c, msg.Streams)
	case "unsubscribe":
		c.hub.leave(c, msg.Streams)
	case "ping":
		c.push(Message{Event: "pong"})
	default:
		c.hub.log.Debug("unsupported control action", zap.String("action", msg.Action), zap.String("user_id", c.userID))
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.writeClose(websocket.CloseGoingAway, "server shutting down")
			return
		case message := <-c.outbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
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

func (c *client) writeClose(code int, reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

// reject closes a client that was never attached to the hub.
func (c *client) reject(code int, reason string) {
	c.writeClose(code, reason)
	_ = c.conn.Close()
}

// close is idempotent. outbox is never closed so a concurrent push cannot
// panic; the pumps observe done instead.
func (c *client) close() {
	c.once.Do(func() {
		c.hub.detach(c)
		close(c.done)
		_ = c.conn.Close()
	})
}
