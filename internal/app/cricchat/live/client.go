package live

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"cricchat.local/internal/snapshot"
	"github.com/gorilla/websocket"
)

// client 连接一个 websocket 与一个 Root
type client struct {
	conn     *websocket.Conn
	store    *snapshot.Store
	session  string
	canWrite bool

	mu      sync.Mutex
	pending []Message
	closed  bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// push 排队一条消息；新的 render 覆盖还没发出的旧 render
func (c *client) push(m Message) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if m.Type == TypeRender {
		c.pending = slices.DeleteFunc(c.pending, func(p Message) bool { return p.Type == TypeRender })
	}
	c.pending = append(c.pending, m)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *client) take() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.pending
	c.pending = nil
	return ms
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

// readPump 把连接上收到的快照写进 store
func (c *client) readPump() {
	defer c.close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "session", c.session, "err", err)
			}
			return
		}

		switch msg.Type {
		case TypeSnapshot:
			if !c.canWrite {
				c.push(Message{Type: TypeError, Error: "forbidden: writer token required"})
				continue
			}
			data := bytes.TrimSpace(msg.Data)
			if len(data) == 0 || !json.Valid(data) {
				c.push(Message{Type: TypeError, Error: "snapshot data must be JSON"})
				continue
			}
			// 最后写入者胜出
			c.store.Set(data)
		case TypePing:
			c.push(Message{Type: TypePong})
		default:
			c.push(Message{Type: TypeError, Error: "unknown message type"})
		}
	}
}

// writePump 把排队的消息写到连接上
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-c.wake:
			for _, m := range c.take() {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteJSON(m); err != nil {
					c.close()
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
