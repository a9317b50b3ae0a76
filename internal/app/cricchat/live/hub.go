// live 通过 websocket 把渲染结果推给浏览器外壳，并接收外壳发来的快照
package live

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"cricchat.local/gee"
	"cricchat.local/internal/platform/auth"
	"cricchat.local/internal/platform/metrics"
	"cricchat.local/internal/snapshot"
	"cricchat.local/internal/view"
	"github.com/gorilla/websocket"
)

const (
	// 单条消息的写超时
	writeWait = 10 * time.Second

	// 等待下一个 pong 的时长
	pongWait = 60 * time.Second

	// ping 周期，必须小于 pongWait
	pingPeriod = (pongWait * 9) / 10

	// 单条消息上限；快照是完整的工具输出
	maxMessageSize = 512 * 1024
)

const (
	TypeRender   = "render"
	TypeSnapshot = "snapshot"
	TypePing     = "ping"
	TypePong     = "pong"
	TypeError    = "error"
)

// Message 服务端下发的消息
type Message struct {
	Type  string `json:"type"`
	State string `json:"state,omitempty"`
	HTML  string `json:"html,omitempty"`
	Error string `json:"error,omitempty"`
}

// inbound 外壳发来的消息
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func renderMessage(o view.Output) Message {
	return Message{Type: TypeRender, State: o.State.String(), HTML: o.HTML}
}

// Hub 管理所有 websocket 连接。连接只是 Root 的观察者，Root 的生命周期归 Registry
type Hub struct {
	sessions *snapshot.Sessions
	registry *view.Registry
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub origins 为允许的 Origin；包含 "*" 时不检查
func NewHub(sessions *snapshot.Sessions, registry *view.Registry, origins []string) *Hub {
	h := &Hub{
		sessions: sessions,
		registry: registry,
		clients:  make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(origins, "*") {
				return true
			}
			return slices.Contains(origins, origin)
		},
	}
	return h
}

// ServeWS GET /ws/:code/:widget
func (h *Hub) ServeWS(ctx *gee.Context) {
	code, widget := ctx.Param("code"), ctx.Param("widget")
	sess, err := h.sessions.Get(code)
	if err != nil {
		ctx.AbortWithError(http.StatusNotFound, "session not found")
		return
	}
	if sess.Widget != widget {
		slog.Warn("mount target missing", "session", code, "widget", widget, "session_widget", sess.Widget)
		ctx.AbortWithError(http.StatusNotFound, view.ErrMountTargetMissing.Error())
		return
	}
	root, err := h.registry.MountSession(h.sessions, sess)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, view.ErrMountTargetMissing) || errors.Is(err, snapshot.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		ctx.AbortWithError(status, err.Error())
		return
	}

	id, ok := auth.GetIdentity(ctx.Req.Context())
	canWrite := ok && id.Role == auth.RoleWriter && id.Subject == code

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Req, nil)
	if err != nil {
		// Upgrade 已经写了错误响应
		slog.Warn("websocket upgrade failed", "session", code, "err", err)
		ctx.Abort()
		return
	}

	c := &client{
		conn:     conn,
		store:    sess.Store,
		session:  code,
		canWrite: canWrite,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	if !h.add(c) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer h.remove(c)

	cancel := root.Listen(func(o view.Output) { c.push(renderMessage(o)) })
	defer cancel()
	c.push(renderMessage(root.Current()))

	slog.Debug("websocket connected", "session", code, "widget", widget, "writer", canWrite)
	go c.writePump()
	c.readPump()
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.WebsocketClients.Inc()
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		metrics.WebsocketClients.Dec()
	}
	c.close()
}

// Clients 当前连接数
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close 通知所有连接关闭，之后的新连接直接拒绝
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	slog.Info("websocket hub closed", "clients", len(clients))
}
