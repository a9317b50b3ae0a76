package view

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"cricchat.local/internal/snapshot"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Registry 持有全部挂载点，按占位身份（会话 code + 根元素 id）索引；
// 有上限，超出时卸载最久未用的 root
type Registry struct {
	views     map[string]View
	order     []string
	resolvers Resolvers

	mu    sync.Mutex
	roots *lru.Cache[string, *Root]
}

func NewRegistry(max int, resolvers Resolvers, views ...View) (*Registry, error) {
	if max <= 0 {
		max = 1000
	}
	roots, err := lru.NewWithEvict[string, *Root](max, func(_ string, r *Root) {
		r.Unmount()
	})
	if err != nil {
		return nil, fmt.Errorf("root cache: %w", err)
	}
	g := &Registry{
		views:     make(map[string]View, len(views)),
		resolvers: resolvers,
		roots:     roots,
	}
	for _, v := range views {
		g.views[v.Name()] = v
		g.order = append(g.order, v.Name())
	}
	return g, nil
}

func (g *Registry) View(name string) (View, bool) {
	v, ok := g.views[name]
	return v, ok
}

// Views 按注册顺序
func (g *Registry) Views() []View {
	out := make([]View, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.views[name])
	}
	return out
}

func rootKey(session, rootID string) string {
	return session + "/" + rootID
}

// Mount 首次使用时创建；同一占位重复挂载返回已有 root
func (g *Registry) Mount(session, widget string, p snapshot.Provider) (*Root, error) {
	v, ok := g.views[widget]
	if !ok || session == "" || p == nil {
		slog.Warn("mount target missing", "session", session, "widget", widget)
		return nil, ErrMountTargetMissing
	}
	key := rootKey(session, v.RootID())

	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.roots.Get(key); ok {
		return r, nil
	}
	r := newRoot(key, v, p, g.resolvers)
	g.roots.Add(key, r)
	slog.Debug("root mounted", "root", key)
	return r, nil
}

// MountSession 挂载会话绑定的 widget。会话可能在取出与挂载之间被淘汰，
// 淘汰回调的 UnmountSession 此时看不到新 root，所以挂载后再确认一次
func (g *Registry) MountSession(sessions *snapshot.Sessions, sess *snapshot.Session) (*Root, error) {
	r, err := g.Mount(sess.Code, sess.Widget, sess.Store)
	if err != nil {
		return nil, err
	}
	if !sessions.Alive(sess.Code) {
		g.UnmountSession(sess.Code)
		return nil, snapshot.ErrSessionNotFound
	}
	return r, nil
}

// UnmountSession 卸载某个会话的全部 root
func (g *Registry) UnmountSession(session string) int {
	prefix := session + "/"
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, key := range g.roots.Keys() {
		if strings.HasPrefix(key, prefix) && g.roots.Remove(key) {
			n++
		}
	}
	return n
}

func (g *Registry) Len() int {
	return g.roots.Len()
}

// Close 全部卸载
func (g *Registry) Close() {
	g.roots.Purge()
}
