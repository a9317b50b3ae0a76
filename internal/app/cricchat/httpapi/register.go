package httpapi

import (
	"time"

	"cricchat.local/gee"
	"cricchat.local/internal/app/cricchat/live"
	"cricchat.local/internal/app/cricchat/mcp"
	"cricchat.local/internal/app/cricchat/tools"
	"cricchat.local/internal/app/cricchat/usage"
	"cricchat.local/internal/imageresolve"
	"cricchat.local/internal/platform/auth"
	"cricchat.local/internal/platform/httpmiddleware"
	"cricchat.local/internal/platform/ratelimit"
	"cricchat.local/internal/snapshot"
	"cricchat.local/internal/view"
)

// ServerInfo 描述信息接口返回的服务元数据
type ServerInfo struct {
	Name        string
	Version     string
	Description string
}

// DebugAuth /debug/widgets 的账号；PasswordHash 为空时该路由返回 404
type DebugAuth struct {
	User         string
	PasswordHash string
}

// RegisterInfoRoutes 挂载 /、/health、/info 与 /debug/widgets。
// agg 可以为 nil，此时 /info 不带调用统计
func RegisterInfoRoutes(engine *gee.Engine, info ServerInfo, svc *tools.Service, agg *usage.Aggregator, debug DebugAuth, publicBaseURL string) {
	engine.GET("/", NewRootHandler(info))
	engine.GET("/health", NewHealthHandler(info))
	engine.GET("/info", NewInfoHandler(info, svc, agg))
	engine.GET("/widgets/:name", NewWidgetHTMLHandler(svc.Catalog(), publicBaseURL))

	dbg := engine.Group("/debug")
	dbg.Use(httpmiddleware.BasicAuth(debug.User, debug.PasswordHash))
	dbg.GET("/widgets", NewDebugWidgetsHandler(svc.Catalog(), publicBaseURL))
}

// RegisterMCPRoutes POST /mcp 按 IP 限流，limit 为每分钟次数
func RegisterMCPRoutes(engine *gee.Engine, srv *mcp.Server, limiter *ratelimit.Limiter, limit int) {
	engine.POST("/mcp", httpmiddleware.RateLimit(limiter, "mcp", limit, time.Minute), srv.Handle)
	engine.GET("/mcp", srv.MethodNotAllowed)
	engine.DELETE("/mcp", srv.MethodNotAllowed)
}

// RegisterSnapshotRoutes 在 /api/v1 下挂载快照会话接口
func RegisterSnapshotRoutes(api *gee.RouterGroup, sessions *snapshot.Sessions, registry *view.Registry, ts auth.TokenService, limiter *ratelimit.Limiter, limit int, publicBaseURL string) {
	h := &snapshotHandlers{sessions: sessions, registry: registry, tokens: ts, publicBaseURL: publicBaseURL}

	//创建会话 限流
	api.POST("/snapshots", httpmiddleware.RateLimit(limiter, "session", limit, time.Minute), h.create)
	api.GET("/snapshots/:code/render/:widget", h.render)

	// 分组中间件按前缀匹配，会波及上面两条路由，所以写令牌校验挂在单条路由上
	api.PUT("/snapshots/:code", httpmiddleware.AuthRequired(ts), httpmiddleware.RequireSubject("code", auth.RoleWriter), h.replace)
}

// RegisterLiveRoutes 挂载 websocket 推送与图片 blob；升级请求按 IP 限流
func RegisterLiveRoutes(engine *gee.Engine, hub *live.Hub, ts auth.TokenService, blobs *imageresolve.BlobStore, limiter *ratelimit.Limiter, limit int) {
	engine.GET("/ws/:code/:widget", httpmiddleware.RateLimit(limiter, "ws", limit, time.Minute), httpmiddleware.AuthOptional(ts), hub.ServeWS)
	engine.GET("/blob/:id", NewBlobHandler(blobs))
}
