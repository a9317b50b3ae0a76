package middleware

import (
	"net/http"
	"strings"

	"cricchat.local/gee"
)

// CORS 允许列表中的 Origin 跨域访问；列表包含 "*" 时放行任意来源。
// 预检请求（OPTIONS + Access-Control-Request-Method）直接返回 204。
func CORS(allowOrigins []string) gee.HandlerFunc {
	anyOrigin := false
	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			anyOrigin = true
			continue
		}
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(ctx *gee.Context) {
		origin := ctx.Req.Header.Get("Origin")
		if origin == "" {
			ctx.Next()
			return
		}
		_, ok := allowed[origin]
		if !ok && !anyOrigin {
			ctx.Next()
			return
		}

		if anyOrigin {
			ctx.SetHeader("Access-Control-Allow-Origin", "*")
		} else {
			ctx.SetHeader("Access-Control-Allow-Origin", origin)
			ctx.Writer.Header().Add("Vary", "Origin")
		}
		ctx.SetHeader("Access-Control-Expose-Headers", "X-Request-ID, Mcp-Session-Id")

		if ctx.Method == http.MethodOptions && ctx.Req.Header.Get("Access-Control-Request-Method") != "" {
			ctx.SetHeader("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			ctx.SetHeader("Access-Control-Allow-Headers", "Authorization, Content-Type, Mcp-Session-Id, Mcp-Protocol-Version, X-Request-ID")
			ctx.SetHeader("Access-Control-Max-Age", "600")
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}
