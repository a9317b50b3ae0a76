package httpmiddleware

import (
	"net/http"
	"strings"

	"cricchat.local/gee"
	"cricchat.local/internal/platform/auth"
)

// parseBearer 解析 "Bearer <token>"，格式不对返回空串
func parseBearer(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

// tokenFrom Authorization 头优先；浏览器 WebSocket 无法设置头，退回 ?token=
func tokenFrom(ctx *gee.Context) string {
	if h := ctx.Req.Header.Get("Authorization"); h != "" {
		return parseBearer(h)
	}
	return ctx.Query("token")
}

func verify(ts auth.TokenService, ctx *gee.Context) (auth.Identity, bool) {
	token := tokenFrom(ctx)
	if token == "" {
		return auth.Identity{}, false
	}
	claims, err := ts.Verify(token)
	if err != nil {
		return auth.Identity{}, false
	}
	return auth.Identity{Subject: claims.Subject, Role: claims.Role}, true
}

// AuthRequired 必须携带有效令牌
func AuthRequired(ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id, ok := verify(ts, ctx)
		if !ok {
			ctx.AbortWithError(http.StatusUnauthorized, "missing or invalid token")
			return
		}
		ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), id))
		ctx.Next()
	}
}

// AuthOptional 有合法令牌则写入身份，否则匿名继续
func AuthOptional(ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if id, ok := verify(ts, ctx); ok {
			ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), id))
		}
		ctx.Next()
	}
}

// RequireSubject 令牌的 subject 必须等于路由参数 param（会话码）
func RequireSubject(param string, role string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id, ok := auth.GetIdentity(ctx.Req.Context())
		if !ok {
			ctx.AbortWithError(http.StatusUnauthorized, "unauthorized")
			return
		}
		if id.Role != role || id.Subject != ctx.Param(param) {
			ctx.AbortWithError(http.StatusForbidden, "forbidden")
			return
		}
		ctx.Next()
	}
}

// BasicAuth hash 为空时整组路由返回 404，相当于关闭
func BasicAuth(user, hash string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if hash == "" {
			ctx.AbortWithError(http.StatusNotFound, "not found")
			return
		}
		u, p, ok := ctx.Req.BasicAuth()
		if !ok || auth.CheckBasic(user, hash, u, p) != nil {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="cric_chat debug"`)
			ctx.AbortWithError(http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), auth.Identity{Subject: u, Role: auth.RoleAdmin}))
		ctx.Next()
	}
}
