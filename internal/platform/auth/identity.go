package auth

import "context"

// Identity 已验证的调用方：Subject 为快照会话码，Role 为授予的权限
type Identity struct {
	Subject string
	Role    string
}

const (
	RoleWriter = "writer" // 可替换快照
	RoleAdmin  = "admin"  // /debug 页面
)

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
