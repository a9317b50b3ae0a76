package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"cricchat.local/gee"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLen 外部传入的过长 ID 直接丢弃重新生成
const maxRequestIDLen = 128

func ReqID() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id := ctx.Req.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = GenerateReqID()
			if id == "" {
				id = strconv.FormatInt(time.Now().UnixNano(), 10)
			}
			ctx.Req.Header.Set(requestIDHeader, id)
		}
		ctx.SetHeader(requestIDHeader, id)

		ctx.Next()
	}
}

// GenerateReqID 32 个十六进制字符，随机源失败时返回空串
func GenerateReqID() string {
	src := make([]byte, 16)
	if _, err := rand.Read(src); err != nil {
		return ""
	}
	return hex.EncodeToString(src)
}
