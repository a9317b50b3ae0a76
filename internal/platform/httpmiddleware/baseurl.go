package httpmiddleware

import (
	"net"
	"net/http"
	"strings"
)

// PublicBaseURL widget 外壳回连用的绝对地址。configured 非空时直接用；
// 否则由请求推断，只有可信代理转发的 X-Forwarded-Proto/Host 才采信
func PublicBaseURL(req *http.Request, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	scheme, host := "http", req.Host
	if req.TLS != nil {
		scheme = "https"
	}
	remoteHost, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		remoteHost = req.RemoteAddr
	}
	if ip := net.ParseIP(remoteHost); ip != nil && isTrustedProxy(ip) {
		if p := strings.TrimSpace(req.Header.Get("X-Forwarded-Proto")); p == "http" || p == "https" {
			scheme = p
		}
		if h := strings.TrimSpace(req.Header.Get("X-Forwarded-Host")); h != "" {
			host = h
		}
	}
	return scheme + "://" + host
}
