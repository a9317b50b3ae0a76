package httpmiddleware

import (
	"strconv"
	"time"

	"cricchat.local/gee"
	"cricchat.local/internal/platform/metrics"
)

// Metrics 必须挂在 Engine 上（Use），路由匹配后 RoutePattern 才有值，所以在 Next 之后读取
func Metrics() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		start := time.Now()
		metrics.HTTPInflightRequests.Inc()
		defer metrics.HTTPInflightRequests.Dec()

		ctx.Next()

		route := ctx.RoutePattern
		if route == "" {
			route = "UNMATCHED"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(ctx.Method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		metrics.HTTPRequestDurationSeconds.WithLabelValues(ctx.Method, route).Observe(time.Since(start).Seconds())
	}
}
