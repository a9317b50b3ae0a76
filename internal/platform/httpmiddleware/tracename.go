package httpmiddleware

import (
	"cricchat.local/gee"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TraceName 用路由模板重命名 otelhttp 创建的 span
func TraceName() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		ctx.Next()
		span := trace.SpanFromContext(ctx.Req.Context())
		if !span.IsRecording() {
			return
		}
		route := ctx.RoutePattern
		if route == "" {
			route = "UNMATCHED"
		}
		span.SetName(ctx.Method + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
	}
}
