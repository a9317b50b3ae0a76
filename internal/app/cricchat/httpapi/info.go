package httpapi

import (
	"net/http"

	"cricchat.local/gee"
	"cricchat.local/internal/app/cricchat/tools"
	"cricchat.local/internal/app/cricchat/usage"
	"cricchat.local/internal/platform/httpmiddleware"
)

const previewLen = 200

func NewRootHandler(info ServerInfo) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		ctx.JSON(http.StatusOK, gee.H{
			"name":        "Cricket Chat MCP Server",
			"status":      "running",
			"version":     info.Version,
			"description": info.Description,
			"endpoints": map[string]string{
				"mcp":       "/mcp (HTTP POST, JSON-RPC)",
				"health":    "/health",
				"info":      "/info",
				"widgets":   "/debug/widgets",
				"snapshots": "/api/v1/snapshots",
			},
		})
	}
}

func NewHealthHandler(info ServerInfo) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		ctx.JSON(http.StatusOK, gee.H{
			"status": "healthy",
			"server": info.Name,
		})
	}
}

func NewInfoHandler(info ServerInfo, svc *tools.Service, agg *usage.Aggregator) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		list := svc.List()
		names := make([]string, 0, len(list))
		for _, t := range list {
			names = append(names, t.Name)
		}
		body := gee.H{
			"name":        info.Name,
			"version":     info.Version,
			"description": info.Description,
			"tools":       len(names),
			"tool_list":   names,
		}
		if agg != nil {
			body["usage"] = agg.Snapshot()
		}
		ctx.JSON(http.StatusOK, body)
	}
}

type widgetInfo struct {
	Identifier   string `json:"identifier"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	TemplateURI  string `json:"template_uri"`
	Invoking     string `json:"invoking"`
	Invoked      string `json:"invoked"`
	ResponseText string `json:"response_text"`
	HTMLLength   int    `json:"html_length"`
	HTMLPreview  string `json:"html_preview"`
}

// preview 按字符截断，超出时补 "..."
func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen]) + "..."
}

func NewDebugWidgetsHandler(catalog *tools.Catalog, publicBaseURL string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		base := httpmiddleware.PublicBaseURL(ctx.Req, publicBaseURL)
		ws := catalog.All()
		infos := make([]widgetInfo, 0, len(ws))
		uris := make([]string, 0, len(ws))
		for _, w := range ws {
			html := w.HTML(base)
			infos = append(infos, widgetInfo{
				Identifier:   w.Identifier,
				Title:        w.Title,
				Description:  w.Description,
				TemplateURI:  w.TemplateURI,
				Invoking:     w.Invoking,
				Invoked:      w.Invoked,
				ResponseText: w.ResponseText,
				HTMLLength:   len([]rune(html)),
				HTMLPreview:  preview(html),
			})
			uris = append(uris, w.TemplateURI)
		}
		ctx.JSON(http.StatusOK, gee.H{
			"status":         "widgets_enabled",
			"mime_type":      tools.MIMEType,
			"widget_count":   len(ws),
			"widgets":        infos,
			"widgets_by_uri": uris,
		})
	}
}

// NewWidgetHTMLHandler GET /widgets/:name，name 可以是工具名或视图名
func NewWidgetHTMLHandler(catalog *tools.Catalog, publicBaseURL string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		name := ctx.Param("name")
		w, ok := catalog.ByID(name)
		if !ok {
			w, ok = catalog.ByView(name)
		}
		if !ok {
			ctx.AbortWithError(http.StatusNotFound, "unknown widget: "+name)
			return
		}
		ctx.HTML(http.StatusOK, w.HTML(httpmiddleware.PublicBaseURL(ctx.Req, publicBaseURL)))
	}
}
