package gee

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// serviceRoutes 与对外服务相同的路由形状，handler 回显匹配到的模式与参数
func serviceRoutes() *Engine {
	echo := func(ctx *Context) {
		ctx.JSON(http.StatusOK, H{"pattern": ctx.RoutePattern, "params": ctx.Params})
	}
	engine := New()
	engine.GET("/", echo)
	engine.POST("/mcp", echo)
	engine.GET("/mcp", echo)
	engine.GET("/widgets/:name", echo)
	engine.GET("/widgets/index", echo)
	engine.GET("/ws/:code/:widget", echo)
	engine.GET("/blob/:id", echo)
	api := engine.Group("/api/v1")
	api.POST("/snapshots", echo)
	api.PUT("/snapshots/:code", echo)
	api.GET("/snapshots/:code/render/:widget", echo)
	return engine
}

func TestRouteMatching(t *testing.T) {
	engine := serviceRoutes()
	cases := []struct {
		method  string
		path    string
		pattern string
		params  map[string]string
	}{
		{"GET", "/", "/", nil},
		{"POST", "/mcp", "/mcp", nil},
		{"GET", "/widgets/player-info", "/widgets/:name", map[string]string{"name": "player-info"}},
		// 静态段优先于参数段
		{"GET", "/widgets/index", "/widgets/index", nil},
		{"GET", "/ws/Xq7L/icc-rankings", "/ws/:code/:widget", map[string]string{"code": "Xq7L", "widget": "icc-rankings"}},
		{"POST", "/api/v1/snapshots", "/api/v1/snapshots", nil},
		{"PUT", "/api/v1/snapshots/Xq7L", "/api/v1/snapshots/:code", map[string]string{"code": "Xq7L"}},
		{"GET", "/api/v1/snapshots/Xq7L/render/player-news", "/api/v1/snapshots/:code/render/:widget",
			map[string]string{"code": "Xq7L", "widget": "player-news"}},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("status %d: %s", w.Code, w.Body.String())
			}
			var got struct {
				Pattern string            `json:"pattern"`
				Params  map[string]string `json:"params"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Pattern != tc.pattern {
				t.Fatalf("pattern %q, want %q", got.Pattern, tc.pattern)
			}
			for k, v := range tc.params {
				if got.Params[k] != v {
					t.Fatalf("param %s = %q, want %q", k, got.Params[k], v)
				}
			}
		})
	}
}

func TestUnmatchedRoutes(t *testing.T) {
	engine := serviceRoutes()
	cases := []struct {
		method string
		path   string
		code   int
		allow  string
	}{
		{"GET", "/api/v1/sessions", http.StatusNotFound, ""},
		{"GET", "/blob", http.StatusNotFound, ""},
		{"DELETE", "/mcp", http.StatusMethodNotAllowed, "GET,POST"},
		{"GET", "/api/v1/snapshots/Xq7L", http.StatusMethodNotAllowed, "PUT"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.code {
			t.Errorf("%s %s: status %d, want %d", tc.method, tc.path, w.Code, tc.code)
		}
		if got := w.Header().Get("Allow"); got != tc.allow {
			t.Errorf("%s %s: Allow %q, want %q", tc.method, tc.path, got, tc.allow)
		}
		var body ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != tc.code {
			t.Errorf("%s %s: body %s", tc.method, tc.path, w.Body.String())
		}
	}
}

func TestCustomFallbacksRunMiddleware(t *testing.T) {
	var seen []string
	engine := New()
	engine.Use(func(ctx *Context) {
		seen = append(seen, ctx.Method+" "+ctx.RoutePattern)
		ctx.Next()
	})
	engine.NoRoute(func(ctx *Context) {
		ctx.JSON(http.StatusNotFound, H{"error": "widget not found"})
	})
	engine.NoMethod(func(ctx *Context) {
		ctx.JSON(http.StatusMethodNotAllowed, H{"error": "use POST"})
	})
	engine.POST("/mcp", func(ctx *Context) { ctx.Status(http.StatusAccepted) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/widgets/nope", nil))
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "widget not found") {
		t.Fatalf("no route: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
	if w.Code != http.StatusMethodNotAllowed || !strings.Contains(w.Body.String(), "use POST") {
		t.Fatalf("no method: %d %s", w.Code, w.Body.String())
	}

	// 未匹配时 RoutePattern 为空
	if strings.Join(seen, "|") != "GET |GET " {
		t.Fatalf("middleware saw %q", seen)
	}
}

func TestGroupMiddlewareByPrefix(t *testing.T) {
	var hits []string
	engine := New()
	api := engine.Group("/api/v1")
	api.Use(func(ctx *Context) {
		hits = append(hits, ctx.Path)
		ctx.Next()
	})
	api.POST("/snapshots", func(ctx *Context) {})
	engine.GET("/health", func(ctx *Context) {})

	for _, r := range [][2]string{{"POST", "/api/v1/snapshots"}, {"GET", "/health"}, {"GET", "/api/v1/missing"}} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(r[0], r[1], nil))
	}
	// 分组中间件按前缀生效，未注册的路径同样经过
	if strings.Join(hits, ",") != "/api/v1/snapshots,/api/v1/missing" {
		t.Fatalf("hits %v", hits)
	}
}

func TestRoutesListing(t *testing.T) {
	engine := New()
	api := engine.Group("/api/v1")
	api.PUT("/snapshots/:code", func(ctx *Context) {})
	api.GET("/snapshots/:code/render/:widget", func(ctx *Context) {})

	routes := engine.Routes()
	want := []string{"GET /api/v1/snapshots/:code/render/:widget", "PUT /api/v1/snapshots/:code"}
	if strings.Join(routes, "\n") != strings.Join(want, "\n") {
		t.Fatalf("routes: got %v", routes)
	}
}
