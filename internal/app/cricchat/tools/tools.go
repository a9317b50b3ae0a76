// tools 定义服务的 MCP 工具：输入 schema、对应的 widget，以及调用 Cricbuzz 的处理函数
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"cricchat.local/internal/app/cricchat/usage"
	"cricchat.local/internal/cricbuzz"
	"cricchat.local/internal/platform/metrics"
	"cricchat.local/internal/platform/trace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// API Cricbuzz 上游，*cricbuzz.Client 实现它
type API interface {
	PlayerInfo(ctx context.Context, playerID string) (json.RawMessage, error)
	PlayerBatting(ctx context.Context, playerID string) (json.RawMessage, error)
	PlayerBowling(ctx context.Context, playerID string) (json.RawMessage, error)
	PlayerCareer(ctx context.Context, playerID string) (json.RawMessage, error)
	PlayerNews(ctx context.Context, playerID string) (json.RawMessage, error)
	TrendingPlayers(ctx context.Context) (json.RawMessage, error)
	SearchPlayer(ctx context.Context, name string) (json.RawMessage, error)
	Rankings(ctx context.Context, category, formatType string, women bool) (json.RawMessage, error)
	Records(ctx context.Context, q cricbuzz.RecordsQuery) (json.RawMessage, error)
	RecordFilters(ctx context.Context) (json.RawMessage, error)
}

// Result 工具调用结果；失败也是 Result（IsError），不是传输层错误
type Result struct {
	Text       string
	Structured any
	IsError    bool
	Meta       map[string]any
}

type handler func(ctx context.Context, args json.RawMessage) (Result, error)

type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Widget      *Widget
	handle      handler
}

// Meta 只有带界面的工具有 _meta
func (t Tool) Meta() map[string]any {
	if t.Widget == nil {
		return nil
	}
	return t.Widget.Meta()
}

type Service struct {
	api       API
	catalog   *Catalog
	collector usage.Collector
	tools     []Tool
	byName    map[string]int
	now       func() time.Time
}

func NewService(api API, catalog *Catalog, collector usage.Collector) *Service {
	if collector == nil {
		collector = usage.Nop{}
	}
	s := &Service{api: api, catalog: catalog, collector: collector, byName: map[string]int{}, now: time.Now}

	handlers := map[string]handler{
		"get-player-info":      s.playerInfo,
		"get-player-batting":   s.playerBatting,
		"get-player-bowling":   s.playerBowling,
		"get-player-news":      s.playerNews,
		"get-player-career":    s.playerCareer,
		"get-trending-players": s.trending,
		"get-rankings":         s.rankings,
		"get-records":          s.records,
	}
	for _, w := range catalog.All() {
		h, ok := handlers[w.Identifier]
		if !ok {
			slog.Warn("widget without tool handler", "widget", w.Identifier)
			continue
		}
		w := w
		s.add(Tool{Name: w.Identifier, Description: w.Description, InputSchema: schemas[w.Identifier], Widget: &w, handle: h})
	}
	s.add(Tool{
		Name: "search-player",
		Description: "Search for cricket players by name. " +
			"Returns a list of players matching the search query with their IDs. " +
			"Use this to find a player's ID before getting detailed information.",
		InputSchema: schemas["search-player"],
		handle:      s.searchPlayer,
	})
	s.add(Tool{
		Name: "get-record-filters",
		Description: "Get available statistics filters and record types from Cricbuzz. " +
			"Returns available stats types (like 'mostRuns', 'mostWickets', etc.), years, teams, and match types. " +
			"Use this to discover what filters are available before calling get-records. " +
			"This is a metadata endpoint to help construct valid get-records queries.",
		InputSchema: schemas["get-record-filters"],
		handle:      s.recordFilters,
	})
	return s
}

func (s *Service) add(t Tool) {
	s.byName[t.Name] = len(s.tools)
	s.tools = append(s.tools, t)
}

func (s *Service) List() []Tool { return s.tools }

func (s *Service) Catalog() *Catalog { return s.catalog }

type callerKey struct{}

// WithCaller 记录调用方（客户端 IP），进入用量事件
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// Call 执行工具。未知工具、参数校验失败、上游失败都返回 IsError 结果
func (s *Service) Call(ctx context.Context, name string, args json.RawMessage) Result {
	start := s.now()
	ctx, span := trace.Tracer().Start(ctx, "tool.call")
	defer span.End()
	span.SetAttributes(attribute.String(trace.ToolName, name))

	var res Result
	i, known := s.byName[name]
	if !known {
		res = errorResult("Unknown tool: " + name)
	} else {
		out, err := s.tools[i].handle(ctx, args)
		var verr *validationError
		switch {
		case errors.As(err, &verr):
			res = errorResult("Input validation error: " + verr.msg)
		case err != nil:
			res = errorResult("Error executing tool: " + err.Error())
		default:
			res = out
			res.Meta = s.tools[i].Meta()
		}
	}

	event := usage.ToolCallEvent{Tool: name, Status: "ok", Duration: s.now().Sub(start), CalledAt: start}
	if res.IsError {
		event.Status, event.Error = "error", res.Text
		span.SetStatus(codes.Error, res.Text)
		slog.Warn("tool call failed", "tool", name, "err", res.Text)
	} else {
		slog.Info("tool call", "tool", name, "duration", event.Duration)
	}
	if caller, ok := ctx.Value(callerKey{}).(string); ok {
		event.ClientIP = caller
	}
	if !known {
		// 未知工具名不进 label，避免基数失控
		metrics.ToolCalls.WithLabelValues("unknown", event.Status).Inc()
	} else {
		metrics.ToolCalls.WithLabelValues(name, event.Status).Inc()
	}
	s.collector.Collect(event)
	return res
}

func errorResult(text string) Result {
	return Result{Text: text, IsError: true}
}
