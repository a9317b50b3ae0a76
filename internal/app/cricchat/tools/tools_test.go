package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cricchat.local/internal/app/cricchat/usage"
	"cricchat.local/internal/cricbuzz"
)

func newService(t *testing.T) (*Service, *usage.ChannelCollector) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/stats/v1/rankings/"):
			_, _ = w.Write([]byte(`{"rank":[{"rank":"1","name":"Joe Root","rating":"899"}]}`))
		case r.URL.Path == "/stats/v1/player/404":
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/stats/v1/player/403":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"You are not subscribed to this API."}`))
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.RequestURI()})
		}
	}))
	t.Cleanup(srv.Close)
	api := cricbuzz.New(srv.URL, "k", "h", time.Second, cricbuzz.WithHTTPClient(srv.Client()))
	col := usage.NewChannelCollector(100)
	return NewService(api, NewCatalog(Widgets), col), col
}

func TestToolList(t *testing.T) {
	s, _ := newService(t)
	var names []string
	for _, tool := range s.List() {
		names = append(names, tool.Name)
		if tool.InputSchema == nil || tool.InputSchema["additionalProperties"] != false {
			t.Errorf("%s: schema %v", tool.Name, tool.InputSchema)
		}
	}
	want := "get-player-info,get-player-batting,get-player-bowling,get-player-news,get-player-career," +
		"get-trending-players,get-rankings,get-records,search-player,get-record-filters"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("tools = %s", got)
	}

	info := s.List()[0]
	meta := info.Meta()
	if meta["openai/outputTemplate"] != "ui://widget/player-info.html" || meta["openai/widgetAccessible"] != true {
		t.Fatalf("meta %v", meta)
	}
	if s.List()[8].Meta() != nil {
		t.Fatal("search-player must not carry widget meta")
	}
}

func TestCallSuccess(t *testing.T) {
	s, col := newService(t)
	ctx := WithCaller(context.Background(), "203.0.113.7")

	cases := []struct {
		tool, args, text, path string
	}{
		{"get-player-info", `{"player_id":"1413"}`, "Successfully retrieved player information for player ID 1413.", "/stats/v1/player/1413"},
		{"get-player-batting", `{"player_id":"1413"}`, "Successfully retrieved batting statistics for player ID 1413.", "/stats/v1/player/1413/batting"},
		{"get-player-bowling", `{"player_id":"1413"}`, "Successfully retrieved bowling statistics for player ID 1413.", "/stats/v1/player/1413/bowling"},
		{"get-player-career", `{"player_id":"1413"}`, "Successfully retrieved career statistics for player ID 1413.", "/stats/v1/player/1413/career"},
		{"get-player-news", `{"player_id":"1413"}`, "Successfully retrieved news for player ID 1413.", "/news/v1/player/1413"},
		{"get-trending-players", ``, "Successfully retrieved trending players.", "/stats/v1/player/trending"},
		{"search-player", `{"player_name":"Kohli"}`, "Successfully searched for player: Kohli.", "/stats/v1/player/search?plrN=Kohli"},
		{"get-records", `{"stats_type":"mostRuns","match_type":"1"}`, "Successfully retrieved mostRuns records.", "/stats/v1/topstats/0?matchType=1&statsType=mostRuns"},
		{"get-record-filters", `{}`, "Successfully retrieved available record filters and statistics types.", "/stats/v1/topstats"},
	}
	for _, tc := range cases {
		res := s.Call(ctx, tc.tool, json.RawMessage(tc.args))
		if res.IsError || res.Text != tc.text {
			t.Fatalf("%s: %+v", tc.tool, res)
		}
		raw, _ := res.Structured.(json.RawMessage)
		var body struct{ Path string }
		if err := json.Unmarshal(raw, &body); err != nil || body.Path != tc.path {
			t.Fatalf("%s: structured %s", tc.tool, raw)
		}
	}

	ev := <-col.Events()
	if ev.Tool != "get-player-info" || ev.Status != "ok" || ev.ClientIP != "203.0.113.7" {
		t.Fatalf("event %+v", ev)
	}
}

func TestCallRankingsAddsMetadata(t *testing.T) {
	s, _ := newService(t)
	res := s.Call(context.Background(), "get-rankings", json.RawMessage(`{"category":"bowlers","format_type":"t20","is_women":true}`))
	if res.IsError || res.Text != "Successfully retrieved Women's T20 Bowlers rankings." {
		t.Fatalf("%+v", res)
	}
	data, err := json.Marshal(res.Structured)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"metadata":{"category":"bowlers","format_type":"t20","is_women":true,"gender":"Women's","format_name":"T20","category_name":"Bowlers"},"rank":[{"name":"Joe Root","rank":"1","rating":"899"}]}`
	if string(data) != want {
		t.Fatalf("structured\n got %s\nwant %s", data, want)
	}
	if res.Meta["openai/outputTemplate"] != "ui://widget/icc-rankings.html" {
		t.Fatalf("meta %v", res.Meta)
	}

	def := s.Call(context.Background(), "get-rankings", nil)
	if def.Text != "Successfully retrieved Men's TEST Batsmen rankings." {
		t.Fatalf("defaults: %+v", def)
	}
}

func TestCallErrors(t *testing.T) {
	s, col := newService(t)
	ctx := context.Background()

	cases := []struct {
		tool, args, text string
	}{
		{"get-scores", `{}`, "Unknown tool: get-scores"},
		{"get-player-info", `{}`, "Input validation error: player_id: field required"},
		{"get-player-info", `{"player_id":"1","extra":1}`, `Input validation error: unknown field "extra"`},
		{"get-trending-players", `{"x":1}`, `Input validation error: unknown field "x"`},
		{"get-rankings", `{"category":"keepers"}`, "Input validation error: category: must be one of batsmen, bowlers, allrounders, teams"},
		{"get-rankings", `{"format_type":"odi","is_women":true}`, "Error executing tool: ODI format is not available for women's rankings"},
		{"get-records", `{"year":"2024"}`, "Input validation error: stats_type: field required"},
		{"get-player-info", `{"player_id":"404"}`, "Error executing tool: No data available for player_info"},
		{"get-player-info", `{"player_id":"403"}`, "Error executing tool: You are not subscribed to this API."},
	}
	for _, tc := range cases {
		res := s.Call(ctx, tc.tool, json.RawMessage(tc.args))
		if !res.IsError || res.Text != tc.text {
			t.Errorf("%s %s: %+v", tc.tool, tc.args, res)
		}
		if res.Meta != nil {
			t.Errorf("%s: error result carries meta", tc.tool)
		}
		ev := <-col.Events()
		if ev.Status != "error" || ev.Error != tc.text {
			t.Errorf("event %+v", ev)
		}
	}
}

func TestWidgetHTMLAndCatalog(t *testing.T) {
	c := NewCatalog(Widgets)
	w, ok := c.ByURI("ui://widget/cricket-records.html")
	if !ok || w.Identifier != "get-records" || w.RootID != "cricket-records-root" {
		t.Fatalf("by uri: %+v %v", w, ok)
	}
	if _, ok := c.ByView("icc-rankings"); !ok {
		t.Fatal("by view")
	}
	html := w.HTML("https://cric.example/")
	if !strings.HasPrefix(html, `<div id="cricket-records-root"></div>`) {
		t.Fatalf("html: %.80s", html)
	}
	if strings.Contains(html, "__CONFIG__") ||
		!strings.Contains(html, `{"root":"cricket-records-root","widget":"cricket-records","base":"https://cric.example"}`) {
		t.Fatal("shell config not injected")
	}
	if got := w.ResourceDescription(); !strings.HasSuffix(got, " Interactive widget for Cricket Records & Statistics.") {
		t.Fatalf("description %q", got)
	}
}
