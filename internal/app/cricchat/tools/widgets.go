package tools

import "fmt"

const MIMEType = "text/html+skybridge"

// Widget 一个带界面的工具：工具名、资源 URI 与 view 的对应关系
type Widget struct {
	Identifier   string // 工具名
	Title        string
	Description  string
	TemplateURI  string
	Invoking     string
	Invoked      string
	View         string // internal/view 里的 Name()
	RootID       string
	ResponseText string
}

func widget(id, view, title, description, invoking, invoked, response string) Widget {
	return Widget{
		Identifier:   id,
		Title:        title,
		Description:  description,
		TemplateURI:  "ui://widget/" + view + ".html",
		Invoking:     invoking,
		Invoked:      invoked,
		View:         view,
		RootID:       view + "-root",
		ResponseText: response,
	}
}

var Widgets = []Widget{
	widget("get-player-info", "player-info", "Player Information",
		"Fetch a player's profile and recent form. Returns identity (name, role, bat/bowl style, "+
			"teams, image), bio, ICC rankings, and recent batting/bowling snippets. "+
			"Note: This does NOT include career batting aggregates—use 'get-player-batting' for "+
			"format-wise career stats.",
		"Loading player information...", "Player information loaded successfully",
		"Displayed player information"),
	widget("get-player-batting", "player-batting", "Player Batting — Career by Format",
		"Show career batting aggregates by format (e.g., Tests, ODIs, T20Is, IPL). "+
			"Includes Matches, Innings, Runs, Balls, Highest, Average, Strike Rate, Not Out, "+
			"Fours, Sixes, Ducks, 50s/100s, 200s/300s/400s. "+
			"Use for 'stats' or 'career' queries. For bio/rankings/recent form, use 'get-player-info'.",
		"Loading batting career stats…", "Batting career stats loaded",
		"Displayed format-wise batting career aggregates"),
	widget("get-player-bowling", "player-bowling", "Player Bowling — Career by Format",
		"Show career bowling aggregates by format (e.g., Tests, ODIs, T20Is, IPL). "+
			"Includes Matches, Innings, Balls, Runs, Maidens, Wickets, Average, Economy, "+
			"Strike Rate, Best Bowling Innings (BBI), Best Bowling Match (BBM), 4w/5w/10w hauls. "+
			"Use for 'bowling stats' or 'career' queries. For bio/rankings/recent form, use 'get-player-info'.",
		"Loading bowling career stats…", "Bowling career stats loaded",
		"Displayed format-wise bowling career aggregates"),
	widget("get-player-news", "player-news", "Player News & Updates",
		"Fetch latest news, articles, and updates about a player. Returns news stories with "+
			"headlines, summaries, cover images, story types (News, Features, Match Reports, etc.), "+
			"publication dates, context (tournament/series), and source attribution. "+
			"Use for 'news', 'latest updates', or 'recent articles' queries about a player.",
		"Loading player news...", "Player news loaded successfully",
		"Displayed latest news and updates about the player"),
	widget("get-player-career", "player-career", "Player Career Information",
		"Show player's career debut and last played information across all formats "+
			"(Tests, ODIs, T20Is, IPL, Champions League, etc.). Returns debut match details "+
			"including opponent, date, and venue, plus last played match information. "+
			"Use for 'career', 'debut', or 'when did they start playing' queries.",
		"Loading career information...", "Career information loaded successfully",
		"Displayed player career debut and last played information"),
	widget("get-trending-players", "trending-players", "Trending Players",
		"Show currently trending cricket players with their images, names, and teams. "+
			"Returns a grid of players who are currently popular or in the news. "+
			"Includes player images, full names, and team/country information. "+
			"Use for 'trending players', 'popular players', or 'who's trending' queries.",
		"Loading trending players...", "Trending players loaded successfully",
		"Displayed currently trending cricket players"),
	widget("get-rankings", "icc-rankings", "ICC Rankings",
		"Show ICC cricket rankings for batters, bowlers, or all-rounders across different formats. "+
			"Displays player rankings with their rank, name, country, rating, points, and trend (up/down/flat). "+
			"Includes player images and detailed ranking information. "+
			"Use for 'ICC rankings', 'top batsmen', 'bowling rankings', or 'player rankings' queries.",
		"Loading ICC rankings...", "ICC rankings loaded successfully",
		"Displayed ICC cricket rankings"),
	widget("get-records", "cricket-records", "Cricket Records & Statistics",
		"Display cricket records and statistics based on various filters. "+
			"Shows records like most runs, most wickets, best batting average, etc. "+
			"Can be filtered by year, match type, team, and opponent. "+
			"Includes player names, statistics, and detailed record information. "+
			"Use for 'most runs', 'top wickets', 'best average', or any cricket records queries. "+
			"Note: Use get-record-filters first to discover available statistics types and filters.",
		"Loading cricket records...", "Cricket records loaded successfully",
		"Displayed cricket records and statistics"),
}

// Catalog 按工具名、资源 URI、view 名查 widget
type Catalog struct {
	list   []Widget
	byID   map[string]Widget
	byURI  map[string]Widget
	byView map[string]Widget
}

func NewCatalog(ws []Widget) *Catalog {
	c := &Catalog{
		list:   ws,
		byID:   make(map[string]Widget, len(ws)),
		byURI:  make(map[string]Widget, len(ws)),
		byView: make(map[string]Widget, len(ws)),
	}
	for _, w := range ws {
		c.byID[w.Identifier] = w
		c.byURI[w.TemplateURI] = w
		c.byView[w.View] = w
	}
	return c
}

func (c *Catalog) All() []Widget { return c.list }

func (c *Catalog) ByID(id string) (Widget, bool) {
	w, ok := c.byID[id]
	return w, ok
}

func (c *Catalog) ByURI(uri string) (Widget, bool) {
	w, ok := c.byURI[uri]
	return w, ok
}

func (c *Catalog) ByView(name string) (Widget, bool) {
	w, ok := c.byView[name]
	return w, ok
}

// Meta 工具与资源共用的 _meta（OpenAI Apps SDK 约定的键）
func (w Widget) Meta() map[string]any {
	return map[string]any{
		"openai/outputTemplate":          w.TemplateURI,
		"openai/toolInvocation/invoking": w.Invoking,
		"openai/toolInvocation/invoked":  w.Invoked,
		"openai/widgetAccessible":        true,
		"openai/resultCanProduceWidget":  true,
		"openai/widgetDescription":       w.ResponseText,
		"annotations": map[string]any{
			"destructiveHint": false,
			"openWorldHint":   false,
			"readOnlyHint":    true,
		},
	}
}

func (w Widget) ResourceDescription() string {
	return fmt.Sprintf("%s Interactive widget for %s.", w.Description, w.Title)
}
