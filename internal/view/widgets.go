package view

import (
	"html/template"
	"slices"
	"strconv"
	"strings"

	"cricchat.local/internal/imageresolve"
	"github.com/tidwall/gjson"
)

// Image 模板画图片占位所需的数据
type Image struct {
	State   string
	Src     string
	Alt     string
	Glyph   string
	Caption string
	Source  string
}

func imageModel(st imageresolve.State, alt, glyph string) Image {
	img := Image{State: st.Kind.String(), Alt: alt, Glyph: glyph}
	if st.Kind == imageresolve.Resolved {
		img.Src = st.Src()
	}
	return img
}

// Header 球员类 widget 共用的头部
type Header struct {
	Title       string
	Icon        string
	PlayerTitle string
	WebURL      string
}

func playerHeader(doc gjson.Result, icon, title string) Header {
	return Header{
		Title:       title,
		Icon:        icon,
		PlayerTitle: doc.Get("appIndex.seoTitle").String(),
		WebURL:      doc.Get("appIndex.webURL").String(),
	}
}

// statsTable 击球与投球 widget 共用
type statsTable struct {
	Header
	Empty string
	Table Table
}

func statsWidget(name, root, loading, icon, title string, t *table) *widget {
	return &widget{
		name:    name,
		root:    root,
		loading: loading,
		build: func(doc gjson.Result, _ ImageBinder) (any, bool) {
			m := statsTable{Header: playerHeader(doc, icon, title), Empty: "No " + strings.ToLower(title) + " available"}
			rows := doc.Get("values")
			if len(items(rows)) == 0 {
				return m, false
			}
			m.Table = t.build(doc.Get("headers"), rows)
			return m, true
		},
	}
}

var battingTable = mustTable(TableSpec{
	Icon:          "🏏",
	HeaderRenames: map[string]string{"ROWHEADER": "Statistic"},
	Highlight:     `col > 0 && label in ["Runs", "Average", "SR", "Highest", "100s", "50s"]`,
	Badge:         `col > 0 && label in ["100s", "50s"]`,
})

var bowlingTable = mustTable(TableSpec{
	Icon:          "🥎",
	HeaderRenames: map[string]string{"ROWHEADER": "Statistic"},
	Highlight:     `col > 0 && label in ["Wickets", "Avg", "Eco", "SR", "BBI", "BBM", "5w"]`,
	Badge:         `col > 0 && label in ["4w", "5w", "10w"]`,
})

var recordsTable = mustTable(TableSpec{
	Icon:            "📊",
	SkipFirstColumn: true,
	RowNumbers:      true,
	Highlight:       `col in [1, 2]`,
})

// ---- player-info ----

type Ranking struct {
	Title    string
	Variant  string
	ODIRank  string
	ODIDiff  string
	Negative bool
	TestBest string
}

type Recent struct {
	Title   string
	Headers []string
	Rows    [][]string
}

type playerInfo struct {
	Name      string
	NickName  string
	Face      Image
	Facts     [][2]string
	Role      string
	Team      string
	Rankings  []Ranking
	Recent    []Recent
	Teams     []string
	MoreTeams int
	Bio       template.HTML
}

func rankingOf(r gjson.Result, title, variant string) (Ranking, bool) {
	if !r.IsObject() || len(r.Map()) == 0 {
		return Ranking{}, false
	}
	rk := Ranking{
		Title:    title,
		Variant:  variant,
		ODIRank:  r.Get("odiRank").String(),
		ODIDiff:  r.Get("odiDiffRank").String(),
		TestBest: r.Get("testBestRank").String(),
	}
	rk.Negative = strings.HasPrefix(rk.ODIDiff, "-")
	return rk, true
}

func recentOf(r gjson.Result, title string) (Recent, bool) {
	rows := r.Get("rows")
	if len(items(rows)) == 0 {
		return Recent{}, false
	}
	rc := Recent{Title: title}
	for _, h := range items(r.Get("headers")) {
		rc.Headers = append(rc.Headers, h.String())
	}
	for _, row := range items(rows) {
		values := rowValues(row)
		cells := make([]string, 0, 4)
		// 第 0 列是比赛 id，不展示
		for i := 1; i <= 4; i++ {
			if i < len(values) {
				cells = append(cells, text(values[i], Dash))
			} else {
				cells = append(cells, Dash)
			}
		}
		rc.Rows = append(rc.Rows, cells)
	}
	return rc, true
}

// teamNames teamNameIds 对象列表或逗号分隔的 teams 字符串
func teamNames(doc gjson.Result) []string {
	var names []string
	if ids := doc.Get("teamNameIds"); ids.IsArray() {
		for _, t := range items(ids) {
			if n := t.Get("teamName").String(); n != "" {
				names = append(names, n)
			}
		}
		return names
	}
	for _, n := range strings.Split(doc.Get("teams").String(), ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func newPlayerInfo(teamsCap int) *widget {
	return &widget{
		name:    "player-info",
		root:    "player-info-root",
		loading: "🏏 Loading player information...",
		build: func(doc gjson.Result, images ImageBinder) (any, bool) {
			name := doc.Get("name").String()
			if name == "" {
				return playerInfo{}, false
			}
			m := playerInfo{
				Name: name,
				Role: doc.Get("role").String(),
				Team: doc.Get("intlTeam").String(),
			}
			if nick := doc.Get("nickName").String(); nick != "" && nick != name {
				m.NickName = nick
			}
			m.Face = imageModel(
				images.Image("face", Face, doc.Get("faceImageId").String(), doc.Get("image").String()),
				name, "👤",
			)
			for _, f := range [][2]string{
				{"Born", "DoB"},
				{"Birthplace", "birthPlace"},
				{"Height", "height"},
				{"Batting", "bat"},
				{"Bowling", "bowl"},
			} {
				if v := doc.Get(f[1]).String(); v != "" {
					m.Facts = append(m.Facts, [2]string{f[0], v})
				}
			}
			for _, r := range []struct{ key, title, variant string }{
				{"bat", "Batting", "batting"},
				{"bowl", "Bowling", "bowling"},
				{"all", "All-rounder", "allrounder"},
			} {
				if rk, ok := rankingOf(doc.Get("rankings."+r.key), r.title, r.variant); ok {
					m.Rankings = append(m.Rankings, rk)
				}
			}
			if rc, ok := recentOf(doc.Get("recentBatting"), "🏏 Recent Batting"); ok {
				m.Recent = append(m.Recent, rc)
			}
			if rc, ok := recentOf(doc.Get("recentBowling"), "🎳 Recent Bowling"); ok {
				m.Recent = append(m.Recent, rc)
			}
			teams := teamNames(doc)
			shown, more := Truncate(len(teams), teamsCap)
			m.Teams, m.MoreTeams = teams[:shown], more
			// bio 是上游返回的 HTML 片段，按原样展示
			m.Bio = template.HTML(doc.Get("bio").String())
			return m, true
		},
	}
}

// ---- player-career ----

type careerFormat struct {
	Icon       string
	Name       string
	NotPlayed  bool
	Debut      string
	LastPlayed string
}

type playerCareer struct {
	Header
	Formats []careerFormat
}

func newPlayerCareer() *widget {
	return &widget{
		name:    "player-career",
		root:    "player-career-root",
		loading: "🏏 Loading Career Information...",
		build: func(doc gjson.Result, _ ImageBinder) (any, bool) {
			m := playerCareer{Header: playerHeader(doc, "🏏", "Career Information")}
			for _, f := range items(doc.Get("values")) {
				name := f.Get("name").String()
				debut := text(f.Get("debut"), Dash)
				last := text(f.Get("lastPlayed"), Dash)
				m.Formats = append(m.Formats, careerFormat{
					Icon:       FormatIcon(name),
					Name:       FormatName(name),
					NotPlayed:  debut == "Not played" || last == "Not played",
					Debut:      debut,
					LastPlayed: last,
				})
			}
			return m, len(m.Formats) > 0
		},
	}
}

// ---- player-news ----

type story struct {
	Cover    *Image
	Icon     string
	Type     string
	Date     string
	Headline string
	Intro    string
	Context  string
	Source   string
}

type playerNews struct {
	Header
	Stories     []story
	LastUpdated string
}

func newPlayerNews() *widget {
	return &widget{
		name:    "player-news",
		root:    "player-news-root",
		loading: "📰 Loading News...",
		build: func(doc gjson.Result, images ImageBinder) (any, bool) {
			m := playerNews{Header: playerHeader(doc, "📰", "Latest News & Updates")}
			ref := now()
			for i, item := range items(doc.Get("storyList")) {
				s := item.Get("story")
				if item.Get("ad").Exists() || !s.IsObject() {
					continue
				}
				st := story{
					Icon:     StoryIcon(s.Get("storyType").String()),
					Type:     s.Get("storyType").String(),
					Headline: text(s.Get("hline"), Dash),
					Intro:    s.Get("intro").String(),
					Context:  s.Get("context").String(),
					Source:   s.Get("source").String(),
				}
				if t, ok := parseMillis(s.Get("pubTime")); ok {
					st.Date = RelativeTime(t, ref)
				}
				if cover := s.Get("coverImage"); cover.Exists() {
					id := cover.Get("id").String()
					if id == "" {
						id = s.Get("imageId").String()
					}
					key := "cover/" + strconv.Itoa(i)
					img := imageModel(images.Image(key, News, id, ""), st.Headline, "🏏")
					img.Caption = cover.Get("caption").String()
					img.Source = cover.Get("source").String()
					st.Cover = &img
				}
				m.Stories = append(m.Stories, st)
			}
			if t, ok := parseMillis(doc.Get("lastUpdatedTime")); ok {
				m.LastUpdated = stamp(t)
			}
			return m, len(m.Stories) > 0
		},
	}
}

// ---- trending-players ----

type trendingPlayer struct {
	Face Image
	Name string
	Team string
	Flag string
}

type trending struct {
	Title    string
	Category string
	Players  []trendingPlayer
}

func newTrendingPlayers() *widget {
	return &widget{
		name:    "trending-players",
		root:    "trending-players-root",
		loading: "🔥 Loading Trending Players...",
		build: func(doc gjson.Result, images ImageBinder) (any, bool) {
			m := trending{Title: "Trending Players", Category: doc.Get("category").String()}
			for i, p := range items(doc.Get("player")) {
				name := text(p.Get("name"), Dash)
				team := p.Get("teamName").String()
				m.Players = append(m.Players, trendingPlayer{
					Face: imageModel(images.Image("player/"+strconv.Itoa(i), Face, p.Get("faceImageId").String(), ""), name, "👤"),
					Name: name,
					Team: team,
					Flag: CountryFlag(team),
				})
			}
			return m, len(m.Players) > 0
		},
	}
}

// ---- icc-rankings ----

type rankedPlayer struct {
	Rank       string
	Top3       bool
	Face       Image
	Name       string
	Country    string
	Rating     string
	Trend      string
	TrendIcon  string
	TrendColor string
	Difference string
}

type rankings struct {
	Title   string
	Message string
	Players []rankedPlayer
}

func rankingsTitle(meta gjson.Result) string {
	format := meta.Get("format_name").String()
	category := meta.Get("category_name").String()
	if format == "" || category == "" {
		return "ICC Rankings"
	}
	if meta.Get("is_women").Bool() {
		return "ICC Women's " + format + " " + category + " Rankings"
	}
	return "ICC " + format + " " + category + " Rankings"
}

func newICCRankings() *widget {
	return &widget{
		name:    "icc-rankings",
		root:    "icc-rankings-root",
		loading: "⏳ Loading rankings...",
		build: func(doc gjson.Result, images ImageBinder) (any, bool) {
			m := rankings{Title: rankingsTitle(doc.Get("metadata")), Message: "No rankings available"}
			if msg := doc.Get("error").String(); msg != "" {
				m.Message = msg
				return m, false
			}
			list := doc.Get("rank")
			if len(items(list)) == 0 {
				list = doc.Get("rankings")
			}
			for i, p := range items(list) {
				rank := p.Get("rank").String()
				n, err := strconv.Atoi(rank)
				trend := text(p.Get("trend"), "Flat")
				rating := text(p.Get("rating"), "")
				if rating == "" {
					rating = text(p.Get("points"), DefaultRating)
				}
				name := text(p.Get("name"), Dash)
				rp := rankedPlayer{
					Rank:       rank,
					Top3:       err == nil && n <= 3,
					Face:       imageModel(images.Image("player/"+strconv.Itoa(i), Face, p.Get("faceImageId").String(), ""), name, "👤"),
					Name:       name,
					Country:    text(p.Get("country"), DefaultTeam),
					Rating:     rating,
					Trend:      trend,
					TrendIcon:  TrendIcon(trend),
					TrendColor: TrendColor(trend),
				}
				if trend != "Flat" {
					rp.Difference = absInt(p.Get("difference"))
				}
				m.Players = append(m.Players, rp)
			}
			return m, len(m.Players) > 0
		},
	}
}

// ---- cricket-records ----

type records struct {
	Title     string
	MatchType string
	Table     Table
}

func recordsTitle(headers []string, matchType string) string {
	mt := strings.ToUpper(matchType)
	if mt == "" {
		mt = "CRICKET"
	}
	has := func(h string) bool { return slices.Contains(headers, h) }
	switch {
	case has("HS"):
		return mt + " - Highest Individual Scores"
	case has("Wkts") || has("Wickets"):
		return mt + " - Most Wickets"
	case has("Runs"):
		return mt + " - Most Runs"
	}
	return mt + " Records"
}

func newCricketRecords() *widget {
	return &widget{
		name:    "cricket-records",
		root:    "cricket-records-root",
		loading: "📊 Loading cricket records...",
		build: func(doc gjson.Result, _ ImageBinder) (any, bool) {
			m := records{MatchType: doc.Get("filter.selectedMatchType").String()}
			rows := doc.Get("values")
			if len(items(rows)) == 0 {
				m.Title = "Cricket Records"
				return m, false
			}
			m.Table = recordsTable.build(doc.Get("headers"), rows)
			m.Title = recordsTitle(m.Table.Headers, m.MatchType)
			m.MatchType = strings.ToUpper(m.MatchType)
			return m, true
		},
	}
}

// Options 各 widget 的展示上限
type Options struct {
	TeamsDisplayCap int
}

// All 按注册顺序返回全部八个 widget
func All(opts Options) []View {
	if opts.TeamsDisplayCap <= 0 {
		opts.TeamsDisplayCap = 10
	}
	return []View{
		newPlayerInfo(opts.TeamsDisplayCap),
		statsWidget("player-batting", "player-batting-root", "🏏 Loading Batting Statistics...", "🏏", "Batting Statistics", battingTable),
		statsWidget("player-bowling", "player-bowling-root", "🥎 Loading Bowling Statistics...", "🥎", "Bowling Statistics", bowlingTable),
		newPlayerCareer(),
		newPlayerNews(),
		newTrendingPlayers(),
		newICCRankings(),
		newCricketRecords(),
	}
}
