package view

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"
)

func viewByName(t *testing.T, name string) View {
	t.Helper()
	for _, v := range All(Options{}) {
		if v.Name() == name {
			return v
		}
	}
	t.Fatalf("no view %q", name)
	return nil
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

// visibleText 只保留渲染结果的文本节点，每个一行
func visibleText(s string) string {
	s = html.UnescapeString(tagRe.ReplaceAllString(s, "\n"))
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func assertText(t *testing.T, got, want string) {
	t.Helper()
	if got == want {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  3,
	})
	t.Errorf("rendered text mismatch:\n%s", diff)
}

func TestEveryViewHasThreeStates(t *testing.T) {
	views := All(Options{})
	if len(views) != 8 {
		t.Fatalf("expected 8 views, got %d", len(views))
	}
	for _, v := range views {
		t.Run(v.Name(), func(t *testing.T) {
			if !strings.HasSuffix(v.RootID(), "-root") {
				t.Fatalf("root id %q", v.RootID())
			}
			out := v.Render(nil, nil)
			if out.State != NoData || !strings.Contains(out.HTML, "Loading") {
				t.Fatalf("nil snapshot: %v %q", out.State, out.HTML)
			}
			if out := v.Render([]byte("null"), nil); out.State != NoData {
				t.Fatalf("null snapshot: %v", out.State)
			}
			for _, bad := range []string{`{}`, `not json`, `[1,2]`, `"str"`} {
				out := v.Render([]byte(bad), nil)
				if out.State != EmptyData {
					t.Fatalf("snapshot %s: got %v", bad, out.State)
				}
				if out.HTML == "" {
					t.Fatalf("snapshot %s: empty html", bad)
				}
			}
		})
	}
}

func TestEmptyCollectionsRenderEmptyState(t *testing.T) {
	cases := []struct {
		view, snapshot, text string
	}{
		{"player-batting", `{"headers":["ROWHEADER"],"values":[]}`, "No batting statistics available"},
		{"player-bowling", `{"values":"oops"}`, "No bowling statistics available"},
		{"player-career", `{"values":[]}`, "No career information available"},
		{"player-news", `{"storyList":[]}`, "No news available at the moment"},
		{"player-news", `{"storyList":[{"ad":{"name":"promo"}}]}`, "No news available at the moment"},
		{"trending-players", `{"player":[],"category":"Men"}`, "No trending players available at the moment"},
		{"icc-rankings", `{"rank":[]}`, "No rankings available"},
		{"icc-rankings", `{"rankings":{"oops":1}}`, "No rankings available"},
		{"icc-rankings", `{"error":"upstream down"}`, "upstream down"},
		{"cricket-records", `{"headers":["Batter"],"values":[]}`, "No records available"},
		{"player-info", `{"id":"1"}`, "No player information available"},
	}
	for _, tc := range cases {
		out := viewByName(t, tc.view).Render([]byte(tc.snapshot), nil)
		if out.State != EmptyData {
			t.Errorf("%s %s: state %v", tc.view, tc.snapshot, out.State)
			continue
		}
		if !strings.Contains(out.HTML, tc.text) {
			t.Errorf("%s: missing %q in %q", tc.view, tc.text, out.HTML)
		}
	}
}

func TestBattingTable(t *testing.T) {
	snap := `{
		"headers": ["ROWHEADER", "Test", "ODI"],
		"values": [
			{"values": ["Matches", "10", "20"]},
			{"values": ["100s", "2", "3"]},
			{"values": ["Runs", "", "950"]}
		],
		"appIndex": {"seoTitle": "Virat Kohli Profile", "webURL": "https://www.cricbuzz.com/profiles/1413"}
	}`
	out := viewByName(t, "player-batting").Render([]byte(snap), nil)
	if out.State != Populated {
		t.Fatalf("state %v", out.State)
	}
	assertText(t, visibleText(out.HTML), `🏏 Batting Statistics
Virat Kohli Profile
🔗 View on Cricbuzz
Statistic
Test
ODI
Matches
10
20
100s
2
3
Runs
-
950
`)
	// 100s 与 Runs 两行各两个数据格高亮，标签列不高亮
	if n := strings.Count(out.HTML, `class="cc-hl"`); n != 4 {
		t.Errorf("highlighted cells: got %d, want 4", n)
	}
	if n := strings.Count(out.HTML, `data-kind="100s"`); n != 2 {
		t.Errorf("badges: got %d, want 2", n)
	}
	if !strings.Contains(out.HTML, `href="https://www.cricbuzz.com/profiles/1413"`) {
		t.Errorf("missing web link")
	}
}

func TestBowlingBadges(t *testing.T) {
	snap := `{"headers":["ROWHEADER","Test"],"values":[["Wickets","300"],["4w","12"],["5w","30"],["Balls","9000"]]}`
	out := viewByName(t, "player-bowling").Render([]byte(snap), nil)
	if out.State != Populated {
		t.Fatalf("state %v", out.State)
	}
	if n := strings.Count(out.HTML, `class="cc-badge"`); n != 2 {
		t.Errorf("badges: got %d, want 2", n)
	}
	if n := strings.Count(out.HTML, `class="cc-hl"`); n != 2 {
		t.Errorf("highlights: got %d, want 2", n)
	}
}

func TestPlayerInfoTeamsAreCapped(t *testing.T) {
	var teams []string
	for i := 0; i < 15; i++ {
		teams = append(teams, fmt.Sprintf(`{"teamId":%d,"teamName":"Team %c"}`, i+1, 'A'+i))
	}
	snap := `{"name":"Virat Kohli","nickName":"Virat Kohli","teamNameIds":[` + strings.Join(teams, ",") + `]}`
	out := viewByName(t, "player-info").Render([]byte(snap), nil)
	if out.State != Populated {
		t.Fatalf("state %v", out.State)
	}
	if n := strings.Count(out.HTML, `<span class="cc-team">`); n != 10 {
		t.Errorf("teams shown: got %d, want 10", n)
	}
	if !strings.Contains(out.HTML, "+5 more") {
		t.Errorf("missing +5 more")
	}
	if strings.Contains(out.HTML, "cc-nick") {
		t.Errorf("nickname equal to name must be hidden")
	}
	// 没有 faceImageId 也没有 image，显示占位符
	if !strings.Contains(out.HTML, "👤") {
		t.Errorf("missing face placeholder")
	}
}

func TestPlayerInfoTeamsString(t *testing.T) {
	snap := `{"name":"X","teams":"India, Royal Challengers Bengaluru, ,Delhi","image":"https://img.test/x.jpg"}`
	v := newPlayerInfo(2)
	out := v.Render([]byte(snap), nil)
	if n := strings.Count(out.HTML, `<span class="cc-team">`); n != 2 {
		t.Errorf("teams shown: got %d", n)
	}
	if !strings.Contains(out.HTML, "+1 more") {
		t.Errorf("missing +1 more")
	}
	if !strings.Contains(out.HTML, `src="https://img.test/x.jpg"`) {
		t.Errorf("fallback image not used: %s", out.HTML)
	}
}

func TestPlayerInfoDetails(t *testing.T) {
	snap := `{
		"name": "Jasprit Bumrah", "nickName": "Jassi", "role": "Bowler", "intlTeam": "India",
		"DoB": "December 06, 1993", "bat": "Right Handed Bat",
		"rankings": {"bat": {}, "bowl": {"odiRank": "4", "odiDiffRank": "-1", "testBestRank": "1"}},
		"recentBowling": {"headers": ["Opp", "W-R", "Format", "Date"], "rows": [{"values": ["9", "vs AUS", "3-40", "TEST", "Jan 01"]}]},
		"bio": "<p>Fast bowler</p>"
	}`
	out := viewByName(t, "player-info").Render([]byte(snap), nil)
	for _, want := range []string{
		`"Jassi"`, "Role:", "Bowler", "Born:", "December 06, 1993", "Batting:",
		"#4", "(-1)", "cc-neg", "Test Best: #1", "🎳 Recent Bowling", "vs AUS", "3-40",
		"<p>Fast bowler</p>",
	} {
		if !strings.Contains(out.HTML, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(out.HTML, `data-variant="batting"`) {
		t.Errorf("empty batting ranking must be skipped")
	}
	if strings.Contains(out.HTML, "Birthplace") {
		t.Errorf("absent field rendered")
	}
}

func TestCareerNotPlayed(t *testing.T) {
	snap := `{"values":[
		{"name":"test","debut":"vs AUS 2018","lastPlayed":"vs IND 2024"},
		{"name":"t20","debut":"Not played","lastPlayed":"Not played"},
		{"name":"hundred"}
	]}`
	out := viewByName(t, "player-career").Render([]byte(snap), nil)
	text := visibleText(out.HTML)
	for _, want := range []string{"Test", "T20I", "Not Played", "HUNDRED", "vs AUS 2018"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}
	if n := strings.Count(out.HTML, `data-kind="not-played"`); n != 1 {
		t.Errorf("not played badges: %d", n)
	}
}

func TestNewsStories(t *testing.T) {
	ref := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return ref }
	defer func() { now = time.Now }()

	ms := func(d time.Duration) string {
		return `"` + strconv.FormatInt(ref.Add(-d).UnixMilli(), 10) + `"`
	}
	snap := `{"storyList":[
		{"story":{"id":1,"hline":"Century at Perth","storyType":"Reports","pubTime":` + ms(90*time.Minute) + `,
			"coverImage":{"id":"123","caption":"Celebration"},"context":"IND v AUS","source":"Cricbuzz"}},
		{"ad":{"name":"native"}},
		{"story":{"id":2,"hline":"Old feature","storyType":"Unknown","pubTime":` + ms(10*24*time.Hour) + `}}
	],"lastUpdatedTime":` + strconv.FormatInt(ref.UnixMilli(), 10) + `}`

	out := viewByName(t, "player-news").Render([]byte(snap), nil)
	if out.State != Populated {
		t.Fatalf("state %v", out.State)
	}
	if n := strings.Count(out.HTML, `<article`); n != 2 {
		t.Errorf("stories: got %d, want 2", n)
	}
	text := visibleText(out.HTML)
	for _, want := range []string{
		"📊 Reports", "🕒 1h ago", "Century at Perth", "🏏 IND v AUS", "Celebration",
		"📰 Unknown", "🕒 Mar 10, 2024", "Last updated: Mar 20, 2024, 12:00 PM",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}
}

func TestTrendingFlags(t *testing.T) {
	snap := `{"category":"Men","player":[{"id":"1","name":"A","teamName":"India"},{"id":"2","name":"B","teamName":"Atlantis"}]}`
	out := viewByName(t, "trending-players").Render([]byte(snap), nil)
	text := visibleText(out.HTML)
	for _, want := range []string{"🔥 Trending Players", "Men", "🇮🇳", "India", "Atlantis"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestRankingsDefaults(t *testing.T) {
	snap := `{
		"rank": [
			{"id":"1","rank":"1","name":"Joe Root","country":"England","rating":"899","trend":"Up","difference":-3},
			{"id":"2","rank":"5","name":"Nobody","points":""}
		],
		"metadata": {"format_name":"TEST","category_name":"Batsmen","is_women":false}
	}`
	out := viewByName(t, "icc-rankings").Render([]byte(snap), nil)
	if out.State != Populated {
		t.Fatalf("state %v", out.State)
	}
	text := visibleText(out.HTML)
	for _, want := range []string{"🏆 ICC TEST Batsmen Rankings", "Top 2 players", "International", "N/A", "↑ 3"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}
	if n := strings.Count(out.HTML, "cc-top3"); n != 1 {
		t.Errorf("top3 badges: %d", n)
	}
	if n := strings.Count(out.HTML, "cc-trend"); n != 1 {
		t.Errorf("flat trend must not render an indicator")
	}
}

func TestRecordsSkipsIDColumn(t *testing.T) {
	snap := `{
		"headers": ["Batter", "HS", "Balls", "SR", "Vs"],
		"values": [{"values": ["11", "Rohit Sharma", "264", "173", "152.6", "vs SL"]}, ["12", "Martin Guptill", "237*", "163", "145.4", "vs WI"]],
		"filter": {"selectedMatchType": "odi"}
	}`
	out := viewByName(t, "cricket-records").Render([]byte(snap), nil)
	assertText(t, visibleText(out.HTML), `📊 ODI - Highest Individual Scores
Top 2 records
ODI
#
Batter
HS
Balls
SR
Vs
1
Rohit Sharma
264
173
152.6
vs SL
2
Martin Guptill
237*
163
145.4
vs WI
`)
}

func TestRecordsTitle(t *testing.T) {
	cases := []struct {
		headers []string
		mt      string
		want    string
	}{
		{[]string{"Bowler", "Wkts"}, "test", "TEST - Most Wickets"},
		{[]string{"Batter", "Runs"}, "", "CRICKET - Most Runs"},
		{[]string{"Batter", "Avg"}, "t20", "T20 Records"},
	}
	for _, tc := range cases {
		if got := recordsTitle(tc.headers, tc.mt); got != tc.want {
			t.Errorf("recordsTitle(%v, %q) = %q, want %q", tc.headers, tc.mt, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct{ n, cap, shown, more int }{
		{0, 10, 0, 0},
		{3, 10, 3, 0},
		{10, 10, 10, 0},
		{15, 10, 10, 5},
		{15, 0, 15, 0},
	}
	for _, tc := range cases {
		shown, more := Truncate(tc.n, tc.cap)
		if shown != tc.shown || more != tc.more {
			t.Errorf("Truncate(%d, %d) = %d, %d", tc.n, tc.cap, shown, more)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	ref := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "0m ago"},
		{59 * time.Minute, "59m ago"},
		{5 * time.Hour, "5h ago"},
		{3 * 24 * time.Hour, "3d ago"},
		{8 * 24 * time.Hour, "Mar 12, 2024"},
	}
	for _, tc := range cases {
		if got := RelativeTime(ref.Add(-tc.ago), ref); got != tc.want {
			t.Errorf("RelativeTime(-%v) = %q, want %q", tc.ago, got, tc.want)
		}
	}
}

func TestBadRuleDoesNotCompile(t *testing.T) {
	if _, err := newTable(TableSpec{Highlight: `label +`}); err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := newTable(TableSpec{Badge: `col + 1`}); err == nil {
		t.Fatal("expected non-bool rule to be rejected")
	}
}
