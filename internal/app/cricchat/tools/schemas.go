package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"cricchat.local/internal/cricbuzz"
)

type obj = map[string]any

func stringProp(title, description string) obj {
	return obj{"type": "string", "title": title, "description": description}
}

func objectSchema(title string, props obj, required ...string) obj {
	s := obj{
		"type":                 "object",
		"title":                title,
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func playerIDSchema(title, description string) obj {
	return objectSchema(title, obj{"player_id": stringProp("Player Id", description)}, "player_id")
}

var schemas = map[string]obj{
	"get-player-info": playerIDSchema("GetPlayerInfoInput",
		"The player ID to get information for (e.g., '1413' for Virat Kohli)"),
	"search-player": objectSchema("SearchPlayerInput", obj{
		"player_name": stringProp("Player Name", "The name of the player to search for (e.g., 'Virat Kohli')"),
	}, "player_name"),
	"get-player-career":  playerIDSchema("GetPlayerCareerInput", "The player ID to get career statistics for"),
	"get-player-bowling": playerIDSchema("GetPlayerBowlingInput", "The player ID to get bowling statistics for"),
	"get-player-batting": playerIDSchema("GetPlayerBattingInput", "The player ID to get batting statistics for"),
	"get-player-news":    playerIDSchema("GetPlayerNewsInput", "The player ID to get news articles for"),
	"get-trending-players": objectSchema("GetTrendingPlayersInput", obj{}),
	"get-rankings": objectSchema("GetRankingsInput", obj{
		"category": obj{"type": "string", "title": "Category", "enum": cricbuzz.Categories, "default": "batsmen",
			"description": "Ranking category: batsmen, bowlers, allrounders or teams"},
		"format_type": obj{"type": "string", "title": "Format Type", "enum": cricbuzz.FormatTypes, "default": "test",
			"description": "Match format: test, odi or t20 (odi is not available for women)"},
		"is_women": obj{"type": "boolean", "title": "Is Women", "default": false,
			"description": "Women's rankings instead of men's"},
	}),
	"get-records": objectSchema("GetRecordsInput", obj{
		"stats_type": stringProp("Stats Type", "Statistics type from get-record-filters (e.g., 'mostRuns', 'mostWickets')"),
		"year":       stringProp("Year", "Restrict to one calendar year (e.g., '2024')"),
		"match_type": stringProp("Match Type", "Match type id from get-record-filters (1 Test, 2 ODI, 3 T20I)"),
		"team":       stringProp("Team", "Team id to filter by"),
		"opponent":   stringProp("Opponent", "Opponent team id to filter by"),
	}, "stats_type"),
	"get-record-filters": objectSchema("GetRecordFiltersInput", obj{}),
}

type playerIDInput struct {
	PlayerID *string `json:"player_id"`
}

type searchInput struct {
	PlayerName *string `json:"player_name"`
}

type rankingsInput struct {
	Category   string `json:"category"`
	FormatType string `json:"format_type"`
	IsWomen    bool   `json:"is_women"`
}

type recordsInput struct {
	StatsType *string `json:"stats_type"`
	Year      string  `json:"year"`
	MatchType string  `json:"match_type"`
	Team      string  `json:"team"`
	Opponent  string  `json:"opponent"`
}

type emptyInput struct{}

// validationError 参数不合法，工具结果里原样展示
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func invalidf(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// decode 严格解码：未知字段、类型不符都算校验失败
func decode(args json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(args)) == 0 || bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return invalidf("%s", strings.TrimPrefix(err.Error(), "json: "))
	}
	return nil
}

func requireField(name string, v *string) (string, error) {
	if v == nil {
		return "", invalidf("%s: field required", name)
	}
	return *v, nil
}
