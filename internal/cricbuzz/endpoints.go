package cricbuzz

import (
	"context"
	"encoding/json"
	"net/url"
	"slices"
	"strings"
)

var (
	Categories  = []string{"batsmen", "bowlers", "allrounders", "teams"}
	FormatTypes = []string{"test", "odi", "t20"}
	NewsIndexes = []string{"index", "premiumIndex"}
)

func required(name, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", invalid("%s is required", name)
	}
	return url.PathEscape(v), nil
}

func (c *Client) PlayerInfo(ctx context.Context, playerID string) (json.RawMessage, error) {
	id, err := required("player_id", playerID)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, "player_info", "/stats/v1/player/"+id, nil)
}

// PlayerStats kind: batting / bowling / career
func (c *Client) PlayerStats(ctx context.Context, playerID, kind string) (json.RawMessage, error) {
	id, err := required("player_id", playerID)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "batting", "bowling", "career":
	default:
		return nil, invalid("unknown player stats kind %q", kind)
	}
	return c.get(ctx, "player_"+kind, "/stats/v1/player/"+id+"/"+kind, nil)
}

func (c *Client) PlayerBatting(ctx context.Context, playerID string) (json.RawMessage, error) {
	return c.PlayerStats(ctx, playerID, "batting")
}

func (c *Client) PlayerBowling(ctx context.Context, playerID string) (json.RawMessage, error) {
	return c.PlayerStats(ctx, playerID, "bowling")
}

func (c *Client) PlayerCareer(ctx context.Context, playerID string) (json.RawMessage, error) {
	return c.PlayerStats(ctx, playerID, "career")
}

func (c *Client) PlayerNews(ctx context.Context, playerID string) (json.RawMessage, error) {
	id, err := required("player_id", playerID)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, "player_news", "/news/v1/player/"+id, nil)
}

func (c *Client) TrendingPlayers(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "trending", "/stats/v1/player/trending", nil)
}

func (c *Client) SearchPlayer(ctx context.Context, name string) (json.RawMessage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("player_name is required")
	}
	return c.get(ctx, "search_player", "/stats/v1/player/search", url.Values{"plrN": {name}})
}

// Rankings 女子排名没有 ODI
func (c *Client) Rankings(ctx context.Context, category, formatType string, women bool) (json.RawMessage, error) {
	if !slices.Contains(Categories, category) {
		return nil, invalid("unknown ranking category %q", category)
	}
	if !slices.Contains(FormatTypes, formatType) {
		return nil, invalid("unknown format type %q", formatType)
	}
	if women && formatType == "odi" {
		return nil, invalid("ODI format is not available for women's rankings")
	}
	q := url.Values{"formatType": {formatType}}
	if women {
		q.Set("isWomen", "1")
	}
	return c.get(ctx, "rankings", "/stats/v1/rankings/"+category, q)
}

type RecordsQuery struct {
	StatsType string
	Year      string
	MatchType string
	Team      string
	Opponent  string
}

func (c *Client) Records(ctx context.Context, rq RecordsQuery) (json.RawMessage, error) {
	statsType := strings.TrimSpace(rq.StatsType)
	if statsType == "" {
		return nil, invalid("stats_type is required")
	}
	q := url.Values{"statsType": {statsType}}
	for k, v := range map[string]string{"year": rq.Year, "matchType": rq.MatchType, "team": rq.Team, "opponent": rq.Opponent} {
		if v = strings.TrimSpace(v); v != "" {
			q.Set(k, v)
		}
	}
	return c.get(ctx, "records", "/stats/v1/topstats/0", q)
}

func (c *Client) RecordFilters(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "record_filters", "/stats/v1/topstats", nil)
}

func (c *Client) NewsIndex(ctx context.Context, index string) (json.RawMessage, error) {
	if index == "" {
		index = "index"
	}
	if !slices.Contains(NewsIndexes, index) {
		return nil, invalid("unknown news index %q", index)
	}
	return c.get(ctx, "news_index", "/news/v1/"+index, nil)
}

func (c *Client) NewsDetail(ctx context.Context, newsID string) (json.RawMessage, error) {
	id, err := required("news_id", newsID)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, "news_detail", "/news/v1/detail/"+id, nil)
}

func (c *Client) PhotosIndex(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "photos_index", "/photos/v1/index", nil)
}

func (c *Client) PhotoGallery(ctx context.Context, galleryID string) (json.RawMessage, error) {
	id, err := required("gallery_id", galleryID)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, "photo_gallery", "/photos/v1/detail/"+id, nil)
}
