package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"cricchat.local/internal/cricbuzz"
)

func success(text string, data json.RawMessage) Result {
	return Result{Text: text, Structured: data}
}

// playerTool get-player-* 共用：解析 player_id，调上游，拼成功文案
func (s *Service) playerTool(args json.RawMessage, what string, fetch func(string) (json.RawMessage, error)) (Result, error) {
	var in playerIDInput
	if err := decode(args, &in); err != nil {
		return Result{}, err
	}
	id, err := requireField("player_id", in.PlayerID)
	if err != nil {
		return Result{}, err
	}
	data, err := fetch(id)
	if err != nil {
		return Result{}, err
	}
	return success(fmt.Sprintf("Successfully retrieved %s for player ID %s.", what, id), data), nil
}

func (s *Service) playerInfo(ctx context.Context, args json.RawMessage) (Result, error) {
	return s.playerTool(args, "player information", func(id string) (json.RawMessage, error) {
		return s.api.PlayerInfo(ctx, id)
	})
}

func (s *Service) playerBatting(ctx context.Context, args json.RawMessage) (Result, error) {
	return s.playerTool(args, "batting statistics", func(id string) (json.RawMessage, error) {
		return s.api.PlayerBatting(ctx, id)
	})
}

func (s *Service) playerBowling(ctx context.Context, args json.RawMessage) (Result, error) {
	return s.playerTool(args, "bowling statistics", func(id string) (json.RawMessage, error) {
		return s.api.PlayerBowling(ctx, id)
	})
}

func (s *Service) playerCareer(ctx context.Context, args json.RawMessage) (Result, error) {
	return s.playerTool(args, "career statistics", func(id string) (json.RawMessage, error) {
		return s.api.PlayerCareer(ctx, id)
	})
}

func (s *Service) playerNews(ctx context.Context, args json.RawMessage) (Result, error) {
	return s.playerTool(args, "news", func(id string) (json.RawMessage, error) {
		return s.api.PlayerNews(ctx, id)
	})
}

func (s *Service) searchPlayer(ctx context.Context, args json.RawMessage) (Result, error) {
	var in searchInput
	if err := decode(args, &in); err != nil {
		return Result{}, err
	}
	name, err := requireField("player_name", in.PlayerName)
	if err != nil {
		return Result{}, err
	}
	data, err := s.api.SearchPlayer(ctx, name)
	if err != nil {
		return Result{}, err
	}
	return success(fmt.Sprintf("Successfully searched for player: %s.", name), data), nil
}

func (s *Service) trending(ctx context.Context, args json.RawMessage) (Result, error) {
	if err := decode(args, &emptyInput{}); err != nil {
		return Result{}, err
	}
	data, err := s.api.TrendingPlayers(ctx)
	if err != nil {
		return Result{}, err
	}
	return success("Successfully retrieved trending players.", data), nil
}

// RankingsMetadata 附在排名结果上，widget 用它拼标题
type RankingsMetadata struct {
	Category     string `json:"category"`
	FormatType   string `json:"format_type"`
	IsWomen      bool   `json:"is_women"`
	Gender       string `json:"gender"`
	FormatName   string `json:"format_name"`
	CategoryName string `json:"category_name"`
}

func rankingsMetadata(in rankingsInput) RankingsMetadata {
	gender := "Men's"
	if in.IsWomen {
		gender = "Women's"
	}
	return RankingsMetadata{
		Category:     in.Category,
		FormatType:   in.FormatType,
		IsWomen:      in.IsWomen,
		Gender:       gender,
		FormatName:   strings.ToUpper(in.FormatType),
		CategoryName: strings.ToUpper(in.Category[:1]) + in.Category[1:],
	}
}

func (s *Service) rankings(ctx context.Context, args json.RawMessage) (Result, error) {
	in := rankingsInput{Category: "batsmen", FormatType: "test"}
	if err := decode(args, &in); err != nil {
		return Result{}, err
	}
	if !slices.Contains(cricbuzz.Categories, in.Category) {
		return Result{}, invalidf("category: must be one of %s", strings.Join(cricbuzz.Categories, ", "))
	}
	if !slices.Contains(cricbuzz.FormatTypes, in.FormatType) {
		return Result{}, invalidf("format_type: must be one of %s", strings.Join(cricbuzz.FormatTypes, ", "))
	}
	data, err := s.api.Rankings(ctx, in.Category, in.FormatType, in.IsWomen)
	if err != nil {
		return Result{}, err
	}
	meta := rankingsMetadata(in)
	structured, err := withMetadata(data, meta)
	if err != nil {
		return Result{}, err
	}
	text := fmt.Sprintf("Successfully retrieved %s %s %s rankings.", meta.Gender, meta.FormatName, meta.CategoryName)
	return Result{Text: text, Structured: structured}, nil
}

// withMetadata 把 metadata 合并进上游对象；上游不是对象时放在 data 下
func withMetadata(data json.RawMessage, meta RankingsMetadata) (map[string]any, error) {
	out := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		if err := dec.Decode(&out); err != nil {
			return nil, fmt.Errorf("decode rankings: %w", err)
		}
	} else {
		out["data"] = data
	}
	out["metadata"] = meta
	return out, nil
}

func (s *Service) records(ctx context.Context, args json.RawMessage) (Result, error) {
	var in recordsInput
	if err := decode(args, &in); err != nil {
		return Result{}, err
	}
	statsType, err := requireField("stats_type", in.StatsType)
	if err != nil {
		return Result{}, err
	}
	data, err := s.api.Records(ctx, cricbuzz.RecordsQuery{
		StatsType: statsType,
		Year:      in.Year,
		MatchType: in.MatchType,
		Team:      in.Team,
		Opponent:  in.Opponent,
	})
	if err != nil {
		return Result{}, err
	}
	return success(fmt.Sprintf("Successfully retrieved %s records.", statsType), data), nil
}

func (s *Service) recordFilters(ctx context.Context, args json.RawMessage) (Result, error) {
	if err := decode(args, &emptyInput{}); err != nil {
		return Result{}, err
	}
	data, err := s.api.RecordFilters(ctx)
	if err != nil {
		return Result{}, err
	}
	return success("Successfully retrieved available record filters and statistics types.", data), nil
}
