package view

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	Dash          = "-"
	DefaultTeam   = "International"
	DefaultRating = "N/A"
)

var now = time.Now

// text r 缺失或为空白时返回 def
func text(r gjson.Result, def string) string {
	if !r.Exists() || r.Type == gjson.Null {
		return def
	}
	s := strings.TrimSpace(r.String())
	if s == "" {
		return def
	}
	return s
}

// Truncate 返回展示条数与折叠进 "+N more" 的条数
func Truncate(n, cap int) (shown, more int) {
	if n <= 0 {
		return 0, 0
	}
	if cap <= 0 || n <= cap {
		return n, 0
	}
	return cap, n - cap
}

// parseMillis 毫秒时间戳，数字或字符串均可
func parseMillis(r gjson.Result) (time.Time, bool) {
	var ms int64
	switch r.Type {
	case gjson.Number:
		ms = r.Int()
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(r.Str), 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		ms = n
	default:
		return time.Time{}, false
	}
	if ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// RelativeTime 一小时内按分钟，一天内按小时，一周内按天，再往前显示日期
func RelativeTime(t, ref time.Time) string {
	d := ref.Sub(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
	return t.UTC().Format("Jan 2, 2006")
}

func stamp(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006, 03:04 PM")
}

func TrendIcon(trend string) string {
	switch trend {
	case "Up":
		return "↑"
	case "Down":
		return "↓"
	}
	return "−"
}

func TrendColor(trend string) string {
	switch trend {
	case "Up":
		return "#22c55e"
	case "Down":
		return "#ef4444"
	}
	return "#94a3b8"
}

var flags = map[string]string{
	"India":            "🇮🇳",
	"Australia":        "🇦🇺",
	"England":          "🏴󠁧󠁢󠁥󠁮󠁧󠁿",
	"South Africa":     "🇿🇦",
	"Pakistan":         "🇵🇰",
	"New Zealand":      "🇳🇿",
	"West Indies":      "🏴‍☠️",
	"Sri Lanka":        "🇱🇰",
	"Bangladesh":       "🇧🇩",
	"Afghanistan":      "🇦🇫",
	"Zimbabwe":         "🇿🇼",
	"Ireland":          "🇮🇪",
	"Netherlands":      "🇳🇱",
	"Scotland":         "🏴󠁧󠁢󠁳󠁣󠁴󠁿",
	"UAE":              "🇦🇪",
	"Oman":             "🇴🇲",
	"Nepal":            "🇳🇵",
	"USA":              "🇺🇸",
	"Canada":           "🇨🇦",
	"Kenya":            "🇰🇪",
	"Namibia":          "🇳🇦",
	"Papua New Guinea": "🇵🇬",
	"Cayman Islands":   "🇰🇾",
}

func CountryFlag(team string) string {
	if f, ok := flags[team]; ok {
		return f
	}
	return "🏏"
}

var storyIcons = map[string]string{
	"News":           "📰",
	"Match Features": "🏆",
	"Features":       "📝",
	"Reports":        "📊",
	"Interviews":     "🎤",
	"Analysis":       "🔍",
	"Opinion":        "💭",
}

func StoryIcon(storyType string) string {
	if i, ok := storyIcons[storyType]; ok {
		return i
	}
	return "📰"
}

type format struct {
	icon string
	name string
}

var formats = map[string]format{
	"test":       {"🏏", "Test"},
	"odi":        {"🌟", "ODI"},
	"t20":        {"⚡", "T20I"},
	"t20i":       {"⚡", "T20I"},
	"ipl":        {"🏆", "IPL"},
	"cl":         {"🎯", "Champions League"},
	"firstclass": {"📘", "First Class"},
	"lista":      {"📗", "List A"},
	"t20s":       {"📙", "T20s"},
}

func FormatIcon(name string) string {
	if f, ok := formats[strings.ToLower(name)]; ok {
		return f.icon
	}
	return "🏏"
}

func FormatName(name string) string {
	if f, ok := formats[strings.ToLower(name)]; ok {
		return f.name
	}
	return strings.ToUpper(name)
}

// absInt 数值的绝对值；非数值返回空串
func absInt(r gjson.Result) string {
	var n int64
	switch r.Type {
	case gjson.Number:
		n = r.Int()
	case gjson.String:
		v, err := strconv.ParseInt(strings.TrimSpace(r.Str), 10, 64)
		if err != nil {
			return ""
		}
		n = v
	default:
		return ""
	}
	if n < 0 {
		n = -n
	}
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}
