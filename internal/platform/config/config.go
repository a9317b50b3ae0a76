package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr              string
	IdleTimeout       time.Duration // 空闲连接超过该时长后关闭
	ShutdownTimeout   time.Duration // 优雅关闭的最长等待时间
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration

	LogLevel    slog.Level
	LogFormat   string
	ServiceName string
	Version     string

	PprofEnabled bool
	AdminAddr    string

	// PublicBaseURL 用于拼接 widget 外壳里的绝对地址，为空时使用请求的 Host
	PublicBaseURL    string
	CORSAllowOrigins []string

	// 快照会话写令牌（HS256）
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	OtlpGrpcEndpoint string
	OtlpServiceName  string
	TracingEnabled   bool

	// Kafka：工具调用事件
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Redis：L2 缓存与限流，连不上时降级为仅 L1、限流放行
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitEnabled bool
	RateLimitMCP     int // 每 IP 每分钟
	RateLimitSession int

	// Cricbuzz / RapidAPI，密钥只从环境变量读取
	CricbuzzBaseURL string
	RapidAPIKey     string
	RapidAPIHost    string
	UpstreamTimeout time.Duration

	// 图片候选
	ImageCDNBase  string
	ImageTimeout  time.Duration
	ImageMaxBytes int64

	// 响应缓存
	CacheLocalItems int64
	CacheLocalCost  int64
	CacheLocalTTL   time.Duration
	CacheRemoteTTL  time.Duration

	// 快照会话与挂载点
	SessionMax      int
	RootMax         int
	TeamsDisplayCap int

	// /debug/widgets 的 basic auth，空表示不启用
	DebugUser         string
	DebugPasswordHash string
}

func Load() Config {
	cfg := Config{
		Addr:              ":8000",
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,

		LogLevel:    slog.LevelInfo,
		LogFormat:   "json",
		ServiceName: "cric_chat",
		Version:     "1.0.0",

		PprofEnabled: false,
		AdminAddr:    "127.0.0.1:6060",

		CORSAllowOrigins: []string{"*"},

		JWTSecret: "change-me",
		JWTIssuer: "cric_chat",
		JWTTTL:    2 * time.Hour,

		OtlpGrpcEndpoint: "127.0.0.1:4317",
		OtlpServiceName:  "cric_chat",
		TracingEnabled:   false,

		KafkaEnabled: false,
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "tool-calls",

		RedisEnabled:  true,
		RedisAddr:     "localhost:6379",
		RedisPassword: "",
		RedisDB:       0,

		RateLimitEnabled: true,
		RateLimitMCP:     60,
		RateLimitSession: 30,

		CricbuzzBaseURL: "https://cricbuzz-cricket.p.rapidapi.com",
		RapidAPIHost:    "cricbuzz-cricket.p.rapidapi.com",
		UpstreamTimeout: 10 * time.Second,

		ImageCDNBase:  "https://static.cricbuzz.com/a/img/v1",
		ImageTimeout:  8 * time.Second,
		ImageMaxBytes: 4 << 20,

		CacheLocalItems: 10000,
		CacheLocalCost:  64 << 20,
		CacheLocalTTL:   time.Minute,
		CacheRemoteTTL:  15 * time.Minute,

		SessionMax:      5000,
		RootMax:         20000,
		TeamsDisplayCap: 10,

		DebugUser: "admin",
	}

	_ = godotenv.Load(".env")

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				*dst = d
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = strings.ToLower(v) == "true"
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				*dst = n
			}
		}
	}
	int64s := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			parts := strings.Split(v, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			*dst = out
		}
	}

	str("ADDR", &cfg.Addr)
	dur("IDLE_TIMEOUT", &cfg.IdleTimeout)
	dur("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	dur("READ_HEADER_TIMEOUT", &cfg.ReadHeaderTimeout)
	dur("READ_TIMEOUT", &cfg.ReadTimeout)
	dur("WRITE_TIMEOUT", &cfg.WriteTimeout)

	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = ParseLevel(v)
	}
	str("LOG_FORMAT", &cfg.LogFormat)
	str("SERVICE_NAME", &cfg.ServiceName)

	boolean("PPROF_ENABLED", &cfg.PprofEnabled)
	str("ADMIN_ADDR", &cfg.AdminAddr)

	str("PUBLIC_BASE_URL", &cfg.PublicBaseURL)
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	list("CORS_ALLOW_ORIGINS", &cfg.CORSAllowOrigins)

	str("JWT_SECRET", &cfg.JWTSecret)
	str("JWT_ISSUER", &cfg.JWTIssuer)
	dur("JWT_TTL", &cfg.JWTTTL)

	boolean("TRACING_ENABLED", &cfg.TracingEnabled)
	str("OTLP_GRPC_ENDPOINT", &cfg.OtlpGrpcEndpoint)
	str("OTLP_SERVICE_NAME", &cfg.OtlpServiceName)

	boolean("KAFKA_ENABLED", &cfg.KafkaEnabled)
	list("KAFKA_BROKERS", &cfg.KafkaBrokers)
	str("KAFKA_TOPIC", &cfg.KafkaTopic)

	boolean("REDIS_ENABLED", &cfg.RedisEnabled)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	integer("REDIS_DB", &cfg.RedisDB)

	boolean("RATELIMIT_ENABLED", &cfg.RateLimitEnabled)
	integer("RATELIMIT_MCP", &cfg.RateLimitMCP)
	integer("RATELIMIT_SESSION", &cfg.RateLimitSession)

	str("CRICBUZZ_BASE_URL", &cfg.CricbuzzBaseURL)
	cfg.CricbuzzBaseURL = strings.TrimRight(cfg.CricbuzzBaseURL, "/")
	str("RAPIDAPI_KEY", &cfg.RapidAPIKey)
	str("RAPIDAPI_HOST", &cfg.RapidAPIHost)
	dur("UPSTREAM_TIMEOUT", &cfg.UpstreamTimeout)

	str("IMAGE_CDN_BASE", &cfg.ImageCDNBase)
	cfg.ImageCDNBase = strings.TrimRight(cfg.ImageCDNBase, "/")
	dur("IMAGE_TIMEOUT", &cfg.ImageTimeout)
	int64s("IMAGE_MAX_BYTES", &cfg.ImageMaxBytes)

	int64s("CACHE_LOCAL_ITEMS", &cfg.CacheLocalItems)
	int64s("CACHE_LOCAL_COST", &cfg.CacheLocalCost)
	dur("CACHE_LOCAL_TTL", &cfg.CacheLocalTTL)
	dur("CACHE_REMOTE_TTL", &cfg.CacheRemoteTTL)

	integer("SESSION_MAX", &cfg.SessionMax)
	integer("ROOT_MAX", &cfg.RootMax)
	integer("TEAMS_DISPLAY_CAP", &cfg.TeamsDisplayCap)

	str("DEBUG_USER", &cfg.DebugUser)
	str("DEBUG_PASSWORD_HASH", &cfg.DebugPasswordHash)

	return cfg
}

// ParseLevel 未识别的级别按 info 处理
func ParseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UpstreamConfigured RapidAPI 密钥缺失时工具调用直接报错，服务本身仍可启动
func (c Config) UpstreamConfigured() bool {
	return c.RapidAPIKey != ""
}
