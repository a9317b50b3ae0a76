package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"cricchat.local/gee"
	"cricchat.local/gee/middleware"
	cccache "cricchat.local/internal/app/cricchat/cache"
	"cricchat.local/internal/app/cricchat/httpapi"
	"cricchat.local/internal/app/cricchat/live"
	"cricchat.local/internal/app/cricchat/mcp"
	"cricchat.local/internal/app/cricchat/tools"
	"cricchat.local/internal/app/cricchat/usage"
	"cricchat.local/internal/cricbuzz"
	"cricchat.local/internal/imageresolve"
	"cricchat.local/internal/platform/auth"
	platformcache "cricchat.local/internal/platform/cache"
	"cricchat.local/internal/platform/config"
	"cricchat.local/internal/platform/httpmiddleware"
	"cricchat.local/internal/platform/httpserver"
	"cricchat.local/internal/platform/metrics"
	"cricchat.local/internal/platform/ratelimit"
	"cricchat.local/internal/platform/trace"
	"cricchat.local/internal/snapshot"
	"cricchat.local/internal/view"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

const (
	description  = "Cricket player information service using CricBuzz API"
	instructions = "Cricket player information service using CricBuzz API. " +
		"Get player stats, career info, news, and trending players."
)

func main() {
	cfg := config.Load()

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var h slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))

	metrics.Init()

	var shutdown func(context.Context) error
	if cfg.TracingEnabled {
		shutdown = trace.InitTrace(cfg.OtlpGrpcEndpoint, cfg.OtlpServiceName, cfg.Version)
		if shutdown == nil {
			slog.Error("Trace init failed")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Error(err.Error())
				}
			}()
		}
	} else {
		slog.Warn("Tracing disabled by config", "TRACING_ENABLED", false)
	}

	//Redis：连不上只降级，不退出
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		client, err := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Warn("Redis unavailable, using local cache only", "err", err)
		} else {
			redisClient = client
			defer redisClient.Close()
			slog.Info("Redis 连接成功", "addr", cfg.RedisAddr)
		}
	}
	//限流器
	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled && redisClient != nil {
		limiter = ratelimit.NewLimiter(redisClient)
	} else {
		slog.Warn("RateLimit disabled", "RATELIMIT_ENABLED", cfg.RateLimitEnabled, "redis", redisClient != nil)
	}

	//上游响应缓存
	localCache, err := cccache.NewLocalCache(cfg.CacheLocalItems, cfg.CacheLocalCost, cfg.CacheLocalTTL)
	if err != nil {
		log.Fatal(err)
	}
	respCache := cccache.NewResponseCache(redisClient, localCache)
	defer respCache.Close()

	if !cfg.UpstreamConfigured() {
		slog.Warn("RAPIDAPI_KEY is not set; tool calls will fail until it is configured")
	}
	upstreamHTTP := &http.Client{Transport: cricbuzz.NewTransport(), Timeout: cfg.UpstreamTimeout}
	api := cricbuzz.New(cfg.CricbuzzBaseURL, cfg.RapidAPIKey, cfg.RapidAPIHost, cfg.UpstreamTimeout,
		cricbuzz.WithHTTPClient(upstreamHTTP),
		cricbuzz.WithCache(respCache, cfg.CacheRemoteTTL),
	)

	//图片：头像走公开 CDN，新闻封面走带凭据的 API，凭据只发给 RapidAPI 主机
	blobPrefix := "/blob/"
	if cfg.PublicBaseURL != "" {
		blobPrefix = strings.TrimRight(cfg.PublicBaseURL, "/") + "/blob/"
	}
	blobs := imageresolve.NewBlobStore(blobPrefix)
	loaderOpts := []imageresolve.LoaderOption{imageresolve.WithMaxBytes(cfg.ImageMaxBytes)}
	if cfg.UpstreamConfigured() {
		loaderOpts = append(loaderOpts, imageresolve.WithHeaders(cricbuzz.AuthHeaders(cfg.RapidAPIKey, cfg.RapidAPIHost), cfg.RapidAPIHost))
	}
	loader := imageresolve.NewHTTPLoader(&http.Client{Transport: cricbuzz.NewTransport(), Timeout: cfg.ImageTimeout}, blobs, loaderOpts...)
	resolvers := view.Resolvers{
		Face: imageresolve.New(loader, imageresolve.PlayerFaceCandidates(cfg.ImageCDNBase)),
		News: imageresolve.New(loader, imageresolve.NewsCoverCandidates(cfg.CricbuzzBaseURL)),
	}

	//渲染：挂载点归 registry，会话淘汰时一并卸载
	registry, err := view.NewRegistry(cfg.RootMax, resolvers, view.All(view.Options{TeamsDisplayCap: cfg.TeamsDisplayCap})...)
	if err != nil {
		log.Fatal(err)
	}
	defer registry.Close()
	sessions, err := snapshot.NewSessions(cfg.SessionMax, func(s *snapshot.Session) {
		n := registry.UnmountSession(s.Code)
		slog.Debug("session evicted", "code", s.Code, "roots", n)
	})
	if err != nil {
		log.Fatal(err)
	}
	hub := live.NewHub(sessions, registry, cfg.CORSAllowOrigins)
	defer hub.Close()

	// JWT：快照写令牌
	ts, jwtErr := auth.NewHS256Service(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if jwtErr != nil {
		log.Fatal(jwtErr)
	}

	//工具调用统计（根据配置选择 Channel 或 Kafka）
	agg := usage.NewAggregator()
	var collector usage.Collector
	var kafkaConsumer *usage.KafkaConsumer
	var channelConsumer *usage.Consumer
	if cfg.KafkaEnabled {
		slog.Info("使用 Kafka 收集工具调用", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		collector = usage.NewKafkaCollector(cfg.KafkaBrokers, cfg.KafkaTopic)
		kafkaConsumer = usage.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ServiceName+"-usage", agg)
	} else {
		slog.Info("使用 Channel 收集工具调用")
		channelCollector := usage.NewChannelCollector(10000)
		collector = channelCollector
		channelConsumer = usage.NewConsumer(agg, channelCollector)
	}

	svc := tools.NewService(api, tools.NewCatalog(tools.Widgets), collector)
	mcpSrv := mcp.NewServer(svc, mcp.Info{
		Name:          cfg.ServiceName,
		Version:       cfg.Version,
		Instructions:  instructions,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	// 对外业务
	r := gee.New()
	r.Use(gee.Recovery(), middleware.ReqID(), middleware.AccessLog(), middleware.CORS(cfg.CORSAllowOrigins), httpmiddleware.Metrics(), httpmiddleware.TraceName())

	info := httpapi.ServerInfo{Name: cfg.ServiceName, Version: cfg.Version, Description: description}
	httpapi.RegisterInfoRoutes(r, info, svc, agg, httpapi.DebugAuth{User: cfg.DebugUser, PasswordHash: cfg.DebugPasswordHash}, cfg.PublicBaseURL)
	httpapi.RegisterMCPRoutes(r, mcpSrv, limiter, cfg.RateLimitMCP)
	httpapi.RegisterSnapshotRoutes(r.Group("/api/v1"), sessions, registry, ts, limiter, cfg.RateLimitSession, cfg.PublicBaseURL)
	httpapi.RegisterLiveRoutes(r, hub, ts, blobs, limiter, cfg.RateLimitSession)

	r.GET("/healthz", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	publicHandler := http.Handler(r)
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(r, "http")
	}
	publicSrv := httpserver.New(cfg, publicHandler)

	// 仅本机/内网
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	// Redis 启用但不可用时仍然 ready：缓存与限流都会降级
	adminMux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if redisClient == nil {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready (local cache only)"))
			return
		}
		pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Redis Ping Err"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	adminMux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"service_name":        cfg.ServiceName,
			"version":             version,
			"commit":              commit,
			"build_time":          buildTime,
			"go_version":          runtime.Version(),
			"upstream_configured": cfg.UpstreamConfigured(),
			"sessions":            sessions.Len(),
			"roots":               registry.Len(),
			"ws_clients":          hub.Clients(),
		})
	})

	// 清除单个上游响应的两级缓存，key 为上游路径（含查询串）
	adminMux.HandleFunc("/cache/purge", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		key := r.URL.Query().Get("key")
		if key == "" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("key is required"))
			return
		}
		if err := respCache.Delete(r.Context(), key); err != nil {
			slog.Warn("cache purge failed", "key", key, "err", err)
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(err.Error()))
			return
		}
		slog.Info("cache purged", "key", key)
		w.WriteHeader(http.StatusNoContent)
	})

	if cfg.PprofEnabled {
		adminMux.HandleFunc("/debug/pprof/", pprof.Index)
		adminMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		adminMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		adminMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		adminMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	adminSrv := httpserver.NewAdmin(cfg, adminMux)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errch := make(chan error, 2)

	go func() {
		errch <- httpserver.RunWithGracefulShutdownContext(publicSrv, cfg.ShutdownTimeout, stopCtx)
	}()
	go func() {
		errch <- httpserver.RunWithGracefulShutdownContext(adminSrv, cfg.ShutdownTimeout, stopCtx)
	}()

	// 启动 Kafka consumer（如果启用）
	if kafkaConsumer != nil {
		go kafkaConsumer.Run(stopCtx)
		defer kafkaConsumer.Close()
	}
	// 启动 Channel consumer（如果启用）
	if channelConsumer != nil {
		go channelConsumer.Run(stopCtx)
	}
	defer collector.Close()

	slog.Info("cric_chat started", "addr", cfg.Addr, "admin", cfg.AdminAddr, "version", version)

	err = <-errch
	if err != nil {
		stop()
		select {
		case <-errch:
		case <-time.After(cfg.ShutdownTimeout + time.Second):
		}
		log.Fatal(err)
	}

	stop()
	<-errch
}
