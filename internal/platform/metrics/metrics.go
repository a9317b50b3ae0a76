package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// 同名指标重复注册会 panic
	once sync.Once

	// route 用路由模板（/ws/:code/:widget），不要用真实 path，否则 label 无界
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "HTTP请求的总数",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// tier: l1/l2；result: hit/hit_negative/miss
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Upstream response cache lookups by tier and result.",
		},
		[]string{"tier", "result"},
	)

	// op 为接口名（player_info、rankings...），outcome: ok/empty/not_subscribed/rate_limited/error
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Cricbuzz API requests by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	UpstreamDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Cricbuzz API latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// 单个候选 URL 的加载结果：ok/error
	ImageAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_attempts_total",
			Help: "Image candidate load attempts.",
		},
		[]string{"result"},
	)

	// state: resolved/fallback/failed/cancelled
	ImageResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_resolutions_total",
			Help: "Final image resolution states.",
		},
		[]string{"state"},
	)

	ImageBlobsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_blobs_live",
			Help: "Image blob handles acquired and not yet released.",
		},
	)

	// status: ok/error
	ToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tool_calls_total",
			Help: "MCP tool calls by tool and status.",
		},
		[]string{"tool", "status"},
	)

	WidgetRootsMounted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "widget_roots_mounted",
			Help: "Render roots currently mounted.",
		},
	)

	WebsocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Connected widget websocket clients.",
		},
	)
)

// Init 注册指标，只执行一次
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			CacheOperations,
			UpstreamRequests,
			UpstreamDurationSeconds,
			ImageAttempts,
			ImageResolutions,
			ImageBlobsLive,
			ToolCalls,
			WidgetRootsMounted,
			WebsocketClients,
		)
	})
}
