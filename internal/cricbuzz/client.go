package cricbuzz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cricchat.local/internal/platform/metrics"
	"cricchat.local/internal/platform/trace"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxBody = 8 << 20

// Cache 上游响应缓存。ok 且 data 为 nil 表示缓存的是“无数据”
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Client Cricbuzz (RapidAPI) 只读客户端，返回上游原始 JSON
type Client struct {
	baseURL string
	headers http.Header
	hc      *http.Client
	cache   Cache
	ttl     time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithCache ttl 为默认缓存时长，个别接口有自己的时长
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// AuthHeaders RapidAPI 鉴权头；图片加载器也用它
func AuthHeaders(apiKey, apiHost string) http.Header {
	h := make(http.Header)
	h.Set("X-RapidAPI-Key", apiKey)
	h.Set("X-RapidAPI-Host", apiHost)
	return h
}

// NewTransport 5s 建连超时，外层包 otelhttp
func NewTransport() http.RoundTripper {
	return otelhttp.NewTransport(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	})
}

func New(baseURL, apiKey, apiHost string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout, Transport: NewTransport()},
		ttl:     15 * time.Minute,
	}
	if apiKey != "" {
		c.headers = AuthHeaders(apiKey, apiHost)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// 变化快的接口缓存短一些
var opTTL = map[string]time.Duration{
	"trending":       5 * time.Minute,
	"player_news":    5 * time.Minute,
	"news_index":     5 * time.Minute,
	"record_filters": 24 * time.Hour,
}

func (c *Client) ttlFor(op string) time.Duration {
	if d, ok := opTTL[op]; ok {
		return d
	}
	return c.ttl
}

// get 先查缓存，再请求上游；无数据同样写入缓存（负缓存）
func (c *Client) get(ctx context.Context, op, path string, q url.Values) (_ json.RawMessage, err error) {
	if c.headers == nil {
		return nil, ErrNotConfigured
	}
	key := path
	if len(q) > 0 {
		key += "?" + q.Encode()
	}

	ctx, span := trace.Tracer().Start(ctx, "cricbuzz."+op)
	defer func() {
		if err != nil && !errors.Is(err, ErrDataEmpty) {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String(trace.UpstreamOp, op))

	if c.cache != nil {
		data, ok, cerr := c.cache.Get(ctx, key)
		switch {
		case cerr != nil:
			slog.Warn("upstream cache get failed", "key", key, "err", cerr)
		case ok && data == nil:
			span.SetAttributes(attribute.Bool(trace.UpstreamCached, true))
			return nil, emptyError(op, http.StatusOK)
		case ok:
			span.SetAttributes(attribute.Bool(trace.UpstreamCached, true))
			return data, nil
		}
	}
	span.SetAttributes(attribute.Bool(trace.UpstreamCached, false))

	start := time.Now()
	data, err := c.fetch(ctx, op, key)
	metrics.UpstreamRequests.WithLabelValues(op, outcome(err)).Inc()
	metrics.UpstreamDurationSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if c.cache != nil {
		var cerr error
		switch {
		case err == nil:
			cerr = c.cache.Set(ctx, key, data, c.ttlFor(op))
		case errors.Is(err, ErrDataEmpty):
			cerr = c.cache.Set(ctx, key, nil, c.ttlFor(op))
		}
		if cerr != nil {
			slog.Warn("upstream cache set failed", "key", key, "err", cerr)
		}
	}
	return data, err
}

func (c *Client) fetch(ctx context.Context, op, pathAndQuery string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	for k, vs := range c.headers {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}
	slog.Debug("upstream response", "op", op, "status", resp.StatusCode, "bytes", len(body))
	return handleResponse(op, resp.StatusCode, body)
}

// handleResponse 状态码到错误的映射
func handleResponse(op string, status int, body []byte) (json.RawMessage, error) {
	switch status {
	case http.StatusForbidden:
		return nil, &APIError{Op: op, Status: status, Err: ErrNotSubscribed,
			Message: message(body, "API access forbidden", "API access forbidden - check your subscription")}
	case http.StatusTooManyRequests:
		return nil, &APIError{Op: op, Status: status, Err: ErrRateLimited,
			Message: message(body, "Rate limit exceeded", "Rate limit exceeded")}
	case http.StatusNoContent:
		return nil, emptyError(op, status)
	case http.StatusOK:
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 {
			return nil, emptyError(op, status)
		}
		if !gjson.ValidBytes(trimmed) {
			return nil, &APIError{Op: op, Status: status, Err: ErrBadResponse,
				Message: fmt.Sprintf("Error parsing response for %s: invalid JSON", op)}
		}
		if falsy(gjson.ParseBytes(trimmed)) {
			return nil, emptyError(op, status)
		}
		return json.RawMessage(trimmed), nil
	default:
		return nil, &APIError{Op: op, Status: status, Err: ErrUpstream}
	}
}

func emptyError(op string, status int) error {
	return &APIError{Op: op, Status: status, Err: ErrDataEmpty,
		Message: fmt.Sprintf("No data available for %s", op)}
}

// message 取 JSON 里的 message 字段；body 不是 JSON 时用 unparsable
func message(body []byte, missing, unparsable string) string {
	if !gjson.ValidBytes(body) {
		return unparsable
	}
	if m := gjson.GetBytes(body, "message"); m.Type == gjson.String && m.Str != "" {
		return m.Str
	}
	return missing
}

// falsy 空对象、空数组、null、false、0、"" 都算没有数据
func falsy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return true
	case gjson.Number:
		return r.Num == 0
	case gjson.String:
		return r.Str == ""
	case gjson.JSON:
		empty := true
		r.ForEach(func(_, _ gjson.Result) bool {
			empty = false
			return false
		})
		return empty
	}
	return false
}
