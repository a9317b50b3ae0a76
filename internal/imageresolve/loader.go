package imageresolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

var (
	ErrNotImage   = errors.New("response is not an image")
	ErrEmptyImage = errors.New("empty image body")
	ErrTooLarge   = errors.New("image exceeds size limit")
)

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("image %s: HTTP %d", e.URL, e.Code)
}

// HTTPLoader 下载候选图片并存进 BlobStore。额外请求头（API 凭据）只发给白名单主机
type HTTPLoader struct {
	client   *http.Client
	store    *BlobStore
	headers  http.Header
	hosts    map[string]struct{}
	maxBytes int64
}

type LoaderOption func(*HTTPLoader)

// WithHeaders 请求主机在 hosts 中时附加 h
func WithHeaders(h http.Header, hosts ...string) LoaderOption {
	return func(l *HTTPLoader) {
		l.headers = h.Clone()
		for _, host := range hosts {
			if host != "" {
				l.hosts[strings.ToLower(host)] = struct{}{}
			}
		}
	}
}

func WithMaxBytes(n int64) LoaderOption {
	return func(l *HTTPLoader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

func NewHTTPLoader(client *http.Client, store *BlobStore, opts ...LoaderOption) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	l := &HTTPLoader{
		client:   client,
		store:    store,
		hosts:    make(map[string]struct{}),
		maxBytes: 4 << 20,
	}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.headers) > 0 {
		// 重定向时 net/http 会把自定义头原样带到新主机，这里按白名单剥掉
		c := *client
		next := client.CheckRedirect
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if _, ok := l.hosts[strings.ToLower(req.URL.Hostname())]; !ok {
				for k := range l.headers {
					req.Header.Del(k)
				}
			}
			if next != nil {
				return next(req, via)
			}
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		}
		l.client = &c
	}
	return l
}

func (l *HTTPLoader) Load(ctx context.Context, rawURL string) (Handle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build image request: %w", err)
	}
	req.Header.Set("Accept", "image/*")
	if _, ok := l.hosts[strings.ToLower(hostOf(rawURL))]; ok {
		for k, vs := range l.headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	ct := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(ct)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%s: %w (%q)", rawURL, ErrNotImage, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	switch {
	case int64(len(data)) > l.maxBytes:
		return nil, fmt.Errorf("%s: %w", rawURL, ErrTooLarge)
	case len(data) == 0:
		return nil, fmt.Errorf("%s: %w", rawURL, ErrEmptyImage)
	}
	return l.store.Put(data, mediaType), nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
