// imageresolve 按候选 URL 列表（高清优先）把图片 id 解析成可显示的地址。
// 第一个加载成功的候选胜出；全部失败时再试一次 fallback，仍失败则为 Failed，
// Failed 是正常状态，视图显示占位符
package imageresolve

import (
	"context"
	"slices"

	"cricchat.local/internal/platform/metrics"
	"cricchat.local/internal/platform/trace"
	"go.opentelemetry.io/otel/attribute"
)

type Kind int

const (
	Pending Kind = iota
	Resolved
	Failed
)

func (k Kind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// State URL 为胜出的候选或 fallback；只有加载器产出本地副本时 Handle 才非空
type State struct {
	Kind   Kind
	URL    string
	Handle Handle
}

// Src 页面实际使用的地址：有本地句柄用句柄 URL，否则用解析出的 URL
func (s State) Src() string {
	if s.Handle != nil {
		return s.Handle.URL()
	}
	return s.URL
}

// Handle 占用的资源（内存里的 blob），持有它的状态被丢弃时必须恰好释放一次
type Handle interface {
	URL() string
	Release()
}

type Loader interface {
	Load(ctx context.Context, url string) (Handle, error)
}

type LoaderFunc func(ctx context.Context, url string) (Handle, error)

func (f LoaderFunc) Load(ctx context.Context, url string) (Handle, error) { return f(ctx, url) }

// CandidateBuilder id 非空时至少返回一个 URL，高清在前
type CandidateBuilder func(id string) []string

// Observer 观察每次尝试与每次落定
type Observer interface {
	Attempt(url string, err error)
	Settled(id string, st State)
}

type Resolver struct {
	loader     Loader
	candidates CandidateBuilder
	observer   Observer
}

type Option func(*Resolver)

func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

func New(loader Loader, candidates CandidateBuilder, opts ...Option) *Resolver {
	r := &Resolver{loader: loader, candidates: candidates}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Candidates 诊断用
func (r *Resolver) Candidates(id string) []string {
	if id == "" {
		return nil
	}
	return r.candidates(id)
}

// Resolve 同步依次尝试候选，不重试。ctx 在落定前取消时返回 Pending，
// 途中拿到的句柄已经释放
func (r *Resolver) Resolve(ctx context.Context, id, fallback string) State {
	if id == "" {
		if fallback == "" {
			return r.settle(id, State{Kind: Failed}, "failed")
		}
		return r.settle(id, State{Kind: Resolved, URL: fallback}, "fallback")
	}

	candidates := r.Candidates(id)
	ctx, span := trace.Tracer().Start(ctx, "image.resolve")
	defer span.End()
	span.SetAttributes(attribute.Int(trace.ImageCandidates, len(candidates)))

	for _, u := range candidates {
		if st, done := r.attempt(ctx, u); done {
			span.SetAttributes(attribute.String(trace.ImageFinalState, st.Kind.String()))
			if st.Kind == Pending {
				return r.cancelled()
			}
			return r.settle(id, st, "resolved")
		}
	}

	// fallback 与某个候选相同时它已经失败过
	if fallback != "" && !slices.Contains(candidates, fallback) {
		if st, done := r.attempt(ctx, fallback); done {
			span.SetAttributes(attribute.String(trace.ImageFinalState, st.Kind.String()))
			if st.Kind == Pending {
				return r.cancelled()
			}
			return r.settle(id, st, "fallback")
		}
	}
	if ctx.Err() != nil {
		return r.cancelled()
	}
	span.SetAttributes(attribute.String(trace.ImageFinalState, Failed.String()))
	return r.settle(id, State{Kind: Failed}, "failed")
}

// attempt done 为 true 表示停止：加载成功，或 ctx 已取消（按 Pending 处理）
func (r *Resolver) attempt(ctx context.Context, u string) (State, bool) {
	if ctx.Err() != nil {
		return State{Kind: Pending}, true
	}
	h, err := r.loader.Load(ctx, u)
	if err != nil {
		metrics.ImageAttempts.WithLabelValues("error").Inc()
		if r.observer != nil {
			r.observer.Attempt(u, err)
		}
		if ctx.Err() != nil {
			return State{Kind: Pending}, true
		}
		return State{}, false
	}
	metrics.ImageAttempts.WithLabelValues("ok").Inc()
	if r.observer != nil {
		r.observer.Attempt(u, nil)
	}
	if ctx.Err() != nil {
		if h != nil {
			h.Release()
		}
		return State{Kind: Pending}, true
	}
	return State{Kind: Resolved, URL: u, Handle: h}, true
}

func (r *Resolver) settle(id string, st State, label string) State {
	metrics.ImageResolutions.WithLabelValues(label).Inc()
	if r.observer != nil {
		r.observer.Settled(id, st)
	}
	return st
}

func (r *Resolver) cancelled() State {
	metrics.ImageResolutions.WithLabelValues("cancelled").Inc()
	return State{Kind: Pending}
}
