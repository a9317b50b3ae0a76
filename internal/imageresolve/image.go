package imageresolve

import (
	"context"
	"sync"
)

// Image 单个图片占位的生命周期。每次 (id, fallback) 变化开启新一代，
// 旧一代的结果直接丢弃并释放句柄；Unmount 之后不再提交任何状态
type Image struct {
	resolver *Resolver
	onChange func(State)

	mu        sync.Mutex
	started   bool
	id        string
	fallback  string
	gen       uint64
	cancel    context.CancelFunc
	state     State
	unmounted bool
}

// NewImage onChange 可以为 nil，状态变化时在锁外调用
func NewImage(r *Resolver, onChange func(State)) *Image {
	return &Image{resolver: r, onChange: onChange}
}

func (im *Image) State() State {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.state
}

// Set 相同的 (id, fallback) 重复设置不做任何事
func (im *Image) Set(id, fallback string) {
	im.mu.Lock()
	if im.unmounted || (im.started && im.id == id && im.fallback == fallback) {
		im.mu.Unlock()
		return
	}
	im.started = true
	im.id, im.fallback = id, fallback
	im.gen++
	gen := im.gen
	if im.cancel != nil {
		im.cancel()
		im.cancel = nil
	}
	prev := im.state.Handle

	if id == "" {
		// 不需要加载，立即落定
		im.state = im.resolver.Resolve(context.Background(), "", fallback)
		st := im.state
		im.mu.Unlock()
		release(prev)
		im.notify(st)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	im.cancel = cancel
	im.state = State{Kind: Pending}
	im.mu.Unlock()

	release(prev)
	im.notify(State{Kind: Pending})
	go im.run(ctx, cancel, gen, id, fallback)
}

func (im *Image) run(ctx context.Context, cancel context.CancelFunc, gen uint64, id, fallback string) {
	defer cancel()
	st := im.resolver.Resolve(ctx, id, fallback)

	im.mu.Lock()
	if im.unmounted || gen != im.gen || st.Kind == Pending {
		im.mu.Unlock()
		release(st.Handle)
		return
	}
	im.state = st
	im.cancel = nil
	im.mu.Unlock()
	im.notify(st)
}

// Unmount 取消进行中的加载并释放持有的句柄，可重复调用
func (im *Image) Unmount() {
	im.mu.Lock()
	if im.unmounted {
		im.mu.Unlock()
		return
	}
	im.unmounted = true
	im.gen++
	if im.cancel != nil {
		im.cancel()
		im.cancel = nil
	}
	h := im.state.Handle
	im.state.Handle = nil
	im.mu.Unlock()
	release(h)
}

func (im *Image) notify(st State) {
	if im.onChange != nil {
		im.onChange(st)
	}
}

func release(h Handle) {
	if h != nil {
		h.Release()
	}
}
