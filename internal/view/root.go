package view

import (
	"sync"

	"cricchat.local/internal/imageresolve"
	"cricchat.local/internal/platform/metrics"
	"cricchat.local/internal/snapshot"
)

// Resolvers 每种 ImageKind 一个解析器；为 nil 时该类图片一律显示占位符
type Resolvers struct {
	Face *imageresolve.Resolver
	News *imageresolve.Resolver
}

func (r Resolvers) of(kind ImageKind) *imageresolve.Resolver {
	if kind == News {
		return r.News
	}
	return r.Face
}

// Root 单个占位的挂载视图。快照或图片变化时重新渲染，输出变化才通知监听者
type Root struct {
	key       string
	view      View
	provider  snapshot.Provider
	resolvers Resolvers

	kick chan struct{}
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	unsubscribe func()

	mu        sync.Mutex
	images    map[string]*imageresolve.Image
	current   Output
	listeners map[int]func(Output)
	nextID    int
}

func newRoot(key string, v View, p snapshot.Provider, rs Resolvers) *Root {
	r := &Root{
		key:       key,
		view:      v,
		provider:  p,
		resolvers: rs,
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		images:    make(map[string]*imageresolve.Image),
		listeners: make(map[int]func(Output)),
	}
	r.unsubscribe = p.Subscribe(r.invalidate)
	r.render()
	r.wg.Add(1)
	go r.loop()
	metrics.WidgetRootsMounted.Inc()
	return r
}

func (r *Root) Key() string { return r.key }
func (r *Root) View() View { return r.view }

// Current 最近一次渲染结果
func (r *Root) Current() Output {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Listen fn 在渲染 goroutine 上执行，不能调用 Unmount；返回值用于取消
func (r *Root) Listen(fn func(Output)) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.listeners, id)
			r.mu.Unlock()
		})
	}
}

// invalidate 安排一次渲染，连续触发合并为一次
func (r *Root) invalidate() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Root) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case <-r.kick:
			select {
			case <-r.done:
				return
			default:
			}
			r.render()
		}
	}
}

// render 除首次渲染外都在 loop goroutine 上执行
func (r *Root) render() {
	p := &pass{root: r, used: make(map[string]bool)}
	out := r.view.Render(r.provider.Snapshot(), p)

	r.mu.Lock()
	var stale []*imageresolve.Image
	for key, im := range r.images {
		if !p.used[key] {
			stale = append(stale, im)
			delete(r.images, key)
		}
	}
	changed := out != r.current
	r.current = out
	var fns []func(Output)
	if changed {
		for _, fn := range r.listeners {
			fns = append(fns, fn)
		}
	}
	r.mu.Unlock()

	for _, im := range stale {
		im.Unmount()
	}
	for _, fn := range fns {
		fn(out)
	}
}

// Unmount 停止渲染、取消快照订阅并释放所有图片，可重复调用
func (r *Root) Unmount() {
	r.once.Do(func() {
		r.unsubscribe()
		close(r.done)
		r.wg.Wait()

		r.mu.Lock()
		images := r.images
		r.images = map[string]*imageresolve.Image{}
		r.listeners = map[int]func(Output){}
		r.mu.Unlock()

		for _, im := range images {
			im.Unmount()
		}
		metrics.WidgetRootsMounted.Dec()
	})
}

// pass 一次渲染的 ImageBinder
type pass struct {
	root *Root
	used map[string]bool
}

func (p *pass) Image(key string, kind ImageKind, id, fallback string) imageresolve.State {
	resolver := p.root.resolvers.of(kind)
	if resolver == nil {
		return NoImages.Image(key, kind, id, fallback)
	}
	key = kind.String() + "/" + key
	p.used[key] = true

	p.root.mu.Lock()
	im, ok := p.root.images[key]
	if !ok {
		im = imageresolve.NewImage(resolver, func(imageresolve.State) { p.root.invalidate() })
		p.root.images[key] = im
	}
	p.root.mu.Unlock()

	im.Set(id, fallback)
	return im.State()
}
