package imageresolve

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var errLoad = errors.New("load failed")

// fakeLoader ok 中的 URL 成功，其余失败，并记录每次尝试；
// 句柄来自 BlobStore，方便核对申请与释放次数
type fakeLoader struct {
	store *BlobStore

	mu       sync.Mutex
	ok       map[string]bool
	attempts []string
	gate     map[string]chan struct{} // load blocks until closed
}

func newFakeLoader(ok ...string) *fakeLoader {
	l := &fakeLoader{store: NewBlobStore("/blob/"), ok: map[string]bool{}, gate: map[string]chan struct{}{}}
	for _, u := range ok {
		l.ok[u] = true
	}
	return l
}

func (l *fakeLoader) block(u string) chan struct{} {
	ch := make(chan struct{})
	l.mu.Lock()
	l.gate[u] = ch
	l.mu.Unlock()
	return ch
}

func (l *fakeLoader) Load(ctx context.Context, u string) (Handle, error) {
	l.mu.Lock()
	l.attempts = append(l.attempts, u)
	gate := l.gate[u]
	ok := l.ok[u]
	l.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return nil, errLoad
	}
	return l.store.Put([]byte("img:"+u), "image/jpeg"), nil
}

func (l *fakeLoader) Attempts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.attempts...)
}

func listBuilder(n int) CandidateBuilder {
	return func(id string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = fmt.Sprintf("https://cdn/%d/%s.jpg", i, id)
		}
		return out
	}
}

func TestResolveExampleScenario(t *testing.T) {
	candidates := func(id string) []string {
		return []string{
			"https://cdn/420/" + id + ".jpg",
			"https://cdn/300/" + id + ".jpg",
			"https://cdn/default/" + id + ".jpg",
		}
	}
	loader := newFakeLoader("https://cdn/default/123.jpg")
	r := New(loader, candidates)

	st := r.Resolve(context.Background(), "123", "")

	if st.Kind != Resolved || st.URL != "https://cdn/default/123.jpg" {
		t.Fatalf("got %v %q", st.Kind, st.URL)
	}
	if n := len(loader.Attempts()); n != 3 {
		t.Fatalf("attempts: got %d, want 3", n)
	}
	if st.Src() == st.URL || st.Handle == nil {
		t.Fatalf("expected a local blob src, got %q", st.Src())
	}
	st.Handle.Release()
}

func TestResolveWinnerAtEveryPosition(t *testing.T) {
	for n := 1; n <= 4; n++ {
		for k := 0; k < n; k++ {
			t.Run(fmt.Sprintf("n%d_k%d", n, k), func(t *testing.T) {
				build := listBuilder(n)
				winner := build("7")[k]
				loader := newFakeLoader(winner)
				// 后面的候选也能成功，仍然取第一个
				for _, u := range build("7")[k+1:] {
					loader.ok[u] = true
				}
				st := New(loader, build).Resolve(context.Background(), "7", "https://fallback/7.png")

				if st.Kind != Resolved || st.URL != winner {
					t.Fatalf("got %v %q, want %q", st.Kind, st.URL, winner)
				}
				if got := len(loader.Attempts()); got != k+1 {
					t.Fatalf("attempts: got %d, want %d", got, k+1)
				}
				st.Handle.Release()
			})
		}
	}
}

func TestResolveAllFailNoFallback(t *testing.T) {
	loader := newFakeLoader()
	st := New(loader, listBuilder(3)).Resolve(context.Background(), "9", "")
	if st.Kind != Failed {
		t.Fatalf("got %v", st.Kind)
	}
	if got := len(loader.Attempts()); got != 3 {
		t.Fatalf("attempts: got %d, want 3", got)
	}
}

func TestResolveFallbackAfterExhaustion(t *testing.T) {
	loader := newFakeLoader("https://fallback/9.png")
	st := New(loader, listBuilder(2)).Resolve(context.Background(), "9", "https://fallback/9.png")
	if st.Kind != Resolved || st.URL != "https://fallback/9.png" {
		t.Fatalf("got %v %q", st.Kind, st.URL)
	}
	attempts := loader.Attempts()
	if len(attempts) != 3 || attempts[2] != "https://fallback/9.png" {
		t.Fatalf("attempts: %v", attempts)
	}
	st.Handle.Release()
}

func TestResolveFallbackFails(t *testing.T) {
	loader := newFakeLoader()
	st := New(loader, listBuilder(2)).Resolve(context.Background(), "9", "https://fallback/9.png")
	if st.Kind != Failed {
		t.Fatalf("got %v", st.Kind)
	}
}

func TestResolveFallbackAlreadyTriedIsNotRetried(t *testing.T) {
	build := listBuilder(2)
	loader := newFakeLoader()
	st := New(loader, build).Resolve(context.Background(), "9", build("9")[1])
	if st.Kind != Failed {
		t.Fatalf("got %v", st.Kind)
	}
	if got := len(loader.Attempts()); got != 2 {
		t.Fatalf("attempts: got %d, want 2", got)
	}
}

func TestResolveNoIdentifier(t *testing.T) {
	loader := newFakeLoader()
	r := New(loader, listBuilder(3))

	st := r.Resolve(context.Background(), "", "https://fallback/x.png")
	if st.Kind != Resolved || st.URL != "https://fallback/x.png" || st.Handle != nil {
		t.Fatalf("with fallback: got %+v", st)
	}
	if st := r.Resolve(context.Background(), "", ""); st.Kind != Failed {
		t.Fatalf("without fallback: got %v", st.Kind)
	}
	if got := len(loader.Attempts()); got != 0 {
		t.Fatalf("no identifier must not load, got %d attempts", got)
	}
}

func TestResolveCancelledReleasesHandle(t *testing.T) {
	store := NewBlobStore("/blob/")
	ctx, cancel := context.WithCancel(context.Background())
	loader := LoaderFunc(func(_ context.Context, u string) (Handle, error) {
		h := store.Put([]byte("x"), "image/png")
		cancel() // owner goes away while the load completes
		return h, nil
	})

	st := New(loader, listBuilder(2)).Resolve(ctx, "1", "")

	if st.Kind != Pending {
		t.Fatalf("got %v, want pending", st.Kind)
	}
	acquired, released := store.Stats()
	if acquired != 1 || released != 1 {
		t.Fatalf("acquired=%d released=%d", acquired, released)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	attempts int
	settled  []State
}

func (o *recordingObserver) Attempt(string, error) {
	o.mu.Lock()
	o.attempts++
	o.mu.Unlock()
}

func (o *recordingObserver) Settled(_ string, st State) {
	o.mu.Lock()
	o.settled = append(o.settled, st)
	o.mu.Unlock()
}

func TestResolveObserver(t *testing.T) {
	obs := &recordingObserver{}
	loader := newFakeLoader()
	New(loader, listBuilder(3), WithObserver(obs)).Resolve(context.Background(), "1", "")
	if obs.attempts != 3 || len(obs.settled) != 1 || obs.settled[0].Kind != Failed {
		t.Fatalf("observer: attempts=%d settled=%v", obs.attempts, obs.settled)
	}
}

func waitAttempts(t *testing.T, l *fakeLoader, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(l.Attempts()) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d attempts, got %d", n, len(l.Attempts()))
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// waitState 轮询直到组件到达 want 或超时
func waitState(t *testing.T, im *Image, want Kind) State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st := im.State(); st.Kind == want {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %v, last %v", want, im.State().Kind)
	return State{}
}

func TestImageLifecycle(t *testing.T) {
	loader := newFakeLoader("https://cdn/1/1.jpg")
	changes := make(chan State, 8)
	im := NewImage(New(loader, listBuilder(2)), func(st State) { changes <- st })

	im.Set("1", "")
	if st := <-changes; st.Kind != Pending {
		t.Fatalf("first change: got %v", st.Kind)
	}
	st := <-changes
	if st.Kind != Resolved || st.URL != "https://cdn/1/1.jpg" {
		t.Fatalf("second change: got %v %q", st.Kind, st.URL)
	}

	// 相同的 (id, fallback) 不触发新一代
	im.Set("1", "")
	select {
	case st := <-changes:
		t.Fatalf("unexpected change %v", st.Kind)
	case <-time.After(20 * time.Millisecond):
	}

	im.Unmount()
	im.Unmount()
	acquired, released := loader.store.Stats()
	if acquired != 1 || released != 1 {
		t.Fatalf("acquired=%d released=%d", acquired, released)
	}
}

func TestImageStaleCompletionIsDropped(t *testing.T) {
	build := func(id string) []string { return []string{"https://cdn/" + id + ".jpg"} }
	loader := newFakeLoader("https://cdn/old.jpg", "https://cdn/new.jpg")
	gate := loader.block("https://cdn/old.jpg")

	im := NewImage(New(loader, build), nil)
	im.Set("old", "")
	waitAttempts(t, loader, 1)
	im.Set("new", "")

	st := waitState(t, im, Resolved)
	if st.URL != "https://cdn/new.jpg" {
		t.Fatalf("got %q", st.URL)
	}

	close(gate) // old load finishes late
	deadline := time.Now().Add(2 * time.Second)
	for {
		acquired, released := loader.store.Stats()
		if acquired == 2 && released == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("late handle not released: acquired=%d released=%d", acquired, released)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if st := im.State(); st.URL != "https://cdn/new.jpg" {
		t.Fatalf("stale result overwrote state: %q", st.URL)
	}

	im.Unmount()
	if acquired, released := loader.store.Stats(); acquired != released {
		t.Fatalf("acquired=%d released=%d", acquired, released)
	}
}

func TestImageUnmountWhilePending(t *testing.T) {
	loader := newFakeLoader("https://cdn/0/5.jpg")
	gate := loader.block("https://cdn/0/5.jpg")
	im := NewImage(New(loader, listBuilder(1)), nil)

	im.Set("5", "")
	waitAttempts(t, loader, 1)
	im.Unmount()
	close(gate)

	deadline := time.Now().Add(2 * time.Second)
	for {
		acquired, released := loader.store.Stats()
		if acquired == 1 && released == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("acquired=%d released=%d", acquired, released)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if st := im.State(); st.Kind != Pending {
		t.Fatalf("unmounted component committed %v", st.Kind)
	}
	im.Set("6", "") // no-op after unmount
}

func TestImageIdentifierChangeReleasesPrevious(t *testing.T) {
	loader := newFakeLoader("https://cdn/0/a.jpg", "https://cdn/0/b.jpg")
	im := NewImage(New(loader, listBuilder(1)), nil)

	im.Set("a", "")
	waitState(t, im, Resolved)
	im.Set("b", "")
	st := waitState(t, im, Resolved)
	if st.URL != "https://cdn/0/b.jpg" {
		t.Fatalf("got %q", st.URL)
	}
	if acquired, released := loader.store.Stats(); acquired != 2 || released != 1 {
		t.Fatalf("acquired=%d released=%d", acquired, released)
	}

	im.Set("", "") // identifier removed: immediate Failed, previous handle released
	if st := im.State(); st.Kind != Failed {
		t.Fatalf("got %v", st.Kind)
	}
	if acquired, released := loader.store.Stats(); acquired != released {
		t.Fatalf("acquired=%d released=%d", acquired, released)
	}
}
