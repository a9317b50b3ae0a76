package view

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cricchat.local/internal/imageresolve"
	"cricchat.local/internal/snapshot"
)

// faceResolver 只有 420x420 候选能加载，句柄都来自 store
func faceResolver(store *imageresolve.BlobStore, gate chan struct{}) *imageresolve.Resolver {
	loader := imageresolve.LoaderFunc(func(ctx context.Context, u string) (imageresolve.Handle, error) {
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if !strings.Contains(u, "/420x420/") {
			return nil, errors.New("not found")
		}
		return store.Put([]byte{0xff, 0xd8}, "image/jpeg"), nil
	})
	return imageresolve.New(loader, imageresolve.PlayerFaceCandidates("https://cdn.test"))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestMountIsIdempotent(t *testing.T) {
	reg, err := NewRegistry(10, Resolvers{}, All(Options{})...)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	store := snapshot.NewStore(nil)

	a, err := reg.Mount("abc", "player-batting", store)
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.Mount("abc", "player-batting", store)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("second mount created a new root")
	}
	if reg.Len() != 1 {
		t.Fatalf("roots: %d", reg.Len())
	}
	if store.Subscribers() != 1 {
		t.Fatalf("subscribers: %d", store.Subscribers())
	}
	if a.Current().State != NoData {
		t.Fatalf("state before snapshot: %v", a.Current().State)
	}
	if a.Key() != "abc/player-batting-root" {
		t.Fatalf("key %q", a.Key())
	}
}

func TestMountTargetMissing(t *testing.T) {
	reg, _ := NewRegistry(10, Resolvers{}, All(Options{})...)
	defer reg.Close()

	if _, err := reg.Mount("abc", "no-such-widget", snapshot.NewStore(nil)); !errors.Is(err, ErrMountTargetMissing) {
		t.Fatalf("unknown widget: %v", err)
	}
	if _, err := reg.Mount("", "player-info", snapshot.NewStore(nil)); !errors.Is(err, ErrMountTargetMissing) {
		t.Fatalf("empty placeholder: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("roots: %d", reg.Len())
	}
}

func TestRootFollowsSnapshot(t *testing.T) {
	reg, _ := NewRegistry(10, Resolvers{}, All(Options{})...)
	defer reg.Close()
	store := snapshot.NewStore(nil)
	root, err := reg.Mount("s1", "player-career", store)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var states []State
	cancel := root.Listen(func(o Output) {
		mu.Lock()
		states = append(states, o.State)
		mu.Unlock()
	})
	defer cancel()

	store.Set([]byte(`{"values":[]}`))
	waitFor(t, "empty render", func() bool { return root.Current().State == EmptyData })

	store.Set([]byte(`{"values":[{"name":"odi","debut":"2008","lastPlayed":"2024"}]}`))
	waitFor(t, "populated render", func() bool { return root.Current().State == Populated })
	if !strings.Contains(root.Current().HTML, "ODI") {
		t.Fatalf("html: %s", root.Current().HTML)
	}

	// 相同快照不会再通知
	store.Set([]byte(`{"values":[{"name":"odi","debut":"2008","lastPlayed":"2024"}]}`))
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[0] != EmptyData || states[1] != Populated {
		t.Fatalf("listener saw %v", states)
	}
}

func TestRootResolvesImagesAndReleasesThem(t *testing.T) {
	blobs := imageresolve.NewBlobStore("/blob/")
	reg, _ := NewRegistry(10, Resolvers{Face: faceResolver(blobs, nil)}, All(Options{})...)
	store := snapshot.NewStore([]byte(`{"player":[{"id":"1","name":"A","faceImageId":"42","teamName":"India"}]}`))

	root, err := reg.Mount("s1", "trending-players", store)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, "image resolved", func() bool { return strings.Contains(root.Current().HTML, `src="/blob/`) })
	if blobs.Len() != 1 {
		t.Fatalf("live blobs: %d", blobs.Len())
	}

	// 换了图片 id：旧句柄释放，新句柄生效
	store.Set([]byte(`{"player":[{"id":"1","name":"A","faceImageId":"43","teamName":"India"}]}`))
	waitFor(t, "second image", func() bool {
		acquired, released := blobs.Stats()
		return acquired == 2 && released == 1 && strings.Contains(root.Current().HTML, `src="/blob/`)
	})

	// 图片不再被引用时卸载
	store.Set([]byte(`{"player":[]}`))
	waitFor(t, "image unmounted", func() bool { return blobs.Len() == 0 })

	store.Set([]byte(`{"player":[{"id":"1","name":"A","faceImageId":"44"}]}`))
	waitFor(t, "third image", func() bool { return blobs.Len() == 1 })

	if n := reg.UnmountSession("s1"); n != 1 {
		t.Fatalf("unmounted %d roots", n)
	}
	acquired, released := blobs.Stats()
	if acquired != released || blobs.Len() != 0 {
		t.Fatalf("acquired %d released %d live %d", acquired, released, blobs.Len())
	}
	if store.Subscribers() != 0 {
		t.Fatalf("subscription leaked")
	}
}

func TestUnmountWhileImagePending(t *testing.T) {
	blobs := imageresolve.NewBlobStore("/blob/")
	gate := make(chan struct{})
	reg, _ := NewRegistry(10, Resolvers{Face: faceResolver(blobs, gate)}, All(Options{})...)
	store := snapshot.NewStore([]byte(`{"name":"A","faceImageId":"42"}`))

	root, err := reg.Mount("s1", "player-info", store)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(root.Current().HTML, "cc-img-pending") {
		t.Fatalf("expected pending image: %s", root.Current().HTML)
	}
	root.Unmount()
	root.Unmount()
	close(gate)

	time.Sleep(20 * time.Millisecond)
	acquired, released := blobs.Stats()
	if acquired != released {
		t.Fatalf("acquired %d released %d", acquired, released)
	}
}

func TestRegistryEvictionUnmounts(t *testing.T) {
	reg, _ := NewRegistry(1, Resolvers{}, All(Options{})...)
	defer reg.Close()
	first := snapshot.NewStore(nil)
	second := snapshot.NewStore(nil)

	if _, err := reg.Mount("a", "player-news", first); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Mount("b", "player-news", second); err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 1 {
		t.Fatalf("roots: %d", reg.Len())
	}
	if first.Subscribers() != 0 {
		t.Fatal("evicted root still subscribed")
	}
	if second.Subscribers() != 1 {
		t.Fatal("latest root missing")
	}
}

func TestMountSessionAfterEviction(t *testing.T) {
	reg, _ := NewRegistry(10, Resolvers{}, All(Options{})...)
	defer reg.Close()
	sessions, err := snapshot.NewSessions(1, func(s *snapshot.Session) {
		reg.UnmountSession(s.Code)
	})
	if err != nil {
		t.Fatal(err)
	}

	stale, _ := sessions.Create("player-news", nil)
	// 取出会话后、挂载前它被新会话挤出
	fresh, _ := sessions.Create("player-news", nil)

	if _, err := reg.MountSession(sessions, stale); !errors.Is(err, snapshot.ErrSessionNotFound) {
		t.Fatalf("mount on evicted session: %v", err)
	}
	if reg.Len() != 0 || stale.Store.Subscribers() != 0 {
		t.Fatalf("roots=%d subscribers=%d after evicted mount", reg.Len(), stale.Store.Subscribers())
	}

	root, err := reg.MountSession(sessions, fresh)
	if err != nil {
		t.Fatal(err)
	}
	if root.Key() != fresh.Code+"/player-news-root" || fresh.Store.Subscribers() != 1 {
		t.Fatalf("key=%q subscribers=%d", root.Key(), fresh.Store.Subscribers())
	}

	// 会话淘汰后回调卸载它的 root
	sessions.Remove(fresh.Code)
	if reg.Len() != 0 || fresh.Store.Subscribers() != 0 {
		t.Fatalf("roots=%d after session removal", reg.Len())
	}
}
