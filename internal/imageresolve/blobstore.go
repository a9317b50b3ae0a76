package imageresolve

import (
	"sync"
	"sync/atomic"

	"cricchat.local/internal/platform/metrics"
	"github.com/google/uuid"
)

// BlobStore 在内存里保存已加载的图片，按 prefix+id 对外提供，句柄释放后删除
type BlobStore struct {
	prefix string

	mu    sync.RWMutex
	blobs map[string]blob

	acquired atomic.Int64
	released atomic.Int64
}

type blob struct {
	data        []byte
	contentType string
}

func NewBlobStore(urlPrefix string) *BlobStore {
	return &BlobStore{prefix: urlPrefix, blobs: make(map[string]blob)}
}

func (s *BlobStore) Put(data []byte, contentType string) Handle {
	id := uuid.NewString()
	s.mu.Lock()
	s.blobs[id] = blob{data: data, contentType: contentType}
	s.mu.Unlock()
	s.acquired.Add(1)
	metrics.ImageBlobsLive.Inc()
	return &blobHandle{store: s, id: id}
}

func (s *BlobStore) Get(id string) (data []byte, contentType string, ok bool) {
	s.mu.RLock()
	b, ok := s.blobs[id]
	s.mu.RUnlock()
	return b.data, b.contentType, ok
}

// Stats 已发出与已释放的句柄数
func (s *BlobStore) Stats() (acquired, released int64) {
	return s.acquired.Load(), s.released.Load()
}

func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func (s *BlobStore) drop(id string) {
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
	s.released.Add(1)
	metrics.ImageBlobsLive.Dec()
}

type blobHandle struct {
	store *BlobStore
	id    string
	once  sync.Once
}

func (h *blobHandle) URL() string { return h.store.prefix + h.id }

func (h *blobHandle) Release() {
	h.once.Do(func() { h.store.drop(h.id) })
}
