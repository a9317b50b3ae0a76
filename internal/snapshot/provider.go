// snapshot 保存 widget 渲染用的数据快照：宿主推来的原始 JSON 工具输出，视图只读
package snapshot

import "sync"

// Provider 视图对外部的全部依赖：当前快照（未到达前为 nil）与变更通知
type Provider interface {
	Snapshot() []byte
	Subscribe(onChange func()) (unsubscribe func())
}

// Store 内存实现，后写覆盖先写
type Store struct {
	mu      sync.RWMutex
	data    []byte
	version uint64
	subs    map[uint64]func()
	nextID  uint64
}

func NewStore(initial []byte) *Store {
	s := &Store{subs: make(map[uint64]func())}
	if initial != nil {
		s.data = append([]byte(nil), initial...)
		s.version = 1
	}
	return s
}

// Snapshot 返回的字节只读
func (s *Store) Snapshot() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Set 替换快照，在锁外通知订阅者
func (s *Store) Set(data []byte) {
	var cp []byte
	if data != nil {
		cp = append([]byte(nil), data...)
	}
	s.mu.Lock()
	s.data = cp
	s.version++
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

func (s *Store) Subscribe(onChange func()) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = onChange
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
