package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// LocalCache 基于 ristretto 的本地内存缓存，按字节计 cost
type LocalCache struct {
	cache    *ristretto.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewLocalCache
// maxItems: 预计条目数，决定计数器数量
// maxCost: 最大内存占用（字节）
func NewLocalCache(maxItems, maxCost int64, ttl time.Duration) (*LocalCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10, // 计数器数量，建议为 maxItems 的 10 倍
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &LocalCache{
		cache:    cache,
		ttl:      ttl, // 比 L2 短，多实例间很快收敛
		emptyTTL: 10 * time.Second,
	}, nil
}

func (l *LocalCache) Get(key string) ([]byte, bool) {
	if v, ok := l.cache.Get(key); ok {
		return v.([]byte), true
	}
	return nil, false
}

// Set ttl 取较短的一个
func (l *LocalCache) Set(key string, data []byte, ttl time.Duration) {
	if ttl <= 0 || ttl > l.ttl {
		ttl = l.ttl
	}
	l.cache.SetWithTTL(key, data, int64(len(data))+int64(len(key)), ttl)
}

func (l *LocalCache) SetEmpty(key string) {
	l.cache.SetWithTTL(key, []byte(emptySentinel), 1, l.emptyTTL)
}

// Wait 等待缓冲中的写入生效
func (l *LocalCache) Wait() {
	l.cache.Wait()
}

func (l *LocalCache) Del(key string) {
	l.cache.Del(key)
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
