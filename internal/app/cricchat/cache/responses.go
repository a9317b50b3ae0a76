package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"cricchat.local/internal/platform/metrics"
	"github.com/redis/go-redis/v9"
)

// 上游明确返回“无数据”时写入的哨兵值
const emptySentinel = "__nil__"

const keyPrefix = "cb:"

// ResponseCache 上游响应的两级缓存：L1 ristretto，L2 redis（可选）
type ResponseCache struct {
	client   *redis.Client
	local    *LocalCache
	emptyTTL time.Duration
}

// NewResponseCache client 为 nil 时只用本地缓存
func NewResponseCache(client *redis.Client, local *LocalCache) *ResponseCache {
	return &ResponseCache{
		client:   client,
		local:    local,
		emptyTTL: 30 * time.Second,
	}
}

// Get ok 且 data 为 nil 表示命中负缓存
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	// L1
	if c.local != nil {
		if data, ok := c.local.Get(key); ok {
			if string(data) == emptySentinel {
				metrics.CacheOperations.WithLabelValues("l1", "hit_negative").Inc()
				return nil, true, nil
			}
			metrics.CacheOperations.WithLabelValues("l1", "hit").Inc()
			return data, true, nil
		}
		metrics.CacheOperations.WithLabelValues("l1", "miss").Inc()
	}
	if c.client == nil {
		return nil, false, nil
	}

	// L2
	res, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	empty := bytes.Equal(res, []byte(emptySentinel))
	if empty {
		metrics.CacheOperations.WithLabelValues("l2", "hit_negative").Inc()
	} else {
		metrics.CacheOperations.WithLabelValues("l2", "hit").Inc()
	}

	// 回填本地缓存
	if c.local != nil {
		if empty {
			c.local.SetEmpty(key)
		} else {
			c.local.Set(key, res, 0)
		}
	}
	if empty {
		return nil, true, nil
	}
	return res, true, nil
}

// Set data 为 nil 时写负缓存，TTL 固定为 emptyTTL
func (c *ResponseCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if data == nil {
		return c.SetEmpty(ctx, key)
	}
	if c.local != nil {
		c.local.Set(key, data, ttl)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+key, data, ttl).Err()
}

// SetEmpty 用明确哨兵值做负缓存，避免反复打到上游
func (c *ResponseCache) SetEmpty(ctx context.Context, key string) error {
	if c.local != nil {
		c.local.SetEmpty(key)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+key, emptySentinel, c.emptyTTL).Err()
}

func (c *ResponseCache) Delete(ctx context.Context, key string) error {
	if c.local != nil {
		c.local.Del(key)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keyPrefix+key).Err()
}

// Close 关闭本地缓存
func (c *ResponseCache) Close() {
	if c.local != nil {
		c.local.Close()
		slog.Info("本地缓存已关闭")
	}
}
