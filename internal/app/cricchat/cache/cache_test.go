package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newLocal(t *testing.T) *LocalCache {
	t.Helper()
	local, err := NewLocalCache(1000, 1<<20, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(local.Close)
	return local
}

func TestLocalOnly(t *testing.T) {
	local := newLocal(t)
	c := NewResponseCache(nil, local)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "/stats/v1/player/1"); ok || err != nil {
		t.Fatalf("cold cache: ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, "/stats/v1/player/1", []byte(`{"name":"A"}`), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := c.Set(ctx, "/stats/v1/player/2", nil, time.Hour); err != nil {
		t.Fatal(err)
	}
	local.Wait()

	data, ok, err := c.Get(ctx, "/stats/v1/player/1")
	if err != nil || !ok || string(data) != `{"name":"A"}` {
		t.Fatalf("hit: %s %v %v", data, ok, err)
	}
	data, ok, err = c.Get(ctx, "/stats/v1/player/2")
	if err != nil || !ok || data != nil {
		t.Fatalf("negative hit: %q %v %v", data, ok, err)
	}

	if err := c.Delete(ctx, "/stats/v1/player/1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "/stats/v1/player/1"); ok {
		t.Fatal("deleted key still cached")
	}
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			db = n
		}
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), DB: db})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skip: redis not available at %s: %v", addr, err)
	}
	return client
}

func TestRedisBackfillsLocal(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	key := "/test/" + strconv.FormatInt(time.Now().UnixNano(), 10)
	t.Cleanup(func() { client.Del(context.Background(), keyPrefix+key, keyPrefix+key+"/empty") })

	// 只写 L2
	writer := NewResponseCache(client, nil)
	if err := writer.Set(ctx, key, []byte(`[1,2]`), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := writer.SetEmpty(ctx, key+"/empty"); err != nil {
		t.Fatal(err)
	}
	if ttl := client.TTL(ctx, keyPrefix+key+"/empty").Val(); ttl <= 0 || ttl > 30*time.Second {
		t.Fatalf("negative ttl %v", ttl)
	}

	local := newLocal(t)
	reader := NewResponseCache(client, local)
	data, ok, err := reader.Get(ctx, key)
	if err != nil || !ok || string(data) != `[1,2]` {
		t.Fatalf("l2 hit: %s %v %v", data, ok, err)
	}
	if data, ok, err := reader.Get(ctx, key+"/empty"); err != nil || !ok || data != nil {
		t.Fatalf("l2 negative: %q %v %v", data, ok, err)
	}

	local.Wait()
	if v, ok := local.Get(key); !ok || string(v) != `[1,2]` {
		t.Fatalf("l1 not backfilled: %q %v", v, ok)
	}
}
