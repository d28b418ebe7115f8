package availability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, "booking"), mr
}

func TestRedisCacheGetSetTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)
	key := SlotsKey(monday, "svc-cut", "")

	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, key, []byte(`[]`), DefaultCacheTTL); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !mr.Exists("booking:" + key) {
		t.Fatalf("expected namespaced key, have %v", mr.Keys())
	}
	b, ok, err := c.Get(ctx, key)
	if err != nil || !ok || string(b) != `[]` {
		t.Fatalf("expected hit, got %q ok=%v err=%v", b, ok, err)
	}

	mr.FastForward(DefaultCacheTTL)
	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("expected miss after TTL, got ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, key, []byte(`[]`), 0); err != nil {
		t.Fatalf("Set with zero TTL failed: %v", err)
	}
	if mr.Exists("booking:" + key) {
		t.Fatal("zero TTL must not store an entry")
	}
}

func TestRedisCacheDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)
	tuesday := monday.AddDate(0, 0, 1)

	// more keys than one SCAN/UNLINK batch
	for i := 0; i < 450; i++ {
		if err := c.Set(ctx, SlotsKey(monday, fmt.Sprintf("svc-%d", i), ""), []byte(`[]`), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	keep := SlotsKey(tuesday, "svc-0", "")
	if err := c.Set(ctx, keep, []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := mr.Set("other:"+SlotsKey(monday, "svc-0", ""), "x"); err != nil {
		t.Fatalf("seed foreign key: %v", err)
	}

	if err := c.DeletePrefix(ctx, DayPrefix(monday)); err != nil {
		t.Fatalf("DeletePrefix failed: %v", err)
	}
	keys := mr.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected only tuesday and the foreign namespace to remain, got %d keys", len(keys))
	}
	if _, ok, _ := c.Get(ctx, keep); !ok {
		t.Fatal("tuesday entry was deleted")
	}
	if !mr.Exists("other:" + SlotsKey(monday, "svc-0", "")) {
		t.Fatal("key outside the namespace was deleted")
	}
}

func TestRedisCacheReportsErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewRedisCache(rdb, "booking")
	mr.Close()
	if _, _, err := c.Get(context.Background(), "avail:x"); err == nil {
		t.Fatal("expected error from unreachable redis")
	}
}
