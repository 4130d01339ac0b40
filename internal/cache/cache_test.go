package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type payload struct {
	Name string `json:"name"`
}

func TestRedisCache_JSONRoundTripAndTTL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(rdb)
	ctx := context.Background()

	if err := SetJSON(ctx, c, "bot_settings", payload{Name: "x"}, 5*time.Minute); err != nil {
		t.Fatalf("SetJSON() error: %v", err)
	}
	if ttl := mr.TTL("bot_settings"); ttl != 5*time.Minute {
		t.Fatalf("expected TTL 5m, got %v", ttl)
	}
	var got payload
	if err := GetJSON(ctx, c, "bot_settings", &got); err != nil || got.Name != "x" {
		t.Fatalf("GetJSON() = %+v, %v", got, err)
	}

	mr.FastForward(6 * time.Minute)
	if _, err := c.Get(ctx, "bot_settings"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after TTL, got %v", err)
	}
}

func TestRedisCache_Del(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCache(rdb)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	if err := c.Del(ctx, "a", "b"); err != nil {
		t.Fatalf("Del() error: %v", err)
	}
	if mr.Exists("a") || mr.Exists("b") {
		t.Fatalf("keys still present")
	}
}

func TestRedisCache_ContextCanceled(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if b, err := c.Get(ctx, "k"); err != nil || string(b) != "v" {
		t.Fatalf("Get() = %q, %v", b, err)
	}
	now = now.Add(time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss at expiry, got %v", err)
	}

	_ = c.Set(ctx, "forever", []byte("x"), 0)
	now = now.Add(1000 * time.Hour)
	if _, err := c.Get(ctx, "forever"); err != nil {
		t.Fatalf("no-ttl entry expired: %v", err)
	}
}
