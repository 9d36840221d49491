package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisThrottle(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := InitializeRedisClient(ctx, RedisOptions{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	throttle := NewRedisThrottle(client, 3, time.Minute, nil)
	for i := 0; i < 3; i++ {
		allowed, err := throttle.Allow(ctx, "Alice")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if err := throttle.Fail(ctx, "alice"); err != nil {
			t.Fatalf("fail: %v", err)
		}
	}
	if allowed, _ := throttle.Allow(ctx, "alice"); allowed {
		t.Fatalf("expected lockout after 3 failures")
	}
	if ttl := mr.TTL(loginFailuresPrefix + "alice"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected lockout window to be set, got %s", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if allowed, _ := throttle.Allow(ctx, "alice"); !allowed {
		t.Fatalf("expected lockout to expire")
	}

	_ = throttle.Fail(ctx, "alice")
	if err := throttle.Reset(ctx, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if mr.Exists(loginFailuresPrefix + "alice") {
		t.Fatalf("expected counter to be deleted on reset")
	}
}

func TestInitializeRedisClientFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := InitializeRedisClient(context.Background(), RedisOptions{Addr: addr}); err == nil {
		t.Fatalf("expected error connecting to a closed server")
	}
}

func TestRedisThrottleRepairsCounterWithoutTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := InitializeRedisClient(ctx, RedisOptions{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	key := loginFailuresPrefix + "alice"
	if err := mr.Set(key, "7"); err != nil {
		t.Fatalf("seed counter: %v", err)
	}
	throttle := NewRedisThrottle(client, 3, time.Minute, nil)
	for i := 0; i < 2; i++ {
		if err := throttle.Fail(ctx, "alice"); err != nil {
			t.Fatalf("fail: %v", err)
		}
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected lockout window on stale counter, got %s", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if allowed, _ := throttle.Allow(ctx, "alice"); !allowed {
		t.Fatalf("expected stale counter to expire")
	}
}
