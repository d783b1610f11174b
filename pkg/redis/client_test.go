package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/clubledger-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmds: fake}

	for i, wantAllowed := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "10.0.0.1", 2, time.Second)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if allowed != wantAllowed || count != int64(i+1) {
			t.Fatalf("call %d: allowed=%v count=%d", i, allowed, count)
		}
	}
	if got := fake.ttl["cl:rate_limit:10.0.0.1"]; got != time.Second {
		t.Fatalf("expected window ttl, got %v", got)
	}
}

func TestIncrWithTTLKeepsFirstExpiry(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	client := &Client{cmds: fake}
	key := client.CounterKey("sale_code:20260301")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, time.Duration(want)*time.Hour)
		if err != nil {
			t.Fatalf("incr failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d got %d", want, got)
		}
	}
	if fake.ttl[key] != time.Hour {
		t.Fatalf("expiry should be set once, got %v", fake.ttl[key])
	}
}

func TestIncrWithTTLRepairsMissingExpiry(t *testing.T) {
	ctx := context.Background()
	fake := newFakeCommands()
	fake.expireErr = errors.New("connection reset")
	client := &Client{cmds: fake}

	count, err := client.IncrWithTTL(ctx, "k", time.Minute)
	if err == nil || count != 1 {
		t.Fatalf("expected expire failure to surface with count 1, got %d %v", count, err)
	}

	fake.expireErr = nil
	if _, err := client.IncrWithTTL(ctx, "k", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.ttl["k"] != time.Minute {
		t.Fatalf("expected the second call to attach the ttl")
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
	if _, err := client.IncrWithTTL(context.Background(), "k", 0); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if client.Scripter() != nil {
		t.Fatal("expected nil scripter")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close should be a no-op: %v", err)
	}
}

func TestKeys(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.RateLimitKey("scope"):        "cl:rate_limit:scope",
		client.CounterKey("hits"):           "cl:counter:hits",
		client.LockKey("product", "abc"):    "cl:lock:product:abc",
		client.LockKey("product", " "):      "cl:lock:product",
		client.CounterKey("sale_code:2026"): "cl:counter:sale_code:2026",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("expected %s got %s", want, got)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options db=%d pool=%d dial=%v", opts.DB, opts.PoolSize, opts.DialTimeout)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 4 {
		t.Fatalf("unexpected options addr=%s db=%d", opts.Addr, opts.DB)
	}
}

type fakeCommands struct {
	counts    map[string]int64
	ttl       map[string]time.Duration
	expireErr error
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{counts: map[string]int64{}, ttl: map[string]time.Duration{}}
}

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCommands) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	if _, set := f.ttl[key]; set {
		return redis.NewBoolResult(false, nil)
	}
	f.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}
