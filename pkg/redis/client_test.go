package redis

import (
	"context"
	"testing"

	"github.com/aarnajewels/storefront-core/pkg/config"
)

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error when neither url nor address is set")
	}
}

func TestOptionsFromConfigParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:secret@localhost:6380/3", PoolSize: 7})
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opts.Addr != "localhost:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.DB != 3 {
		t.Fatalf("unexpected db %d", opts.DB)
	}
	if opts.PoolSize != 7 {
		t.Fatalf("pool size fallback not applied, got %d", opts.PoolSize)
	}
}

func TestOptionsFromConfigAddressFallback(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{Address: "127.0.0.1:6379", Password: "pw", DB: 1})
	if err != nil {
		t.Fatalf("build options: %v", err)
	}
	if opts.Addr != "127.0.0.1:6379" || opts.Password != "pw" || opts.DB != 1 {
		t.Fatalf("options not carried over: %+v", opts)
	}
}

func TestBuildKeySkipsEmptyParts(t *testing.T) {
	if got := BuildKey("doc", "", "carts", "u1"); got != "sf:doc:carts:u1" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := BuildKey(); got != "sf" {
		t.Fatalf("unexpected bare namespace %q", got)
	}
}

func TestNilClientGuards(t *testing.T) {
	var c *Client
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected nil client ping to fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil close should be a no-op, got %v", err)
	}
}
