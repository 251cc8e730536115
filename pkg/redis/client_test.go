package redis

import (
	"testing"

	"github.com/bookhive/bookhive-backend/pkg/config"
)

func TestLockKeyNamespacing(t *testing.T) {
	if got := LockKey("cron-worker:prod"); got != "bh:lock:cron-worker:prod" {
		t.Fatalf("unexpected lock key: %s", got)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error when neither url nor address is set")
	}
}

func TestOptionsFromConfigParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7})
	if err != nil {
		t.Fatalf("optionsFromConfig: %v", err)
	}
	if opts.Addr != "localhost:6379" {
		t.Fatalf("unexpected addr: %s", opts.Addr)
	}
	if opts.DB != 2 {
		t.Fatalf("unexpected db: %d", opts.DB)
	}
	if opts.PoolSize != 7 {
		t.Fatalf("pool size fallback not applied: %d", opts.PoolSize)
	}
}

func TestOptionsFromConfigAddressFallback(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{Address: "127.0.0.1:6380", Password: "pw", DB: 1})
	if err != nil {
		t.Fatalf("optionsFromConfig: %v", err)
	}
	if opts.Addr != "127.0.0.1:6380" || opts.Password != "pw" || opts.DB != 1 {
		t.Fatalf("address fallback not applied: %+v", opts)
	}
}
