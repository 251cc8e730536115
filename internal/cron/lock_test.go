package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockMutualExclusion(t *testing.T) {
	store := newFakeRedis()
	ctx := context.Background()

	first, err := NewRedisLock(store, "bh:lock:sweeps", time.Hour)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	second, err := NewRedisLock(store, "bh:lock:sweeps", time.Hour)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || ok {
		t.Fatalf("second acquire should lose: ok=%v err=%v", ok, err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestRedisLockReleaseOnlyByOwner(t *testing.T) {
	store := newFakeRedis()
	ctx := context.Background()

	holder, err := NewRedisLock(store, "bh:lock:sweeps", time.Hour)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	bystander, err := NewRedisLock(store, "bh:lock:sweeps", time.Hour)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}

	if ok, _ := holder.Acquire(ctx); !ok {
		t.Fatalf("holder should acquire")
	}
	if err := bystander.Release(ctx); err != nil {
		t.Fatalf("bystander release: %v", err)
	}
	if ok, _ := bystander.Acquire(ctx); ok {
		t.Fatalf("lock must survive a non-owner release")
	}
}

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "key", time.Hour); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := NewRedisLock(newFakeRedis(), "", time.Hour); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
