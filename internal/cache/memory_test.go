package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"surveysync/internal/config"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	defer c.Close()
	ctx := context.Background()

	value := []byte("1")
	if err := c.Set(ctx, "a", value, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'x'

	got, err := c.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "1" {
		t.Errorf("Get() = %q, want stored copy %q", got, "1")
	}

	if _, err := c.Get(ctx, "missing"); err != ErrCacheMiss {
		t.Errorf("Get(missing) error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "short", []byte("1"), time.Millisecond)
	c.Set(ctx, "forever", []byte("1"), 0)
	time.Sleep(5 * time.Millisecond)

	if ok, _ := c.Exists(ctx, "short"); ok {
		t.Error("Exists(short) = true after ttl, want false")
	}
	if ok, _ := c.Exists(ctx, "forever"); !ok {
		t.Error("Exists(forever) = false, want true")
	}

	c.removeExpired()
	if n := c.Len(); n != 1 {
		t.Errorf("Len() after sweep = %d, want 1", n)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), 0)
	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(ctx, "a"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
	if ok, _ := c.Exists(ctx, "a"); ok {
		t.Error("Exists() after Delete = true")
	}

	c.Close()
	c.Close()
}

func TestNew(t *testing.T) {
	c, err := New(config.CacheConfig{Type: "none"})
	if err != nil || c != nil {
		t.Errorf("New(none) = %v, %v; want nil, nil", c, err)
	}

	c, err = New(config.CacheConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("New(memory) error = %v", err)
	}
	if _, ok := c.(*MemoryCache); !ok {
		t.Errorf("New(memory) = %T, want *MemoryCache", c)
	}
	c.Close()

	_, err = New(config.CacheConfig{Type: "bogus"})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("New(bogus) error = %v, want ErrUnknownType", err)
	}
}
