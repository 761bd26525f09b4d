package cache

import (
	"context"
	"testing"
	"time"
)

func TestFileCacheRoundTrip(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	key := Key("render", "abc123", "png")

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v, err=%v", ok, err)
	}

	payload := []byte("\x89PNG fake image bytes")
	if err := c.Set(ctx, key, payload, 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() = ok=%v, err=%v", ok, err)
	}
	if string(got) != string(payload) {
		t.Errorf("Get() = %q, want %q", got, payload)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() should miss after expiry")
	}
}

func TestFileCacheDelete(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() should miss after Delete")
	}
	// Deleting an absent key is fine.
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete(absent) error: %v", err)
	}
}

func TestNullCache(t *testing.T) {
	c := NewNullCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); err != nil || ok {
		t.Errorf("NullCache Get() = ok=%v, err=%v, want miss", ok, err)
	}
}

func TestKeyDeterministic(t *testing.T) {
	a := Key("render", "doc-hash", "png", "default")
	b := Key("render", "doc-hash", "png", "default")
	if a != b {
		t.Errorf("Key() not deterministic: %q vs %q", a, b)
	}

	c := Key("render", "doc-hash", "svg", "default")
	if a == c {
		t.Error("Key() should differ for different parts")
	}
}
