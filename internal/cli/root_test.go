package cli

import (
	"path/filepath"
	"testing"

	"github.com/clusterkit/topoviz/pkg/cache"
)

func TestCacheDirRespectsXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	want := filepath.Join("/tmp/xdg-cache", appName)
	if dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirDefaultsToHome(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "/home/rank0")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	want := filepath.Join("/home/rank0", ".cache", appName)
	if dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestNewRenderCacheDisabled(t *testing.T) {
	c := newRenderCache(true)
	defer c.Close()

	if _, ok := c.(*cache.NullCache); !ok {
		t.Errorf("newRenderCache(true) = %T, want *cache.NullCache", c)
	}
}

func TestNewRenderCacheEnabled(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	c := newRenderCache(false)
	defer c.Close()

	if _, ok := c.(*cache.FileCache); !ok {
		t.Errorf("newRenderCache(false) = %T, want *cache.FileCache", c)
	}
}
