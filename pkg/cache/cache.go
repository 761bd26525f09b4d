// Package cache stores rendered artifacts between invocations.
//
// Rendering a large topology through graphviz is the slowest step of the
// renderer, so results are cached on disk keyed by the input document bytes
// and the render options. The cache is purely an optimization: every
// implementation may drop entries at any time.
package cache

import (
	"context"
	"time"
)

// Cache is the storage interface for rendered artifacts.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key was
	// present and unexpired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}
