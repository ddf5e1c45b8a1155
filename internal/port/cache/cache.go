// Package cache defines the port for caching rendered session exports.
package cache

import (
	"context"
	"time"
)

// Cache is a byte cache. A miss is reported as found == false, not an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Clear drops every entry.
	Clear(ctx context.Context) error
}
