// Package natskv implements the cache port on a JetStream KV bucket, so
// rendered exports announced on the session subject can be fetched by key.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache stores export bytes in a KeyValue bucket. Entry lifetime is the
// bucket TTL; the per-call ttl is ignored.
type Cache struct {
	kv jetstream.KeyValue
}

// New wraps kv.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// key maps a cache key to a valid KV key. KV keys may not contain ':'.
func key(k string) string {
	return strings.ReplaceAll(k, ":", ".")
}

// Get returns the stored value, or found == false for a missing key.
func (c *Cache) Get(ctx context.Context, k string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, key(k))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kv get %s: %w", k, err)
	}
	return entry.Value(), true, nil
}

// Set stores value under k.
func (c *Cache) Set(ctx context.Context, k string, value []byte, _ time.Duration) error {
	if _, err := c.kv.Put(ctx, key(k), value); err != nil {
		return fmt.Errorf("kv put %s: %w", k, err)
	}
	return nil
}

// Delete removes k. A missing key is not an error.
func (c *Cache) Delete(ctx context.Context, k string) error {
	err := c.kv.Delete(ctx, key(k))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("kv delete %s: %w", k, err)
	}
	return nil
}

// Clear purges every key of the bucket.
func (c *Cache) Clear(ctx context.Context) error {
	lister, err := c.kv.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("kv list keys: %w", err)
	}
	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}
	_ = lister.Stop()

	var errs []error
	for _, k := range keys {
		if err := c.kv.Purge(ctx, k); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bucket creates or updates the export bucket on js with the given entry TTL.
func Bucket(ctx context.Context, js jetstream.JetStream, name string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "rendered TraceScope session exports",
		TTL:         ttl,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("kv bucket %s: %w", name, err)
	}
	return kv, nil
}
