// Package etagcache implements the ETag read-path cache: one stored tag per
// (user, resource), recomputed on every read that touches storage and deleted
// whenever the underlying data set changes.
package etagcache

import (
	"context"
	"errors"
	"time"
)

// ErrKeyMiss reports that a key does not exist or has expired.
var ErrKeyMiss = errors.New("etagcache.key_miss")

// KV is the minimal TTL key-value store the cache needs. Both the in-memory
// and the Redis implementation satisfy it.
type KV interface {
	// Get returns the stored value or ErrKeyMiss.
	Get(ctx context.Context, key string) (string, error)

	// SetTTL stores a value that expires after ttl.
	SetTTL(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete removes a key; deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Close releases the underlying connection.
	Close() error
}
