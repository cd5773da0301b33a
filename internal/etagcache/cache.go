package etagcache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tyemirov/paceline/internal/fault"
)

const defaultEntryTTL = 15 * time.Minute

// Cache compares client ETags against the stored tag per (user, resource)
// and recomputes the result set on mismatch. Invalidation is whole-key: any
// write to a user's data deletes that user's tag.
type Cache struct {
	store    KV
	entryTTL time.Duration
	logger   *zap.Logger
}

// Result carries the tag and the recomputed payload of a read.
type Result struct {
	ETag string
	Data interface{}
}

// NewCache constructs a cache over the given KV store.
func NewCache(store KV, entryTTL time.Duration, logger *zap.Logger) *Cache {
	if entryTTL <= 0 {
		entryTTL = defaultEntryTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, entryTTL: entryTTL, logger: logger}
}

// Fetch resolves one cached read. When the client's tag equals the stored
// one the recompute function is never called and the not-modified class is
// returned. Otherwise the data is recomputed, its tag stored with a TTL, and
// both returned. A failing KV store degrades to recompute-every-time.
func (cache *Cache) Fetch(ctx context.Context, userID uuid.UUID, resource string, clientETag string, recompute func(ctx context.Context) (interface{}, error)) (Result, error) {
	cacheKey := entryKey(userID, resource)

	if clientETag != "" {
		storedETag, getErr := cache.store.Get(ctx, cacheKey)
		if getErr == nil && storedETag == clientETag {
			return Result{ETag: storedETag}, fault.Wrap(fault.ErrNotModified, "etagcache.not_modified", nil)
		}
		if getErr != nil && !errors.Is(getErr, ErrKeyMiss) {
			cache.logger.Warn("etag lookup failed", zap.String("resource", resource), zap.Error(getErr))
		}
	}

	data, recomputeErr := recompute(ctx)
	if recomputeErr != nil {
		return Result{}, recomputeErr
	}
	etag, etagErr := ComputeETag(data)
	if etagErr != nil {
		return Result{}, etagErr
	}
	if setErr := cache.store.SetTTL(ctx, cacheKey, etag, cache.entryTTL); setErr != nil {
		cache.logger.Warn("etag store failed", zap.String("resource", resource), zap.Error(setErr))
	}
	return Result{ETag: etag, Data: data}, nil
}

// Invalidate deletes the stored tag so the next read recomputes.
func (cache *Cache) Invalidate(ctx context.Context, userID uuid.UUID, resource string) error {
	if deleteErr := cache.store.Delete(ctx, entryKey(userID, resource)); deleteErr != nil {
		return fault.Wrap(fault.ErrInternal, "etagcache.invalidate", deleteErr)
	}
	return nil
}

// ComputeETag hashes a canonical serialization of the value: stable key
// order, compact separators. Equal data always yields an equal tag.
func ComputeETag(data interface{}) (string, error) {
	canonical, canonicalErr := canonicalJSON(data)
	if canonicalErr != nil {
		return "", fault.Wrap(fault.ErrInternal, "etagcache.canonicalize", canonicalErr)
	}
	digest := md5.Sum(canonical)
	return hex.EncodeToString(digest[:]), nil
}

// canonicalJSON round-trips the value through a generic document so object
// keys come out sorted regardless of struct field order.
func canonicalJSON(data interface{}) ([]byte, error) {
	encoded, encodeErr := json.Marshal(data)
	if encodeErr != nil {
		return nil, encodeErr
	}
	var document interface{}
	if decodeErr := json.Unmarshal(encoded, &document); decodeErr != nil {
		return nil, decodeErr
	}
	return json.Marshal(document)
}

func entryKey(userID uuid.UUID, resource string) string {
	return fmt.Sprintf("etag:%s:%s", userID, resource)
}
