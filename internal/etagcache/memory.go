package etagcache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value     string
	expiresAt time.Time
}

// MemoryKV is an in-process KV with lazy expiration, suitable for
// single-instance deployments and tests.
type MemoryKV struct {
	mutex sync.RWMutex
	items map[string]memoryItem
}

// NewMemoryKV constructs an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string]memoryItem)}
}

// Get returns the stored value or ErrKeyMiss.
func (store *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	item, exists := store.items[key]
	if !exists || time.Now().After(item.expiresAt) {
		return "", ErrKeyMiss
	}
	return item.value, nil
}

// SetTTL stores a value that expires after ttl.
func (store *MemoryKV) SetTTL(ctx context.Context, key string, value string, ttl time.Duration) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.items[key] = memoryItem{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes a key.
func (store *MemoryKV) Delete(ctx context.Context, key string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	delete(store.items, key)
	return nil
}

// Close drops all entries.
func (store *MemoryKV) Close() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.items = make(map[string]memoryItem)
	return nil
}
