package etagcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/tyemirov/paceline/internal/fault"
)

// RedisKV is a Redis-backed KV via the rueidis client, for deployments where
// cache state must be shared across instances.
type RedisKV struct {
	client    rueidis.Client
	keyPrefix string
}

// NewRedisKV connects to Redis and verifies the connection with a ping.
func NewRedisKV(ctx context.Context, address string, password string, database int, keyPrefix string) (*RedisKV, error) {
	client, clientErr := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{address},
		Password:     password,
		SelectDB:     database,
		DisableCache: true,
	})
	if clientErr != nil {
		return nil, fault.Wrap(fault.ErrInternal, "etagcache.redis.client", clientErr)
	}
	if pingErr := client.Do(ctx, client.B().Ping().Build()).Error(); pingErr != nil {
		client.Close()
		return nil, fault.Wrap(fault.ErrInternal, "etagcache.redis.ping", pingErr)
	}
	return &RedisKV{client: client, keyPrefix: keyPrefix}, nil
}

// Get returns the stored value or ErrKeyMiss.
func (store *RedisKV) Get(ctx context.Context, key string) (string, error) {
	response := store.client.Do(ctx, store.client.B().Get().Key(store.keyPrefix+key).Build())
	if responseErr := response.Error(); responseErr != nil {
		if rueidis.IsRedisNil(responseErr) {
			return "", ErrKeyMiss
		}
		return "", fmt.Errorf("etagcache.redis.get: %w", responseErr)
	}
	value, valueErr := response.ToString()
	if valueErr != nil {
		return "", fmt.Errorf("etagcache.redis.get: %w", valueErr)
	}
	return value, nil
}

// SetTTL stores a value that expires after ttl.
func (store *RedisKV) SetTTL(ctx context.Context, key string, value string, ttl time.Duration) error {
	command := store.client.B().Set().Key(store.keyPrefix + key).Value(value).Ex(ttl).Build()
	if setErr := store.client.Do(ctx, command).Error(); setErr != nil {
		return fmt.Errorf("etagcache.redis.set: %w", setErr)
	}
	return nil
}

// Delete removes a key.
func (store *RedisKV) Delete(ctx context.Context, key string) error {
	if deleteErr := store.client.Do(ctx, store.client.B().Del().Key(store.keyPrefix+key).Build()).Error(); deleteErr != nil {
		return fmt.Errorf("etagcache.redis.delete: %w", deleteErr)
	}
	return nil
}

// Close closes the Redis connection.
func (store *RedisKV) Close() error {
	store.client.Close()
	return nil
}
