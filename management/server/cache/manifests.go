package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/eko/gocache/store/redis/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/netbirdio/updater/management/server/types"
)

const (
	DefaultManifestCacheExpiration      = 5 * time.Minute
	DefaultManifestCacheCleanupInterval = 10 * time.Minute
)

// Marshaler is the subset of the gocache marshaler used by the caches in this package
type Marshaler interface {
	Get(ctx context.Context, key any, returnObj any) (any, error)
	Set(ctx context.Context, key, object any, options ...store.Option) error
	Delete(ctx context.Context, key any) error
}

// memoryMarshaler stores values as-is for in-process stores where no serialization is required
type memoryMarshaler struct {
	cache cache.CacheInterface[any]
}

func (m *memoryMarshaler) Get(ctx context.Context, key any, _ any) (any, error) {
	return m.cache.Get(ctx, key)
}

func (m *memoryMarshaler) Set(ctx context.Context, key, object any, options ...store.Option) error {
	return m.cache.Set(ctx, key, object, options...)
}

func (m *memoryMarshaler) Delete(ctx context.Context, key any) error {
	return m.cache.Delete(ctx, key)
}

// ManifestCache caches the candidate manifests of a channel and feature tag
type ManifestCache struct {
	cache      Marshaler
	expiration time.Duration
}

// NewManifestCache creates a manifest cache on top of the given store
func NewManifestCache(s store.StoreInterface, expiration time.Duration) *ManifestCache {
	simpleCache := cache.New[any](s)
	if s.GetType() == redis.RedisType {
		return &ManifestCache{cache: marshaler.New(simpleCache), expiration: expiration}
	}
	return &ManifestCache{cache: &memoryMarshaler{simpleCache}, expiration: expiration}
}

// ManifestsKey returns the cache key of a channel and feature tag
func ManifestsKey(channel, featureTag string) string {
	return fmt.Sprintf("manifests:%s:%s", channel, featureTag)
}

// Get returns the cached manifests of key or an error on a miss
func (c *ManifestCache) Get(ctx context.Context, key string) ([]*types.UpdateManifest, error) {
	var manifests []*types.UpdateManifest
	v, err := c.cache.Get(ctx, key, &manifests)
	if err != nil {
		return nil, err
	}

	switch v := v.(type) {
	case []*types.UpdateManifest:
		return v, nil
	case *[]*types.UpdateManifest:
		return *v, nil
	case []byte:
		return unmarshalManifests(v)
	}

	return nil, fmt.Errorf("unexpected type: %T", v)
}

func unmarshalManifests(data []byte) ([]*types.UpdateManifest, error) {
	returnObj := &[]*types.UpdateManifest{}
	if err := msgpack.Unmarshal(data, returnObj); err != nil {
		return nil, err
	}
	return *returnObj, nil
}

// Set caches manifests under key
func (c *ManifestCache) Set(ctx context.Context, key string, manifests []*types.UpdateManifest) error {
	return c.cache.Set(ctx, key, manifests, store.WithExpiration(c.expiration))
}

// Delete invalidates key
func (c *ManifestCache) Delete(ctx context.Context, key string) error {
	return c.cache.Delete(ctx, key)
}
