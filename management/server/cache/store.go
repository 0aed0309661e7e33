package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// RedisStoreEnvVar overrides the configured redis address
const RedisStoreEnvVar = "NB_UPDATES_CACHE_REDIS_ADDRESS"

// NewStore returns a redis backed store when an address is configured (or set in RedisStoreEnvVar)
// and an in-memory store otherwise
func NewStore(ctx context.Context, redisAddr string, maxTimeout, cleanupInterval time.Duration) (store.StoreInterface, error) {
	if addr := os.Getenv(RedisStoreEnvVar); addr != "" {
		redisAddr = addr
	}
	if redisAddr != "" {
		return getRedisStore(ctx, redisAddr)
	}
	goc := gocache.New(maxTimeout, cleanupInterval)
	return gocache_store.NewGoCache(goc), nil
}

func getRedisStore(ctx context.Context, redisAddr string) (store.StoreInterface, error) {
	options, err := redis.ParseURL(redisAddr)
	if err != nil {
		return nil, fmt.Errorf("parsing redis cache url: %s", err)
	}

	redisClient := redis.NewClient(options)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err = redisClient.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return redis_store.NewRedis(redisClient), nil
}
