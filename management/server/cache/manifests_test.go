package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/netbirdio/updater/management/server/cache"
	"github.com/netbirdio/updater/management/server/types"
	"github.com/netbirdio/updater/shared/updates/api"
)

func testManifests() []*types.UpdateManifest {
	return []*types.UpdateManifest{
		{
			Version:     "1.1.0",
			Channel:     "stable",
			UpdateType:  api.UpdateTypeMinor,
			ReleaseDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Changelog:   []string{"faster sync"},
		},
		{
			Version:    "1.2.0",
			Channel:    "stable",
			UpdateType: api.UpdateTypePatch,
		},
	}
}

func TestManifestCache_Memory(t *testing.T) {
	ctx := context.Background()
	memStore, err := cache.NewStore(ctx, "", 100*time.Millisecond, 300*time.Millisecond)
	require.NoError(t, err)

	c := cache.NewManifestCache(memStore, 200*time.Millisecond)
	key := cache.ManifestsKey("stable", "")

	_, err = c.Get(ctx, key)
	require.Error(t, err, "empty cache must miss")

	require.NoError(t, c.Set(ctx, key, testManifests()))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1.1.0", got[0].Version)

	require.NoError(t, c.Delete(ctx, key))
	_, err = c.Get(ctx, key)
	require.Error(t, err)

	require.NoError(t, c.Set(ctx, key, testManifests()))
	time.Sleep(400 * time.Millisecond)
	_, err = c.Get(ctx, key)
	assert.Error(t, err, "entry must expire")
}

func TestManifestsKey(t *testing.T) {
	assert.NotEqual(t, cache.ManifestsKey("stable", ""), cache.ManifestsKey("stable", "beta-ui"))
}

func TestManifestCache_RedisConnectionFailure(t *testing.T) {
	t.Setenv(cache.RedisStoreEnvVar, "redis://127.0.0.1:1")
	_, err := cache.NewStore(context.Background(), "", time.Second, time.Second)
	assert.Error(t, err)
}

func TestManifestCache_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainersredis.RunContainer(ctx, testcontainers.WithImage("redis:7"))
	if err != nil {
		t.Skipf("couldn't start redis container: %s", err)
	}
	defer func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	redisURL, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	redisStore, err := cache.NewStore(ctx, redisURL, time.Minute, time.Minute)
	require.NoError(t, err)

	c := cache.NewManifestCache(redisStore, time.Minute)
	key := cache.ManifestsKey("beta", "new-ui")

	require.NoError(t, c.Set(ctx, key, testManifests()))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1.2.0", got[1].Version)
	assert.Equal(t, []string{"faster sync"}, got[0].Changelog)
	assert.True(t, got[0].ReleaseDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}
