package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/updater/management/server/store"
)

const exampleConfig = `{
	"Datadir": "/var/lib/updates",
	"HttpConfig": {
		"Address": ":8080",
		"PublicURL": "https://updates.example.com",
		"PublishToken": "secret"
	},
	"StoreConfig": {
		"Engine": "postgres",
		"DSN": "host=localhost user=updates"
	},
	"CacheConfig": {
		"Expiration": "30s"
	},
	"RateLimit": {
		"RequestsPerMinute": 10
	}
}`

func Test_loadMgmtConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updates.json")
	require.NoError(t, os.WriteFile(path, []byte(exampleConfig), 0600))

	cfg, err := loadMgmtConfig(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/updates", cfg.Datadir)
	assert.Equal(t, ":8080", cfg.HttpConfig.Address)
	assert.Equal(t, "secret", cfg.HttpConfig.PublishToken)
	assert.Equal(t, store.PostgresStoreEngine, cfg.StoreConfig.Engine)
	assert.Equal(t, 30*time.Second, cfg.CacheConfig.Expiration.Duration)
	assert.Equal(t, float64(10), cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "local", cfg.ArtifactsConfig.Backend)
}

func Test_loadMgmtConfigMissingFile(t *testing.T) {
	cfg, err := loadMgmtConfig(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, store.SqliteStoreEngine, cfg.StoreConfig.Engine)
	assert.NotNil(t, cfg.HttpConfig)
}

func Test_loadMgmtConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "updates.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))

	_, err := loadMgmtConfig(context.Background(), path)
	assert.Error(t, err)
}
