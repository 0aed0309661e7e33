package server

import (
	"time"

	"github.com/netbirdio/updater/management/server/artifacts"
	"github.com/netbirdio/updater/management/server/cache"
	"github.com/netbirdio/updater/management/server/http/middleware"
	"github.com/netbirdio/updater/management/server/store"
	"github.com/netbirdio/updater/shared/updates/http/util"
)

// Config of the update server
type Config struct {
	Datadir string

	HttpConfig *HttpServerConfig

	StoreConfig StoreConfig

	CacheConfig CacheConfig

	ArtifactsConfig artifacts.Config

	RateLimit RateLimitConfig

	// ManifestsDir is scanned for yaml and json manifest feeds on start
	ManifestsDir string
}

// HttpServerConfig is a config of the HTTP API server
type HttpServerConfig struct {
	Address string
	// PublicURL is the externally reachable base URL. Relative download URLs resolve against PublicURL/artifacts/.
	PublicURL string
	// PublishToken protects manifest ingest and artifact upload
	PublishToken string
	//CertFile is the location of the certificate
	CertFile string
	//CertKey is the location of the certificate private key
	CertKey string
}

// StoreConfig selects the manifest and report store
type StoreConfig struct {
	Engine store.Engine
	// DSN is used by the postgres and mysql engines
	DSN string
}

// CacheConfig configures the resolve cache
type CacheConfig struct {
	// RedisAddress switches the cache from in-memory to redis, e.g. redis://localhost:6379/0
	RedisAddress string
	Expiration   util.Duration
}

// RateLimitConfig limits update checks per client address
type RateLimitConfig struct {
	RequestsPerMinute float64
	Burst             int
}

// ApplyDefaults fills unset values
func (c *Config) ApplyDefaults() {
	if c.HttpConfig == nil {
		c.HttpConfig = &HttpServerConfig{}
	}
	if c.StoreConfig.Engine == "" {
		c.StoreConfig.Engine = store.SqliteStoreEngine
	}
	if c.CacheConfig.Expiration.Duration <= 0 {
		c.CacheConfig.Expiration = util.Duration{Duration: cache.DefaultManifestCacheExpiration}
	}
	if c.ArtifactsConfig.Backend == "" {
		c.ArtifactsConfig.Backend = artifacts.LocalBackend
	}
}

func (c *Config) rateLimiterConfig() *middleware.RateLimiterConfig {
	cfg := middleware.DefaultRateLimiterConfig()
	if c.RateLimit.RequestsPerMinute > 0 {
		cfg.RequestsPerMinute = c.RateLimit.RequestsPerMinute
	}
	if c.RateLimit.Burst > 0 {
		cfg.Burst = c.RateLimit.Burst
	}
	return cfg
}

func (c *Config) cacheCleanupInterval() time.Duration {
	return 2 * c.CacheConfig.Expiration.Duration
}
