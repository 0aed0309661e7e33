package server

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/updater/management/server/artifacts"
	"github.com/netbirdio/updater/management/server/cache"
	nbhttp "github.com/netbirdio/updater/management/server/http"
	"github.com/netbirdio/updater/management/server/store"
	"github.com/netbirdio/updater/management/server/telemetry"
	"github.com/netbirdio/updater/management/server/updates"
)

// BaseServer wires the store, the resolve cache, the update check service and the HTTP API
type BaseServer struct {
	config     *Config
	store      store.Store
	manager    *updates.Manager
	httpServer *nbhttp.Server
}

// NewServer creates the update server from config. metrics may be nil.
func NewServer(ctx context.Context, config *Config, metrics telemetry.AppMetrics) (*BaseServer, error) {
	config.ApplyDefaults()

	if err := os.MkdirAll(config.Datadir, 0750); err != nil {
		return nil, fmt.Errorf("create datadir %s: %w", config.Datadir, err)
	}

	s, err := store.NewStore(ctx, config.StoreConfig.Engine, config.Datadir, config.StoreConfig.DSN, metrics)
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	cacheStore, err := cache.NewStore(ctx, config.CacheConfig.RedisAddress, config.CacheConfig.Expiration.Duration, config.cacheCleanupInterval())
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("create cache: %w", err)
	}

	manager := updates.NewManager(s, cache.NewManifestCache(cacheStore, config.CacheConfig.Expiration.Duration), metrics)

	artifactsConfig := config.ArtifactsConfig
	if artifactsConfig.Backend == artifacts.LocalBackend && artifactsConfig.Dir == "" {
		artifactsConfig.Dir = filepath.Join(config.Datadir, "artifacts")
	}
	if artifactsConfig.Dir != "" && !filepath.IsAbs(artifactsConfig.Dir) {
		if artifactsConfig.Dir, err = filepath.Abs(artifactsConfig.Dir); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("resolve artifact dir: %w", err)
		}
	}
	backend, err := artifacts.NewBackend(ctx, artifactsConfig)
	if err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("create artifact backend: %w", err)
	}

	var artifactBase *url.URL
	if config.HttpConfig.PublicURL != "" {
		public, err := url.Parse(config.HttpConfig.PublicURL)
		if err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("invalid public url %q: %w", config.HttpConfig.PublicURL, err)
		}
		artifactBase = public.JoinPath(artifacts.PathPrefix + "/")
	}

	api := nbhttp.NewAPIHandler(manager, backend, metrics, nbhttp.Options{
		PublishToken:    config.HttpConfig.PublishToken,
		ArtifactBaseURL: artifactBase,
		RateLimiter:     config.rateLimiterConfig(),
	})

	return &BaseServer{
		config:     config,
		store:      s,
		manager:    manager,
		httpServer: nbhttp.NewServer(config.HttpConfig.Address, api, config.HttpConfig.CertFile, config.HttpConfig.CertKey),
	}, nil
}

// Start loads the manifest feed and starts serving
func (s *BaseServer) Start(ctx context.Context) error {
	if s.config.ManifestsDir != "" {
		// a bad feed entry must not keep valid releases from being served
		if _, err := s.manager.LoadFeed(ctx, s.config.ManifestsDir); err != nil {
			log.WithContext(ctx).Warnf("manifest feed %s loaded with errors: %v", s.config.ManifestsDir, err)
		}
	}

	return s.httpServer.Start(ctx)
}

// Addr returns the API listening address
func (s *BaseServer) Addr() net.Addr {
	return s.httpServer.Addr()
}

// Manager returns the update check service
func (s *BaseServer) Manager() *updates.Manager {
	return s.manager
}

// Stop stops serving and closes the store
func (s *BaseServer) Stop(ctx context.Context) error {
	var merr *multierror.Error
	if err := s.httpServer.Stop(ctx); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("stop http server: %w", err))
	}
	if err := s.store.Close(ctx); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("close store: %w", err))
	}
	return merr.ErrorOrNil()
}
