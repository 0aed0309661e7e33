package updates

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/netbirdio/updater/management/server/cache"
	"github.com/netbirdio/updater/management/server/store"
	"github.com/netbirdio/updater/management/server/telemetry"
	"github.com/netbirdio/updater/management/server/types"
	"github.com/netbirdio/updater/shared/updates/status"
	"github.com/netbirdio/updater/version"
)

// Manager answers update checks from the manifest store and records client reports
type Manager struct {
	store   store.Store
	cache   *cache.ManifestCache
	metrics *telemetry.UpdatesMetrics
	now     func() time.Time
}

// NewManager creates a Manager. cache and metrics are optional.
func NewManager(s store.Store, manifestCache *cache.ManifestCache, metrics telemetry.AppMetrics) *Manager {
	m := &Manager{
		store: s,
		cache: manifestCache,
		now:   time.Now,
	}
	if metrics != nil {
		m.metrics = metrics.UpdatesMetrics()
	}
	return m
}

// Resolve returns the best manifest for a client running currentVersion on channel and featureTag,
// or nil when there is nothing to offer.
//
// Among manifests of the exact channel and feature tag that are applicable to currentVersion the
// highest version wins; equal versions are ordered by the latest release date. Unknown channels and
// feature tags yield no update. A malformed currentVersion yields no update, malformed stored
// manifests are skipped.
func (m *Manager) Resolve(ctx context.Context, currentVersion, channel, featureTag string) (*types.UpdateManifest, error) {
	start := time.Now()

	if _, err := version.Parse(currentVersion); err != nil {
		log.WithContext(ctx).Warnf("update check with malformed current version %q on channel %q: %v", currentVersion, channel, err)
		m.countCheck(channel, false, start)
		return nil, nil
	}

	candidates, err := m.candidates(ctx, channel, featureTag)
	if err != nil {
		return nil, err
	}

	var best *types.UpdateManifest
	var bestVersion *version.Identifier
	for _, candidate := range candidates {
		ok, err := version.IsApplicable(candidate.Constraint(), currentVersion)
		if err != nil {
			log.WithContext(ctx).Warnf("skipping malformed manifest %q on channel %q: %v", candidate.Version, channel, err)
			if m.metrics != nil {
				m.metrics.CountSkippedManifest()
			}
			continue
		}
		if !ok {
			continue
		}

		candidateVersion, _ := version.Parse(candidate.Version)
		if best == nil {
			best, bestVersion = candidate, candidateVersion
			continue
		}

		switch cmp := candidateVersion.Compare(bestVersion); {
		case cmp > 0:
			best, bestVersion = candidate, candidateVersion
		case cmp == 0 && candidate.ReleaseDate.After(best.ReleaseDate):
			best, bestVersion = candidate, candidateVersion
		}
	}

	m.countCheck(channel, best != nil, start)

	if best == nil {
		log.WithContext(ctx).Debugf("no update for %s on channel %q feature tag %q among %d manifests", currentVersion, channel, featureTag, len(candidates))
		return nil, nil
	}

	log.WithContext(ctx).Debugf("offering %s to %s on channel %q feature tag %q", best.Version, currentVersion, channel, featureTag)

	return best.Copy(), nil
}

func (m *Manager) countCheck(channel string, offered bool, start time.Time) {
	if m.metrics != nil {
		m.metrics.CountCheck(channel, offered, time.Since(start))
	}
}

func (m *Manager) candidates(ctx context.Context, channel, featureTag string) ([]*types.UpdateManifest, error) {
	key := cache.ManifestsKey(channel, featureTag)
	if m.cache != nil {
		if cached, err := m.cache.Get(ctx, key); err == nil {
			if m.metrics != nil {
				m.metrics.CountCacheHit()
			}
			return cached, nil
		}
		if m.metrics != nil {
			m.metrics.CountCacheMiss()
		}
	}

	manifests, err := m.store.GetManifests(ctx, channel, featureTag)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, key, manifests); err != nil {
			log.WithContext(ctx).Warnf("failed to cache manifests of %s: %v", key, err)
		}
	}

	return manifests, nil
}

// Publish validates and appends a manifest
func (m *Manager) Publish(ctx context.Context, manifest *types.UpdateManifest) error {
	if err := manifest.Validate(); err != nil {
		return status.NewInvalidManifestError(err)
	}

	if err := m.store.SaveManifest(ctx, manifest); err != nil {
		return err
	}

	if m.cache != nil {
		if err := m.cache.Delete(ctx, cache.ManifestsKey(manifest.Channel, manifest.FeatureTag)); err != nil {
			log.WithContext(ctx).Warnf("failed to invalidate manifest cache: %v", err)
		}
	}
	if m.metrics != nil {
		m.metrics.CountPublished(manifest.Channel)
	}

	log.WithContext(ctx).Infof("published manifest %s on channel %q feature tag %q", manifest.Version, manifest.Channel, manifest.FeatureTag)

	return nil
}

// GetManifests returns the manifests of a channel and feature tag
func (m *Manager) GetManifests(ctx context.Context, channel, featureTag string) ([]*types.UpdateManifest, error) {
	if channel == "" {
		return nil, status.Errorf(status.InvalidArgument, "channel is required")
	}
	return m.store.GetManifests(ctx, channel, featureTag)
}

// Report records a client lifecycle report. A zero timestamp is set to the receive time.
func (m *Manager) Report(ctx context.Context, report *types.UpdateReport) error {
	if err := report.Validate(); err != nil {
		return status.Errorf(status.InvalidArgument, "invalid report: %v", err)
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = m.now().UTC()
	}

	if err := m.store.SaveReport(ctx, report); err != nil {
		return err
	}

	if m.metrics != nil {
		m.metrics.CountReport(string(report.Status))
	}

	return nil
}

// History returns the reports of a device in the order they were recorded
func (m *Manager) History(ctx context.Context, deviceID string) ([]*types.UpdateReport, error) {
	if deviceID == "" {
		return nil, status.Errorf(status.InvalidArgument, "device id is required")
	}
	return m.store.GetReports(ctx, deviceID)
}
