package updates

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/netbirdio/updater/management/server/types"
	"github.com/netbirdio/updater/shared/updates/api"
	"github.com/netbirdio/updater/shared/updates/status"
	"github.com/netbirdio/updater/util"
)

// feedEntry is a manifest as written in a feed file
type feedEntry struct {
	Version      string         `yaml:"version" json:"version"`
	BuildNumber  int64          `yaml:"buildNumber" json:"buildNumber"`
	ReleaseDate  time.Time      `yaml:"releaseDate" json:"releaseDate"`
	Channel      string         `yaml:"channel" json:"channel"`
	FeatureTag   string         `yaml:"featureTag" json:"featureTag"`
	MinVersion   string         `yaml:"minVersion" json:"minVersion"`
	MaxVersion   string         `yaml:"maxVersion" json:"maxVersion"`
	UpdateType   api.UpdateType `yaml:"updateType" json:"updateType"`
	IsHotUpdate  bool           `yaml:"isHotUpdate" json:"isHotUpdate"`
	IsRequired   bool           `yaml:"isRequired" json:"isRequired"`
	DownloadURL  string         `yaml:"downloadUrl" json:"downloadUrl"`
	DownloadSize int64          `yaml:"downloadSize" json:"downloadSize"`
	Checksum     string         `yaml:"checksum" json:"checksum"`
	Changelog    []string       `yaml:"changelog" json:"changelog"`
	Features     []string       `yaml:"features" json:"features"`
}

// feedFile holds either a list of manifests or a single one
type feedFile struct {
	Manifests []feedEntry `yaml:"manifests" json:"manifests"`
	feedEntry `yaml:",inline"`
}

func (e *feedEntry) toManifest() *types.UpdateManifest {
	return &types.UpdateManifest{
		Version:      e.Version,
		BuildNumber:  e.BuildNumber,
		ReleaseDate:  e.ReleaseDate.UTC(),
		Channel:      e.Channel,
		FeatureTag:   e.FeatureTag,
		MinVersion:   e.MinVersion,
		MaxVersion:   e.MaxVersion,
		UpdateType:   e.UpdateType,
		IsHotUpdate:  e.IsHotUpdate,
		IsRequired:   e.IsRequired,
		DownloadURL:  e.DownloadURL,
		DownloadSize: e.DownloadSize,
		Checksum:     e.Checksum,
		Changelog:    e.Changelog,
		Features:     e.Features,
	}
}

func parseFeedFile(path string) ([]*types.UpdateManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file feedFile
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, err
		}
	}

	entries := file.Manifests
	if len(entries) == 0 && file.Version != "" {
		entries = []feedEntry{file.feedEntry}
	}

	manifests := make([]*types.UpdateManifest, 0, len(entries))
	for i := range entries {
		manifests = append(manifests, entries[i].toManifest())
	}
	return manifests, nil
}

// LoadFeed publishes every manifest found in the yaml and json files of dir.
// Manifests that are already stored are skipped; invalid files and entries are reported together.
func (m *Manager) LoadFeed(ctx context.Context, dir string) (int, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml", "*.json"} {
		matches, err := util.ListFiles(dir, pattern)
		if err != nil {
			return 0, fmt.Errorf("list feed files: %w", err)
		}
		files = append(files, matches...)
	}

	var merr *multierror.Error
	published := 0
	for _, file := range files {
		manifests, err := parseFeedFile(file)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("parse %s: %w", filepath.Base(file), err))
			continue
		}

		for _, manifest := range manifests {
			err := m.Publish(ctx, manifest)
			switch {
			case err == nil:
				published++
			case status.IsType(err, status.AlreadyExists):
				log.WithContext(ctx).Debugf("feed manifest %s on channel %q already stored", manifest.Version, manifest.Channel)
			default:
				merr = multierror.Append(merr, fmt.Errorf("%s: manifest %s: %w", filepath.Base(file), manifest.Version, err))
			}
		}
	}

	log.WithContext(ctx).Infof("loaded %d new manifests from %d feed files in %s", published, len(files), dir)

	return published, merr.ErrorOrNil()
}
