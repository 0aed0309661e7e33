package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/netbirdio/updater/shared/updates/api"
	"github.com/netbirdio/updater/version"
)

// UpdateManifest is a published release. Manifests are append-only: the (Channel, FeatureTag, Version)
// triple is unique and a stored manifest is never modified.
type UpdateManifest struct {
	ID uint `gorm:"primaryKey"`

	Version     string `gorm:"uniqueIndex:idx_manifest_key;size:64"`
	Channel     string `gorm:"uniqueIndex:idx_manifest_key;size:64"`
	FeatureTag  string `gorm:"uniqueIndex:idx_manifest_key;size:64"`
	BuildNumber int64
	ReleaseDate time.Time
	MinVersion  string
	MaxVersion  string
	UpdateType  api.UpdateType
	IsHotUpdate bool
	IsRequired  bool
	// DownloadURL may be relative to the artifact endpoint of this server
	DownloadURL  string
	DownloadSize int64
	Checksum     string
	Changelog    []string `gorm:"serializer:json"`
	Features     []string `gorm:"serializer:json"`

	CreatedAt time.Time
}

// Validate checks the invariants every stored manifest must hold
func (m *UpdateManifest) Validate() error {
	if m.Channel == "" {
		return errors.New("channel is required")
	}

	if _, err := version.Parse(m.Version); err != nil {
		return fmt.Errorf("version: %w", err)
	}

	var err error
	var minV, maxV *version.Identifier
	if m.MinVersion != "" {
		if minV, err = version.Parse(m.MinVersion); err != nil {
			return fmt.Errorf("min version: %w", err)
		}
	}
	if m.MaxVersion != "" {
		if maxV, err = version.Parse(m.MaxVersion); err != nil {
			return fmt.Errorf("max version: %w", err)
		}
	}
	if minV != nil && maxV != nil && minV.Compare(maxV) > 0 {
		return fmt.Errorf("min version %s is greater than max version %s", m.MinVersion, m.MaxVersion)
	}

	if !m.UpdateType.Valid() {
		return fmt.Errorf("unknown update type %q", m.UpdateType)
	}

	if m.DownloadSize < 0 {
		return errors.New("download size must not be negative")
	}

	if m.DownloadURL != "" {
		if m.Checksum == "" {
			return errors.New("checksum is required when a download url is set")
		}
		if _, err := api.ParseChecksum(m.Checksum); err != nil {
			return err
		}
	}

	return nil
}

// Constraint returns the applicability window of the manifest
func (m *UpdateManifest) Constraint() version.Constraint {
	return version.Constraint{
		Version:    m.Version,
		MinVersion: m.MinVersion,
		MaxVersion: m.MaxVersion,
	}
}

// ToAPIResponse converts the stored manifest to its wire form
func (m *UpdateManifest) ToAPIResponse() *api.UpdateManifest {
	return &api.UpdateManifest{
		Version:      m.Version,
		BuildNumber:  m.BuildNumber,
		ReleaseDate:  m.ReleaseDate.UTC(),
		Channel:      m.Channel,
		FeatureTag:   m.FeatureTag,
		MinVersion:   m.MinVersion,
		MaxVersion:   m.MaxVersion,
		UpdateType:   m.UpdateType,
		IsHotUpdate:  m.IsHotUpdate,
		IsRequired:   m.IsRequired,
		DownloadURL:  m.DownloadURL,
		DownloadSize: m.DownloadSize,
		Checksum:     m.Checksum,
		Changelog:    m.Changelog,
		Features:     m.Features,
	}
}

// Copy returns a deep copy of the manifest
func (m *UpdateManifest) Copy() *UpdateManifest {
	c := *m
	c.Changelog = append([]string(nil), m.Changelog...)
	c.Features = append([]string(nil), m.Features...)
	return &c
}

// ManifestFromAPI converts a wire manifest to its stored form
func ManifestFromAPI(m *api.UpdateManifest) *UpdateManifest {
	return &UpdateManifest{
		Version:      m.Version,
		BuildNumber:  m.BuildNumber,
		ReleaseDate:  m.ReleaseDate.UTC(),
		Channel:      m.Channel,
		FeatureTag:   m.FeatureTag,
		MinVersion:   m.MinVersion,
		MaxVersion:   m.MaxVersion,
		UpdateType:   m.UpdateType,
		IsHotUpdate:  m.IsHotUpdate,
		IsRequired:   m.IsRequired,
		DownloadURL:  m.DownloadURL,
		DownloadSize: m.DownloadSize,
		Checksum:     m.Checksum,
		Changelog:    m.Changelog,
		Features:     m.Features,
	}
}
