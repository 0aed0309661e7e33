package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/updater/shared/updates/api"
)

func validManifest() *UpdateManifest {
	return &UpdateManifest{
		Version:     "1.2.0",
		Channel:     "stable",
		UpdateType:  api.UpdateTypeMinor,
		DownloadURL: "https://example.com/app-1.2.0.tar.gz",
		Checksum:    "sha256:" + strings.Repeat("ab", 32),
	}
}

func TestUpdateManifest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *UpdateManifest)
		wantErr string
	}{
		{name: "valid", mutate: func(m *UpdateManifest) {}},
		{name: "bare hex checksum", mutate: func(m *UpdateManifest) { m.Checksum = strings.Repeat("0f", 32) }},
		{name: "no download without checksum", mutate: func(m *UpdateManifest) { m.DownloadURL = ""; m.Checksum = "" }},
		{name: "missing channel", mutate: func(m *UpdateManifest) { m.Channel = "" }, wantErr: "channel"},
		{name: "bad version", mutate: func(m *UpdateManifest) { m.Version = "1.2-beta" }, wantErr: "version"},
		{name: "bad min", mutate: func(m *UpdateManifest) { m.MinVersion = "x" }, wantErr: "min version"},
		{name: "min above max", mutate: func(m *UpdateManifest) { m.MinVersion = "1.1"; m.MaxVersion = "1.0.9" }, wantErr: "greater than"},
		{name: "unknown type", mutate: func(m *UpdateManifest) { m.UpdateType = "feature" }, wantErr: "update type"},
		{name: "missing checksum", mutate: func(m *UpdateManifest) { m.Checksum = "" }, wantErr: "checksum is required"},
		{name: "short checksum", mutate: func(m *UpdateManifest) { m.Checksum = "abcd" }, wantErr: "invalid checksum"},
		{name: "negative size", mutate: func(m *UpdateManifest) { m.DownloadSize = -1 }, wantErr: "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validManifest()
			tt.mutate(m)
			err := m.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUpdateManifest_APIRoundTripKeepsFields(t *testing.T) {
	m := validManifest()
	m.FeatureTag = "beta-ui"
	m.Changelog = []string{"fix crash"}
	m.IsHotUpdate = true

	back := ManifestFromAPI(m.ToAPIResponse())
	assert.Equal(t, m.FeatureTag, back.FeatureTag)
	assert.Equal(t, m.Changelog, back.Changelog)
	assert.True(t, back.IsHotUpdate)
}

func TestUpdateManifest_Copy(t *testing.T) {
	m := validManifest()
	m.Features = []string{"a"}
	c := m.Copy()
	c.Features[0] = "b"
	assert.Equal(t, "a", m.Features[0])
}
