package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbirdio/updater/management/server/types"
	"github.com/netbirdio/updater/shared/updates/api"
	"github.com/netbirdio/updater/shared/updates/status"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, cleanUp, err := NewTestStore(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(cleanUp)
	return s
}

func manifest(channel, featureTag, version string) *types.UpdateManifest {
	return &types.UpdateManifest{
		Version:     version,
		Channel:     channel,
		FeatureTag:  featureTag,
		UpdateType:  api.UpdateTypeMinor,
		ReleaseDate: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		DownloadURL: "https://example.com/" + version,
		Checksum:    strings.Repeat("aa", 32),
		Changelog:   []string{"change " + version},
		Features:    []string{"feature"},
	}
}

func TestSqlStore_SaveAndGetManifests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveManifest(ctx, manifest("stable", "", "1.0.0")))
	require.NoError(t, s.SaveManifest(ctx, manifest("stable", "", "1.1.0")))
	require.NoError(t, s.SaveManifest(ctx, manifest("stable", "new-ui", "1.2.0")))
	require.NoError(t, s.SaveManifest(ctx, manifest("beta", "", "2.0.0")))

	got, err := s.GetManifests(ctx, "stable", "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1.0.0", got[0].Version)
	assert.Equal(t, "1.1.0", got[1].Version)
	assert.Equal(t, []string{"change 1.1.0"}, got[1].Changelog)
	assert.True(t, got[1].ReleaseDate.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	got, err = s.GetManifests(ctx, "stable", "new-ui")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1.2.0", got[0].Version)

	got, err = s.GetManifests(ctx, "nightly", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSqlStore_SaveManifestIsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveManifest(ctx, manifest("stable", "", "1.0.0")))

	dup := manifest("stable", "", "1.0.0")
	dup.Changelog = []string{"rewritten"}
	err := s.SaveManifest(ctx, dup)
	require.Error(t, err)
	assert.True(t, status.IsType(err, status.AlreadyExists), "expected AlreadyExists, got %v", err)

	got, err := s.GetManifests(ctx, "stable", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"change 1.0.0"}, got[0].Changelog, "stored manifest must not change")

	// the same version on another feature tag is a different manifest
	require.NoError(t, s.SaveManifest(ctx, manifest("stable", "new-ui", "1.0.0")))
}

func TestSqlStore_ConcurrentDuplicateSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.SaveManifest(ctx, manifest("stable", "", "3.0.0"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, status.IsType(err, status.AlreadyExists), "unexpected error %v", err)
	}
	assert.Equal(t, 1, succeeded)
}

func TestSqlStore_Reports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	reports := []*types.UpdateReport{
		{DeviceID: "device-1", UpdateID: "1.1.0", Status: api.ReportStatusDownloaded, Timestamp: base.Add(time.Minute)},
		{DeviceID: "device-1", UpdateID: "1.1.0", Status: api.ReportStatusStarted, Timestamp: base},
		{DeviceID: "device-2", UpdateID: "1.1.0", Status: api.ReportStatusFailed, Error: "disk full", Timestamp: base},
		{DeviceID: "device-1", UpdateID: "1.1.0", Status: api.ReportStatusInstalled, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, r := range reports {
		require.NoError(t, s.SaveReport(ctx, r))
	}

	got, err := s.GetReports(ctx, "device-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, api.ReportStatusStarted, got[0].Status)
	assert.Equal(t, api.ReportStatusDownloaded, got[1].Status)
	assert.Equal(t, api.ReportStatusInstalled, got[2].Status)

	got, err = s.GetReports(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewStore_UnsupportedEngine(t *testing.T) {
	_, err := NewStore(context.Background(), "cassandra", t.TempDir(), "", nil)
	assert.Error(t, err)
}

func TestNewStore_MissingDsn(t *testing.T) {
	t.Setenv(postgresDsnEnv, "")
	_, err := NewStore(context.Background(), PostgresStoreEngine, t.TempDir(), "", nil)
	assert.ErrorContains(t, err, postgresDsnEnv)
}

func TestNewStore_Sqlite(t *testing.T) {
	s, err := NewStore(context.Background(), SqliteStoreEngine, t.TempDir(), "", nil)
	require.NoError(t, err)
	defer s.Close(context.Background())
	assert.Equal(t, SqliteStoreEngine, s.GetStoreEngine())
}
