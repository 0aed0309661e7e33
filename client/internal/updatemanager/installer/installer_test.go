package installer

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nberrors "github.com/netbirdio/updater/client/errors"
	"github.com/netbirdio/updater/client/internal/updatemanager/downloader"
	"github.com/netbirdio/updater/shared/updates/api"
)

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o755, Size: int64(len(content)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func stage(t *testing.T, name string, write func(path string)) *downloader.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	write(path)
	return &downloader.Artifact{Path: path}
}

func hotManifest(ver string) *api.UpdateManifest {
	return &api.UpdateManifest{Version: ver, Channel: "stable", UpdateType: api.UpdateTypeHotfix, IsHotUpdate: true}
}

func fullManifest(ver string) *api.UpdateManifest {
	return &api.UpdateManifest{Version: ver, Channel: "stable", UpdateType: api.UpdateTypeMajor}
}

func newTestInstaller(t *testing.T, platform PlatformInstaller) *Installer {
	t.Helper()
	i, err := New(t.TempDir(), platform)
	require.NoError(t, err)
	return i
}

func TestInstall_HotUpdates(t *testing.T) {
	i := newTestInstaller(t, nil)
	ctx := context.Background()

	tarball := stage(t, "bundle.tar.gz", func(p string) {
		writeTarGz(t, p, map[string]string{"bin/app": "v1.1.0", "README": "readme"})
	})
	result, err := i.Install(ctx, hotManifest("1.1.0"), tarball)
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, NewVersion: "1.1.0"}, result)
	assert.NoFileExists(t, tarball.Path, "the installer owns the artifact")

	content, err := os.ReadFile(filepath.Join(i.InstallDir(), "versions", "1.1.0", "bin", "app"))
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", string(content))

	zipped := stage(t, "bundle.zip", func(p string) {
		writeZip(t, p, map[string]string{"bin/app": "v1.2.0"})
	})
	_, err = i.Install(ctx, hotManifest("1.2.0"), zipped)
	require.NoError(t, err)

	raw := stage(t, "app.js", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("v1.3.0"), 0o600))
	})
	_, err = i.Install(ctx, hotManifest("1.3.0"), raw)
	require.NoError(t, err)

	content, err = os.ReadFile(filepath.Join(i.InstallDir(), "versions", "1.3.0", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "v1.3.0", string(content))

	current, err := i.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", current.Version)
	assert.Equal(t, "1.2.0", current.Previous)
	assert.Equal(t, filepath.Join(i.InstallDir(), "versions", "1.3.0"), current.Path)

	entries, err := os.ReadDir(filepath.Join(i.InstallDir(), "versions"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"1.2.0", "1.3.0"}, names, "only the active and the previous version are kept")
}

func TestInstall_AlreadyInstalledIsNoop(t *testing.T) {
	i := newTestInstaller(t, nil)
	ctx := context.Background()

	_, err := i.Install(ctx, hotManifest("1.1.0"), stage(t, "app.bin", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("v1.1.0"), 0o600))
	}))
	require.NoError(t, err)

	again := stage(t, "app.bin", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("other"), 0o600))
	})
	result, err := i.Install(ctx, hotManifest("1.1.0"), again)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.RequiresRestart)
	assert.FileExists(t, again.Path, "nothing is touched on a no-op")

	content, err := os.ReadFile(filepath.Join(i.InstallDir(), "versions", "1.1.0", "app.bin"))
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", string(content))
}

func TestInstall_HotFailureLeavesCurrentUntouched(t *testing.T) {
	testCases := []struct {
		name     string
		artifact func(t *testing.T) *downloader.Artifact
		target   error
	}{
		{
			name: "path traversal in tar",
			artifact: func(t *testing.T) *downloader.Artifact {
				return stage(t, "evil.tar.gz", func(p string) {
					writeTarGz(t, p, map[string]string{"../../escaped": "boom"})
				})
			},
			target: ErrUnsafePath,
		},
		{
			name: "path traversal in zip",
			artifact: func(t *testing.T) *downloader.Artifact {
				return stage(t, "evil.zip", func(p string) {
					writeZip(t, p, map[string]string{"../escaped": "boom"})
				})
			},
			target: ErrUnsafePath,
		},
		{
			name: "corrupt archive",
			artifact: func(t *testing.T) *downloader.Artifact {
				return stage(t, "broken.tgz", func(p string) {
					require.NoError(t, os.WriteFile(p, []byte("not a gzip stream"), 0o600))
				})
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			i := newTestInstaller(t, nil)
			ctx := context.Background()

			_, err := i.Install(ctx, hotManifest("1.1.0"), stage(t, "app.bin", func(p string) {
				require.NoError(t, os.WriteFile(p, []byte("v1.1.0"), 0o600))
			}))
			require.NoError(t, err)

			result, err := i.Install(ctx, hotManifest("1.2.0"), tc.artifact(t))
			require.Error(t, err)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
			assert.True(t, nberrors.IsInstallation(err), "got %v", err)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}

			current, err := i.CurrentVersion()
			require.NoError(t, err)
			assert.Equal(t, "1.1.0", current.Version)

			entries, err := os.ReadDir(filepath.Join(i.InstallDir(), "versions"))
			require.NoError(t, err)
			for _, e := range entries {
				assert.False(t, strings.HasPrefix(e.Name(), extractPrefix), "temporary output %s left behind", e.Name())
				assert.NotEqual(t, "1.2.0", e.Name())
			}
			assert.NoFileExists(t, filepath.Join(filepath.Dir(i.InstallDir()), "escaped"))
		})
	}
}

// recordingPlatform records hand offs
type recordingPlatform struct {
	pendingFile string
	update      *PendingUpdate
	err         error
}

func (r *recordingPlatform) Install(_ context.Context, pendingFile string, update *PendingUpdate) error {
	r.pendingFile = pendingFile
	r.update = update
	return r.err
}

func TestInstall_FullUpdateAndFinalize(t *testing.T) {
	platform := &recordingPlatform{}
	i := newTestInstaller(t, platform)
	ctx := context.Background()

	artifact := stage(t, "updater-2.0.0.pkg", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("installer"), 0o600))
	})
	result, err := i.Install(ctx, fullManifest("2.0.0"), artifact)
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, RequiresRestart: true, NewVersion: "2.0.0"}, result)

	require.NotNil(t, platform.update)
	assert.Equal(t, filepath.Join(i.InstallDir(), "pending", "pending.json"), platform.pendingFile)
	assert.Equal(t, "2.0.0", platform.update.Manifest.Version)
	assert.FileExists(t, platform.update.ArtifactPath)
	assert.NoFileExists(t, artifact.Path)

	pending, err := i.Pending()
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, platform.update.ArtifactPath, pending.ArtifactPath)

	// not finished yet
	finalized, err := i.Finalize(ctx)
	require.NoError(t, err)
	assert.Nil(t, finalized)

	current, err := i.CurrentVersion()
	require.NoError(t, err)
	assert.Nil(t, current, "current.json is only written once the installer succeeded")

	require.NoError(t, NewResultHandler(filepath.Dir(platform.pendingFile)).Write(ctx, Outcome{Success: true}))

	finalized, err = i.Finalize(ctx)
	require.NoError(t, err)
	require.NotNil(t, finalized)
	assert.True(t, finalized.Success)
	assert.Equal(t, "2.0.0", finalized.NewVersion)

	current, err = i.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", current.Version)

	assert.NoDirExists(t, filepath.Join(i.InstallDir(), "pending"))
}

func TestFinalize_FailedOutcome(t *testing.T) {
	i := newTestInstaller(t, &recordingPlatform{})
	ctx := context.Background()

	_, err := i.Install(ctx, fullManifest("2.0.0"), stage(t, "setup.exe", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("installer"), 0o600))
	}))
	require.NoError(t, err)

	require.NoError(t, NewResultHandler(filepath.Join(i.InstallDir(), "pending")).WriteErr(ctx, errors.New("disk full")))

	finalized, err := i.Finalize(ctx)
	require.Error(t, err)
	assert.True(t, nberrors.IsInstallation(err), "got %v", err)
	assert.Contains(t, err.Error(), "disk full")
	require.NotNil(t, finalized)
	assert.False(t, finalized.Success)

	pending, err := i.Pending()
	require.NoError(t, err)
	assert.Nil(t, pending, "pending is cleared on failure")

	current, err := i.CurrentVersion()
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestFinalize_NothingPending(t *testing.T) {
	i := newTestInstaller(t, nil)

	finalized, err := i.Finalize(context.Background())
	require.NoError(t, err)
	assert.Nil(t, finalized)
}

func TestInstall_HandoffFailure(t *testing.T) {
	platform := &recordingPlatform{err: errors.New("exec format error")}
	i := newTestInstaller(t, platform)

	result, err := i.Install(context.Background(), fullManifest("2.0.0"), stage(t, "setup.msi", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("installer"), 0o600))
	}))
	require.Error(t, err)
	assert.True(t, nberrors.IsInstallation(err), "got %v", err)
	assert.False(t, result.Success)
	assert.NoDirExists(t, filepath.Join(i.InstallDir(), "pending"))
}

func TestInstall_FullUpdateStagedTwiceIsNoop(t *testing.T) {
	i := newTestInstaller(t, nil)
	ctx := context.Background()

	result, err := i.Install(ctx, fullManifest("2.0.0"), stage(t, "app.pkg", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("installer"), 0o600))
	}))
	require.NoError(t, err)
	assert.True(t, result.RequiresRestart)

	again := stage(t, "app.pkg", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("installer"), 0o600))
	})
	result, err = i.Install(ctx, fullManifest("2.0.0"), again)
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, NewVersion: "2.0.0"}, result)
	assert.FileExists(t, again.Path, "nothing is touched on a no-op")

	pending, err := i.Pending()
	require.NoError(t, err)
	require.NotNil(t, pending, "the first handoff is kept")
	content, err := os.ReadFile(pending.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "installer", string(content))
}

func TestInstall_FullUpdateStagingFailureKeepsPending(t *testing.T) {
	i := newTestInstaller(t, nil)
	ctx := context.Background()

	_, err := i.Install(ctx, fullManifest("2.0.0"), stage(t, "app-2.0.0.pkg", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("v2.0.0"), 0o600))
	}))
	require.NoError(t, err)

	missing := &downloader.Artifact{Path: filepath.Join(t.TempDir(), "gone.pkg")}
	result, err := i.Install(ctx, fullManifest("2.1.0"), missing)
	require.Error(t, err)
	assert.True(t, nberrors.IsInstallation(err), "got %v", err)
	assert.False(t, result.Success)

	pending, err := i.Pending()
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "2.0.0", pending.Manifest.Version)
	assert.FileExists(t, pending.ArtifactPath)

	entries, err := os.ReadDir(filepath.Join(i.InstallDir(), "pending"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"2.0.0", "pending.json"}, names, "no staging leftovers")

	// a newer update replaces the pending one once staged
	_, err = i.Install(ctx, fullManifest("2.1.0"), stage(t, "app-2.1.0.pkg", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("v2.1.0"), 0o600))
	}))
	require.NoError(t, err)

	pending, err = i.Pending()
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, "2.1.0", pending.Manifest.Version)
	assert.NoDirExists(t, filepath.Join(i.InstallDir(), "pending", "2.0.0"))
}

func TestWaitForResult(t *testing.T) {
	i := newTestInstaller(t, &recordingPlatform{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := i.Install(ctx, fullManifest("2.0.0"), stage(t, "setup.pkg", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("installer"), 0o600))
	}))
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = NewResultHandler(filepath.Join(i.InstallDir(), "pending")).Write(context.Background(), Outcome{Success: true})
	}()

	finalized, err := i.WaitForResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, finalized)
	assert.True(t, finalized.Success)

	current, err := i.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", current.Version)
}

func TestCommandInstaller(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}

	script := `printf '{"success":true}' > "$3/result.json.tmp" && mv "$3/result.json.tmp" "$3/result.json"`
	i := newTestInstaller(t, NewCommandInstaller("/bin/sh", "-c", script))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := i.Install(ctx, fullManifest("2.0.0"), stage(t, "setup.pkg", func(p string) {
		require.NoError(t, os.WriteFile(p, []byte("installer"), 0o600))
	}))
	require.NoError(t, err)
	assert.True(t, result.RequiresRestart)

	finalized, err := i.WaitForResult(ctx)
	require.NoError(t, err)
	require.NotNil(t, finalized)
	assert.True(t, finalized.Success)
}

func TestSafeJoin(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out")

	testCases := []struct {
		name string
		ok   bool
	}{
		{name: "bin/app", ok: true},
		{name: "./README", ok: true},
		{name: "a/../b", ok: true},
		{name: "../escape"},
		{name: "a/../../escape"},
		{name: "/etc/passwd"},
		{name: `..\escape`},
		{name: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := safeJoin(dst, tc.name)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrUnsafePath)
		})
	}
}
