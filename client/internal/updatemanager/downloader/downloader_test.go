package downloader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nberrors "github.com/netbirdio/updater/client/errors"
	"github.com/netbirdio/updater/shared/updates/api"
)

var modTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testPayload() []byte {
	return bytes.Repeat([]byte("netbird-update-payload-"), 4096)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func newTestDownloader(t *testing.T) (*Downloader, string) {
	t.Helper()
	dir := t.TempDir()
	d, err := New(Config{
		StagingDir:      dir,
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
	require.NoError(t, err)
	return d, dir
}

func testManifest(url string, payload []byte) *api.UpdateManifest {
	return &api.UpdateManifest{
		Version:      "1.2.0",
		Channel:      "stable",
		DownloadURL:  url + "/artifacts/1.2.0/updater.tar.gz",
		DownloadSize: int64(len(payload)),
		Checksum:     "sha256:" + sha256Hex(payload),
	}
}

// requestLog records the Range header of every request
type requestLog struct {
	mu     sync.Mutex
	ranges []string
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ranges = append(l.ranges, r.Header.Get("Range"))
}

func (l *requestLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ranges...)
}

func serveContent(payload []byte, reqs *requestLog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqs.add(r)
		http.ServeContent(w, r, "updater.tar.gz", modTime, bytes.NewReader(payload))
	}
}

func TestDownload(t *testing.T) {
	payload := testPayload()
	reqs := &requestLog{}
	srv := httptest.NewServer(serveContent(payload, reqs))
	defer srv.Close()

	d, dir := newTestDownloader(t)

	var last Progress
	calls := 0
	artifact, err := d.Download(context.Background(), testManifest(srv.URL, payload), func(p Progress) {
		calls++
		assert.GreaterOrEqual(t, p.BytesDownloaded, last.BytesDownloaded, "progress must not go backwards")
		last = p
	})
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", artifact.Version)
	assert.Equal(t, filepath.Join(dir, "1.2.0", "updater.tar.gz"), artifact.Path)
	assert.Equal(t, int64(len(payload)), artifact.Size)
	assert.Equal(t, "sha256:"+sha256Hex(payload), artifact.Checksum)

	got, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.NoFileExists(t, artifact.Path+partSuffix)

	assert.Positive(t, calls)
	assert.Equal(t, int64(len(payload)), last.BytesDownloaded)
	assert.Equal(t, int64(len(payload)), last.TotalBytes)
	assert.InDelta(t, 100, last.Percent, 0.001)
	assert.Equal(t, []string{""}, reqs.get())
}

func TestDownload_ResumesPartialFile(t *testing.T) {
	payload := testPayload()
	reqs := &requestLog{}
	srv := httptest.NewServer(serveContent(payload, reqs))
	defer srv.Close()

	d, dir := newTestDownloader(t)

	resumeAt := len(payload) * 40 / 100
	staged := filepath.Join(dir, "1.2.0", "updater.tar.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(staged), 0o700))
	require.NoError(t, os.WriteFile(staged+partSuffix, payload[:resumeAt], 0o600))

	var first *Progress
	artifact, err := d.Download(context.Background(), testManifest(srv.URL, payload), func(p Progress) {
		if first == nil {
			first = &p
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"bytes=" + strconv.Itoa(resumeAt) + "-"}, reqs.get())
	require.NotNil(t, first)
	assert.Greater(t, first.BytesDownloaded, int64(resumeAt))
	assert.GreaterOrEqual(t, first.Percent, 40.0)

	got, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownload_RestartsWhenRangeIgnored(t *testing.T) {
	payload := testPayload()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	d, dir := newTestDownloader(t)

	staged := filepath.Join(dir, "1.2.0", "updater.tar.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(staged), 0o700))
	require.NoError(t, os.WriteFile(staged+partSuffix, []byte("stale bytes from another build"), 0o600))

	artifact, err := d.Download(context.Background(), testManifest(srv.URL, payload), nil)
	require.NoError(t, err)

	got, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownload_CompletePartialFileIsVerified(t *testing.T) {
	payload := testPayload()
	reqs := &requestLog{}
	srv := httptest.NewServer(serveContent(payload, reqs))
	defer srv.Close()

	d, dir := newTestDownloader(t)

	staged := filepath.Join(dir, "1.2.0", "updater.tar.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(staged), 0o700))
	require.NoError(t, os.WriteFile(staged+partSuffix, payload, 0o600))

	artifact, err := d.Download(context.Background(), testManifest(srv.URL, payload), nil)
	require.NoError(t, err)
	assert.Equal(t, staged, artifact.Path)
	assert.Equal(t, []string{"bytes=" + strconv.Itoa(len(payload)) + "-"}, reqs.get())
}

func TestDownload_TamperedArtifact(t *testing.T) {
	payload := testPayload()
	tampered := append([]byte(nil), payload...)
	tampered[len(tampered)/2] ^= 0xff

	reqs := &requestLog{}
	srv := httptest.NewServer(serveContent(tampered, reqs))
	defer srv.Close()

	d, dir := newTestDownloader(t)

	artifact, err := d.Download(context.Background(), testManifest(srv.URL, payload), nil)
	require.Error(t, err)
	assert.Nil(t, artifact)
	assert.True(t, nberrors.IsVerification(err), "got %v", err)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	entries, err := os.ReadDir(filepath.Join(dir, "1.2.0"))
	require.NoError(t, err)
	assert.Empty(t, entries, "an unverified artifact must not stay staged")
}

func TestDownload_RetriesTransientFailures(t *testing.T) {
	payload := testPayload()
	var calls atomic.Int32
	reqs := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		serveContent(payload, reqs)(w, r)
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)

	_, err := d.Download(context.Background(), testManifest(srv.URL, payload), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_TruncatedBodyIsResumed(t *testing.T) {
	payload := testPayload()
	half := len(payload) / 2
	var calls atomic.Int32
	reqs := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			_, _ = w.Write(payload[:half])
			return
		}
		serveContent(payload, reqs)(w, r)
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)

	artifact, err := d.Download(context.Background(), testManifest(srv.URL, payload), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"bytes=" + strconv.Itoa(half) + "-"}, reqs.get())

	got, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownload_PermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d, _ := newTestDownloader(t)

	_, err := d.Download(context.Background(), testManifest(srv.URL, testPayload()), nil)
	require.Error(t, err)
	assert.True(t, nberrors.IsNetwork(err), "got %v", err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDownload_Cancel(t *testing.T) {
	testCases := []struct {
		name        string
		rangeable   bool
		keepPartial bool
	}{
		{name: "range support keeps the partial file", rangeable: true, keepPartial: true},
		{name: "no range support removes the partial file", rangeable: false, keepPartial: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			payload := testPayload()
			half := len(payload) / 2
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.rangeable {
					w.Header().Set("Accept-Ranges", "bytes")
				}
				w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
				_, _ = w.Write(payload[:half])
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))
			defer srv.Close()

			d, dir := newTestDownloader(t)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			_, err := d.Download(ctx, testManifest(srv.URL, payload), func(p Progress) {
				if p.BytesDownloaded >= int64(half) {
					cancel()
				}
			})
			require.ErrorIs(t, err, context.Canceled)

			partPath := filepath.Join(dir, "1.2.0", "updater.tar.gz"+partSuffix)
			if !tc.keepPartial {
				assert.NoFileExists(t, partPath)
				return
			}
			info, err := os.Stat(partPath)
			require.NoError(t, err)
			assert.Equal(t, int64(half), info.Size())
		})
	}
}

func TestDownload_InvalidManifest(t *testing.T) {
	d, _ := newTestDownloader(t)

	testCases := []struct {
		name     string
		manifest *api.UpdateManifest
	}{
		{name: "missing url", manifest: &api.UpdateManifest{Version: "1.2.0", Checksum: sha256Hex(nil)}},
		{name: "bad checksum", manifest: &api.UpdateManifest{Version: "1.2.0", DownloadURL: "http://127.0.0.1/a", Checksum: "md5:abcd"}},
		{name: "bad version", manifest: &api.UpdateManifest{Version: "../1.2.0", DownloadURL: "http://127.0.0.1/a", Checksum: sha256Hex(nil)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Download(context.Background(), tc.manifest, nil)
			assert.True(t, nberrors.IsData(err), "got %v", err)
		})
	}
}

func TestDiscard(t *testing.T) {
	d, dir := newTestDownloader(t)

	staged := filepath.Join(dir, "1.2.0")
	require.NoError(t, os.MkdirAll(staged, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(staged, "a.part"), []byte("x"), 0o600))

	require.NoError(t, d.Discard("1.2.0"))
	assert.NoDirExists(t, staged)
	assert.NoError(t, d.Discard("1.3.0"), "discarding nothing is fine")
	assert.Error(t, d.Discard(".."))
}

func TestProgressTracker(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker := newProgressTracker(2*time.Second, func() time.Time { return now })

	p := tracker.update(0, 1000)
	assert.Zero(t, p.SpeedBytesPerSec)
	assert.Zero(t, p.ETASeconds)

	now = now.Add(time.Second)
	p = tracker.update(100, 1000)
	assert.InDelta(t, 100, p.SpeedBytesPerSec, 0.001)
	assert.Equal(t, int64(9), p.ETASeconds)
	assert.InDelta(t, 10, p.Percent, 0.001)

	// the old slow sample leaves the window
	now = now.Add(time.Second)
	tracker.update(300, 1000)
	now = now.Add(time.Second)
	p = tracker.update(500, 1000)
	assert.InDelta(t, 200, p.SpeedBytesPerSec, 0.001)
	assert.Equal(t, int64(3), p.ETASeconds)

	p = tracker.update(1000, 0)
	assert.Zero(t, p.Percent, "unknown total")
	assert.Zero(t, p.ETASeconds)
}

func TestParseContentRange(t *testing.T) {
	testCases := []struct {
		header string
		start  int64
		total  int64
		ok     bool
	}{
		{header: "bytes 400-999/1000", start: 400, total: 1000, ok: true},
		{header: "bytes 0-9/*", start: 0, total: -1, ok: true},
		{header: "bytes */1000", start: 0, total: 1000, ok: true},
		{header: "items 0-9/10", total: -1},
		{header: "", total: -1},
	}

	for _, tc := range testCases {
		t.Run(tc.header, func(t *testing.T) {
			start, total, ok := parseContentRange(tc.header)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.start, start)
			assert.Equal(t, tc.total, total)
		})
	}
}
