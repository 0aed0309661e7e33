package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	nberrors "github.com/netbirdio/updater/client/errors"
	"github.com/netbirdio/updater/shared/updates/api"
	"github.com/netbirdio/updater/version"
)

const (
	partSuffix      = ".part"
	defaultFileName = "artifact"
	chunkSize       = 32 * 1024

	DefaultMaxRetries      = 5
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = 30 * time.Second
	DefaultSpeedWindow     = 5 * time.Second
)

// ErrRangeMismatch is returned when a partial response does not continue at the requested offset
var ErrRangeMismatch = errors.New("partial response does not match the requested range")

// Progress is reported on every received chunk
type Progress struct {
	BytesDownloaded  int64
	TotalBytes       int64
	Percent          float64
	SpeedBytesPerSec float64
	ETASeconds       int64
}

// Artifact is a downloaded and verified release artifact. Ownership of Path moves to the caller.
type Artifact struct {
	Version  string
	Path     string
	Size     int64
	Checksum string
}

// Config of a Downloader. Zero values fall back to defaults.
type Config struct {
	StagingDir      string
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	SpeedWindow     time.Duration
	HTTPClient      *http.Client
}

// Downloader streams artifacts into a staging directory, resuming partial files
type Downloader struct {
	stagingDir      string
	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
	speedWindow     time.Duration
	httpClient      *http.Client
	now             func() time.Time
}

func New(cfg Config) (*Downloader, error) {
	if cfg.StagingDir == "" {
		return nil, errors.New("staging directory is required")
	}
	if err := os.MkdirAll(cfg.StagingDir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	d := &Downloader{
		stagingDir:      cfg.StagingDir,
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
		speedWindow:     cfg.SpeedWindow,
		httpClient:      cfg.HTTPClient,
		now:             time.Now,
	}
	if d.maxRetries == 0 {
		d.maxRetries = DefaultMaxRetries
	}
	if d.initialInterval == 0 {
		d.initialInterval = DefaultInitialInterval
	}
	if d.maxInterval == 0 {
		d.maxInterval = DefaultMaxInterval
	}
	if d.speedWindow == 0 {
		d.speedWindow = DefaultSpeedWindow
	}
	if d.httpClient == nil {
		d.httpClient = &http.Client{}
	}
	return d, nil
}

// session is the state of one download across retries
type session struct {
	url        string
	partPath   string
	total      int64
	rangeable  bool
	progress   *progressTracker
	onProgress func(Progress)
}

// Download fetches the artifact of manifest, verifies its checksum and returns it.
//
// An existing partial file from an earlier attempt is continued. Transient failures are retried with
// exponential backoff, each retry resuming where the previous one stopped. A checksum mismatch removes
// the staged file. On cancellation the partial file is kept only when the server supports ranges.
func (d *Downloader) Download(ctx context.Context, manifest *api.UpdateManifest, onProgress func(Progress)) (*Artifact, error) {
	if manifest.DownloadURL == "" {
		return nil, nberrors.DataError("download", fmt.Errorf("manifest %s has no download url", manifest.Version))
	}
	checksum, err := api.ParseChecksum(manifest.Checksum)
	if err != nil {
		return nil, nberrors.DataError("download", fmt.Errorf("manifest %s: %w", manifest.Version, err))
	}
	dir, err := d.versionDir(manifest.Version)
	if err != nil {
		return nil, nberrors.DataError("download", err)
	}
	fileName, err := artifactFileName(manifest.DownloadURL)
	if err != nil {
		return nil, nberrors.DataError("download", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nberrors.InstallationError("stage", err)
	}

	finalPath := filepath.Join(dir, fileName)
	if artifact, ok := d.reuseStaged(manifest.Version, finalPath, checksum); ok {
		return artifact, nil
	}

	s := &session{
		url:        manifest.DownloadURL,
		partPath:   finalPath + partSuffix,
		total:      manifest.DownloadSize,
		progress:   newProgressTracker(d.speedWindow, d.now),
		onProgress: onProgress,
	}

	log.Infof("downloading %s from %s", manifest.Version, manifest.DownloadURL)

	notify := func(err error, next time.Duration) {
		log.Warnf("download of %s failed, retrying in %s: %v", manifest.Version, next, err)
	}
	if err := backoff.RetryNotify(func() error { return d.fetch(ctx, s) }, d.newBackOff(ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			d.abandon(s)
			return nil, fmt.Errorf("download %s canceled: %w", manifest.Version, ctxErr)
		}
		return nil, err
	}

	size, err := verify(s.partPath, checksum)
	if err != nil {
		if rmErr := os.Remove(s.partPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warnf("failed to remove unverified download %s: %v", s.partPath, rmErr)
		}
		return nil, nberrors.VerificationError("verify", fmt.Errorf("artifact %s: %w", manifest.Version, err))
	}

	if err := os.Rename(s.partPath, finalPath); err != nil {
		return nil, nberrors.InstallationError("stage", err)
	}

	log.Infof("downloaded and verified %s (%d bytes) to %s", manifest.Version, size, finalPath)

	return &Artifact{
		Version:  manifest.Version,
		Path:     finalPath,
		Size:     size,
		Checksum: checksum.String(),
	}, nil
}

// Discard removes everything staged for version
func (d *Downloader) Discard(version string) error {
	dir, err := d.versionDir(version)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("discard staged %s: %w", version, err)
	}
	return nil
}

func (d *Downloader) newBackOff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(backoff.WithMaxRetries(&backoff.ExponentialBackOff{
		InitialInterval:     d.initialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         d.maxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}, d.maxRetries), ctx)
}

// reuseStaged returns an artifact left verified by an earlier run that was not installed yet
func (d *Downloader) reuseStaged(ver, finalPath string, checksum *api.Checksum) (*Artifact, bool) {
	if _, err := os.Stat(finalPath); err != nil {
		return nil, false
	}
	size, err := verify(finalPath, checksum)
	if err != nil {
		log.Warnf("discarding staged artifact %s: %v", finalPath, err)
		_ = os.Remove(finalPath)
		return nil, false
	}
	log.Infof("reusing staged artifact %s", finalPath)
	return &Artifact{Version: ver, Path: finalPath, Size: size, Checksum: checksum.String()}, true
}

func (d *Downloader) abandon(s *session) {
	if s.rangeable {
		log.Infof("download canceled, keeping %s for resume", s.partPath)
		return
	}
	if err := os.Remove(s.partPath); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to remove partial download %s: %v", s.partPath, err)
	}
}

// fetch performs one attempt. Errors wrapped in backoff.Permanent end the retries.
func (d *Downloader) fetch(ctx context.Context, s *session) error {
	if err := ctx.Err(); err != nil {
		return backoff.Permanent(err)
	}

	offset, err := partSize(s.partPath)
	if err != nil {
		return backoff.Permanent(nberrors.InstallationError("stage", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return backoff.Permanent(nberrors.DataError("download", err))
	}
	req.Header.Set("User-Agent", "updater/"+version.UpdaterVersion())
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return nberrors.NetworkError("download", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Debugf("error closing response body: %v", cerr)
		}
	}()

	if resp.Header.Get("Accept-Ranges") == "bytes" {
		s.rangeable = true
	}

	var flags int
	switch {
	case resp.StatusCode == http.StatusPartialContent:
		start, total, ok := parseContentRange(resp.Header.Get("Content-Range"))
		if !ok || start != offset {
			if err := os.Remove(s.partPath); err != nil && !os.IsNotExist(err) {
				return backoff.Permanent(nberrors.InstallationError("stage", err))
			}
			return nberrors.NetworkError("download", ErrRangeMismatch)
		}
		s.rangeable = true
		switch {
		case s.total > 0:
		case total > 0:
			s.total = total
		case resp.ContentLength > 0:
			s.total = offset + resp.ContentLength
		}
		flags = os.O_WRONLY | os.O_APPEND
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			log.Infof("server ignored the range request, restarting download of %s", s.url)
		}
		offset = 0
		if s.total <= 0 && resp.ContentLength > 0 {
			s.total = resp.ContentLength
		}
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		_, total, _ := parseContentRange(resp.Header.Get("Content-Range"))
		if total > 0 && total != offset {
			if err := os.Remove(s.partPath); err != nil && !os.IsNotExist(err) {
				return backoff.Permanent(nberrors.InstallationError("stage", err))
			}
			return nberrors.NetworkError("download", fmt.Errorf("partial file of %d bytes exceeds the artifact of %d bytes", offset, total))
		}
		// the partial file is already complete, let verification decide
		s.rangeable = true
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nberrors.NetworkError("download", fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode))
	default:
		return backoff.Permanent(nberrors.NetworkError("download", fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)))
	}

	out, err := os.OpenFile(s.partPath, flags|os.O_CREATE, 0o600)
	if err != nil {
		return backoff.Permanent(nberrors.InstallationError("stage", err))
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			log.Warnf("error closing file %q: %v", s.partPath, cerr)
		}
	}()

	written, err := s.copy(out, resp.Body, offset)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return nberrors.NetworkError("download", fmt.Errorf("received %d of %d bytes: %w", written, resp.ContentLength, io.ErrUnexpectedEOF))
	}
	return nil
}

// copy streams body into out and reports progress, offset being the bytes already on disk
func (s *session) copy(out io.Writer, body io.Reader, offset int64) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return written, backoff.Permanent(nberrors.InstallationError("stage", err))
			}
			written += int64(n)
			s.report(offset + written)
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, nberrors.NetworkError("download", readErr)
		}
	}
}

func (s *session) report(downloaded int64) {
	if s.onProgress == nil {
		return
	}
	s.onProgress(s.progress.update(downloaded, s.total))
}

func (d *Downloader) versionDir(ver string) (string, error) {
	if ver == "" || ver == "." || ver == ".." || strings.ContainsAny(ver, `/\`) {
		return "", fmt.Errorf("invalid version %q", ver)
	}
	return filepath.Join(d.stagingDir, ver), nil
}

// artifactFileName derives the staged file name from the last path segment of the download url
func artifactFileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || name == ".." {
		return defaultFileName, nil
	}
	return name, nil
}

func partSize(partPath string) (int64, error) {
	info, err := os.Stat(partPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// parseContentRange parses "bytes start-end/total" and "bytes */total". An unknown total is -1.
func parseContentRange(header string) (start, total int64, ok bool) {
	value, found := strings.CutPrefix(header, "bytes ")
	if !found {
		return 0, -1, false
	}
	rng, size, found := strings.Cut(value, "/")
	if !found {
		return 0, -1, false
	}

	total = -1
	if size != "*" {
		if v, err := strconv.ParseInt(size, 10, 64); err == nil {
			total = v
		}
	}
	if rng == "*" {
		return 0, total, true
	}

	first, _, found := strings.Cut(rng, "-")
	if !found {
		return 0, total, false
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, total, false
	}
	return start, total, true
}
