package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	nberrors "github.com/netbirdio/updater/client/errors"
	"github.com/netbirdio/updater/client/internal/updatemanager/downloader"
	"github.com/netbirdio/updater/shared/updates/api"
	"github.com/netbirdio/updater/util"
	"github.com/netbirdio/updater/version"
)

const (
	versionsDirName = "versions"
	pendingDirName  = "pending"
	currentFile     = "current.json"
	pendingFile     = "pending.json"
	extractPrefix   = ".extract-"
	stagePrefix     = ".stage-"
)

// Result of an installation
type Result struct {
	Success         bool
	RequiresRestart bool
	NewVersion      string
	Error           string
}

// Current is the content of current.json
type Current struct {
	Version     string    `json:"version"`
	Path        string    `json:"path,omitempty"`
	Previous    string    `json:"previous,omitempty"`
	InstalledAt time.Time `json:"installedAt"`
}

// PendingUpdate is the content of pending.json, a full update handed off to the platform installer
type PendingUpdate struct {
	Manifest     api.UpdateManifest `json:"manifest"`
	ArtifactPath string             `json:"artifactPath"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// PlatformInstaller replaces the application binaries for full updates
type PlatformInstaller interface {
	Install(ctx context.Context, pendingFile string, update *PendingUpdate) error
}

// Installer applies verified artifacts below an install directory
//
//	<installDir>/current.json            active version
//	<installDir>/versions/<version>/     hot update content
//	<installDir>/pending/pending.json    full update awaiting the platform installer
//	<installDir>/pending/result.json     outcome written by the platform installer
type Installer struct {
	installDir string
	platform   PlatformInstaller
	now        func() time.Time
}

// New creates an Installer. A nil platform installer leaves full updates pending until an external
// mechanism writes the result.
func New(installDir string, platform PlatformInstaller) (*Installer, error) {
	if installDir == "" {
		return nil, errors.New("install directory is required")
	}
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return nil, fmt.Errorf("create install directory: %w", err)
	}
	return &Installer{
		installDir: installDir,
		platform:   platform,
		now:        time.Now,
	}, nil
}

func (i *Installer) InstallDir() string {
	return i.installDir
}

func (i *Installer) versionsDir() string {
	return filepath.Join(i.installDir, versionsDirName)
}

func (i *Installer) pendingDir() string {
	return filepath.Join(i.installDir, pendingDirName)
}

// Install applies artifact. Hot updates are activated immediately, full updates are handed off and
// require a restart. Installing the already active version is a no-op.
func (i *Installer) Install(ctx context.Context, manifest *api.UpdateManifest, artifact *downloader.Artifact) (Result, error) {
	if _, err := version.Parse(manifest.Version); err != nil {
		return failed(nberrors.DataError("install", err))
	}

	current, err := i.CurrentVersion()
	if err != nil {
		log.Warnf("ignoring unreadable %s: %v", currentFile, err)
	}
	if current != nil && current.Version == manifest.Version {
		log.Infof("version %s is already installed", manifest.Version)
		return Result{Success: true, NewVersion: manifest.Version}, nil
	}

	pending, err := i.Pending()
	if err != nil {
		log.Warnf("ignoring unreadable %s: %v", pendingFile, err)
	}
	if pending != nil && pending.Manifest.Version == manifest.Version && fileExists(pending.ArtifactPath) {
		log.Infof("version %s is already staged for the platform installer", manifest.Version)
		return Result{Success: true, NewVersion: manifest.Version}, nil
	}

	if artifact == nil || artifact.Path == "" {
		return failed(nberrors.InstallationError("install", errors.New("no artifact")))
	}

	if manifest.IsHotUpdate {
		return i.installHot(ctx, manifest, artifact, current)
	}
	return i.installFull(ctx, manifest, artifact)
}

func failed(err error) (Result, error) {
	return Result{Error: err.Error()}, err
}

func (i *Installer) installHot(ctx context.Context, manifest *api.UpdateManifest, artifact *downloader.Artifact, current *Current) (Result, error) {
	if err := os.MkdirAll(i.versionsDir(), 0o755); err != nil {
		return failed(nberrors.InstallationError("install", err))
	}

	tmpDir, err := os.MkdirTemp(i.versionsDir(), extractPrefix)
	if err != nil {
		return failed(nberrors.InstallationError("install", err))
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := os.RemoveAll(tmpDir); err != nil {
			log.Warnf("failed to remove %s: %v", tmpDir, err)
		}
	}()

	if err := extract(ctx, artifact.Path, tmpDir); err != nil {
		return failed(nberrors.InstallationError("extract", err))
	}

	target := filepath.Join(i.versionsDir(), manifest.Version)
	if err := os.RemoveAll(target); err != nil {
		return failed(nberrors.InstallationError("install", err))
	}
	if err := os.Rename(tmpDir, target); err != nil {
		return failed(nberrors.InstallationError("install", err))
	}
	committed = true

	next := &Current{
		Version:     manifest.Version,
		Path:        target,
		InstalledAt: i.now().UTC(),
	}
	if current != nil {
		next.Previous = current.Version
	}
	if err := i.writeCurrent(ctx, next); err != nil {
		if rmErr := os.RemoveAll(target); rmErr != nil {
			log.Warnf("failed to remove %s: %v", target, rmErr)
		}
		return failed(nberrors.InstallationError("activate", err))
	}

	log.Infof("hot update %s activated in %s", manifest.Version, target)

	if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to remove installed artifact %s: %v", artifact.Path, err)
	}
	if err := i.prune(next.Version, next.Previous); err != nil {
		log.Warnf("failed to prune old versions: %v", err)
	}

	return Result{Success: true, NewVersion: manifest.Version}, nil
}

func (i *Installer) installFull(ctx context.Context, manifest *api.UpdateManifest, artifact *downloader.Artifact) (Result, error) {
	if err := os.MkdirAll(i.pendingDir(), 0o755); err != nil {
		return failed(nberrors.InstallationError("stage", err))
	}

	// the previous pending update is replaced only once the new one is fully staged
	tmpDir, err := os.MkdirTemp(i.pendingDir(), stagePrefix)
	if err != nil {
		return failed(nberrors.InstallationError("stage", err))
	}

	name := filepath.Base(artifact.Path)
	tmpArtifact := filepath.Join(tmpDir, name)
	committed := false
	defer func() {
		if committed {
			return
		}
		if fileExists(tmpArtifact) {
			if err := util.MoveFile(tmpArtifact, artifact.Path); err != nil {
				log.Warnf("failed to restore artifact %s: %v", artifact.Path, err)
			}
		}
		if err := os.RemoveAll(tmpDir); err != nil {
			log.Warnf("failed to remove %s: %v", tmpDir, err)
		}
	}()

	if err := util.MoveFile(artifact.Path, tmpArtifact); err != nil {
		return failed(nberrors.InstallationError("stage", err))
	}

	dir := filepath.Join(i.pendingDir(), manifest.Version)
	pending := &PendingUpdate{
		Manifest:     *manifest,
		ArtifactPath: filepath.Join(dir, name),
		CreatedAt:    i.now().UTC(),
	}
	if err := util.WriteJson(ctx, filepath.Join(tmpDir, pendingFile), pending); err != nil {
		return failed(nberrors.InstallationError("stage", err))
	}

	if err := i.removePendingExcept(filepath.Base(tmpDir)); err != nil {
		return failed(nberrors.InstallationError("stage", err))
	}
	if err := os.Rename(tmpDir, dir); err != nil {
		return failed(nberrors.InstallationError("stage", err))
	}
	committed = true

	pendingPath := filepath.Join(i.pendingDir(), pendingFile)
	if err := os.Rename(filepath.Join(dir, pendingFile), pendingPath); err != nil {
		i.discardPending()
		return failed(nberrors.InstallationError("stage", err))
	}

	if i.platform == nil {
		log.Infof("full update %s staged in %s, waiting for the platform installer", manifest.Version, dir)
		return Result{Success: true, RequiresRestart: true, NewVersion: manifest.Version}, nil
	}

	if err := i.platform.Install(ctx, pendingPath, pending); err != nil {
		i.discardPending()
		return failed(nberrors.InstallationError("handoff", err))
	}

	log.Infof("full update %s handed off to the platform installer", manifest.Version)

	return Result{Success: true, RequiresRestart: true, NewVersion: manifest.Version}, nil
}

// CurrentVersion returns the content of current.json, nil when nothing was installed yet
func (i *Installer) CurrentVersion() (*Current, error) {
	current := &Current{}
	if _, err := util.ReadJson(filepath.Join(i.installDir, currentFile), current); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil //nolint:nilnil
		}
		return nil, nberrors.DataError("read current", err)
	}
	return current, nil
}

func (i *Installer) writeCurrent(ctx context.Context, current *Current) error {
	return util.WriteJson(ctx, filepath.Join(i.installDir, currentFile), current)
}

// Pending returns the full update waiting for the platform installer, nil when there is none
func (i *Installer) Pending() (*PendingUpdate, error) {
	pending := &PendingUpdate{}
	if _, err := util.ReadJson(filepath.Join(i.pendingDir(), pendingFile), pending); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil //nolint:nilnil
		}
		return nil, nberrors.DataError("read pending", err)
	}
	return pending, nil
}

// Finalize completes a full update after the platform installer ran. It returns nil when nothing is
// pending or the installer has not written its result yet.
func (i *Installer) Finalize(ctx context.Context) (*Result, error) {
	pending, err := i.Pending()
	if err != nil {
		i.discardPending()
		return nil, err
	}
	if pending == nil {
		return nil, nil //nolint:nilnil
	}

	outcome, err := NewResultHandler(i.pendingDir()).Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Infof("full update %s is still pending", pending.Manifest.Version)
			return nil, nil //nolint:nilnil
		}
		i.discardPending()
		return nil, nberrors.InstallationError("finalize", err)
	}

	return i.commit(ctx, pending, outcome)
}

// WaitForResult blocks until the platform installer writes its result and then finalizes the update
func (i *Installer) WaitForResult(ctx context.Context) (*Result, error) {
	pending, err := i.Pending()
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, nil //nolint:nilnil
	}

	outcome, err := NewResultHandler(i.pendingDir()).Watch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		i.discardPending()
		return nil, nberrors.InstallationError("finalize", err)
	}

	return i.commit(ctx, pending, outcome)
}

func (i *Installer) commit(ctx context.Context, pending *PendingUpdate, outcome Outcome) (*Result, error) {
	defer i.discardPending()

	ver := pending.Manifest.Version
	if !outcome.Success {
		msg := outcome.Error
		if msg == "" {
			msg = "platform installer failed"
		}
		log.Errorf("full update %s failed: %s", ver, msg)
		err := nberrors.InstallationError("finalize", errors.New(msg))
		return &Result{NewVersion: ver, Error: err.Error()}, err
	}

	next := &Current{Version: ver, InstalledAt: outcome.ExecutedAt.UTC()}
	if next.InstalledAt.IsZero() {
		next.InstalledAt = i.now().UTC()
	}
	if current, err := i.CurrentVersion(); err == nil && current != nil {
		next.Previous = current.Version
	}

	if err := i.writeCurrent(ctx, next); err != nil {
		err = nberrors.InstallationError("finalize", err)
		return &Result{NewVersion: ver, Error: err.Error()}, err
	}

	log.Infof("full update %s finalized", ver)

	return &Result{Success: true, NewVersion: ver}, nil
}

func (i *Installer) clearPending() error {
	if err := os.RemoveAll(i.pendingDir()); err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	return nil
}

// removePendingExcept removes every pending entry but keep, including a result of an earlier handoff
func (i *Installer) removePendingExcept(keep string) error {
	entries, err := os.ReadDir(i.pendingDir())
	if err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}

	var merr *multierror.Error
	for _, entry := range entries {
		if entry.Name() == keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(i.pendingDir(), entry.Name())); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("remove %s: %w", entry.Name(), err))
		}
	}
	return nberrors.FormatErrorOrNil(merr)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (i *Installer) discardPending() {
	if err := i.clearPending(); err != nil {
		log.Warnf("%v", err)
	}
}

// prune removes version directories other than keep, including leftovers of interrupted extractions
func (i *Installer) prune(keep ...string) error {
	entries, err := os.ReadDir(i.versionsDir())
	if err != nil {
		return err
	}

	var merr *multierror.Error
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || contains(keep, name) {
			continue
		}
		if !strings.HasPrefix(name, extractPrefix) {
			log.Debugf("pruning old version %s", name)
		}
		if err := os.RemoveAll(filepath.Join(i.versionsDir(), name)); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("remove %s: %w", name, err))
		}
	}

	return nberrors.FormatErrorOrNil(merr)
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value != "" && value == v {
			return true
		}
	}
	return false
}
