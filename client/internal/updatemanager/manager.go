package updatemanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	nberrors "github.com/netbirdio/updater/client/errors"
	"github.com/netbirdio/updater/client/internal/statemanager"
	"github.com/netbirdio/updater/client/internal/updatemanager/downloader"
	"github.com/netbirdio/updater/client/internal/updatemanager/installer"
	"github.com/netbirdio/updater/shared/updates/api"
	"github.com/netbirdio/updater/version"
)

const (
	DefaultCheckInterval         = 6 * time.Hour
	DefaultCompleteDisplayWindow = 5 * time.Second
	DefaultReportTimeout         = 10 * time.Second
	DefaultChannel               = "stable"
)

var (
	// ErrCancelNotAllowed is returned when canceling during installation
	ErrCancelNotAllowed = errors.New("an installation in progress cannot be canceled")
	// ErrNothingAvailable is returned when starting or dismissing without an available update
	ErrNothingAvailable = errors.New("no update available")
	// ErrRequiredUpdate is returned when dismissing a required update
	ErrRequiredUpdate = errors.New("a required update cannot be dismissed")
	// ErrCanceled is returned by StartUpdate when the download was canceled
	ErrCanceled = errors.New("update canceled")
	// ErrBusy is returned by Reset while a check or an update runs
	ErrBusy = errors.New("an update step is in progress")
)

// Downloader fetches and verifies artifacts
type Downloader interface {
	Download(ctx context.Context, manifest *api.UpdateManifest, onProgress func(downloader.Progress)) (*downloader.Artifact, error)
	Discard(version string) error
}

// Installer applies verified artifacts
type Installer interface {
	Install(ctx context.Context, manifest *api.UpdateManifest, artifact *downloader.Artifact) (installer.Result, error)
	Finalize(ctx context.Context) (*installer.Result, error)
	WaitForResult(ctx context.Context) (*installer.Result, error)
}

// Dependencies of a Manager. Reporter is optional.
type Dependencies struct {
	Checker    Checker
	Reporter   Reporter
	Downloader Downloader
	Installer  Installer
	State      *statemanager.Manager
}

// Config of a Manager. Channel, FeatureTag and AutoUpdate seed the persisted state on first run.
type Config struct {
	CurrentVersion        string
	Platform              string
	Channel               string
	FeatureTag            string
	AutoUpdate            bool
	CheckInterval         time.Duration
	CompleteDisplayWindow time.Duration
	ReportTimeout         time.Duration
}

// Manager drives the check, download and install lifecycle. One lifecycle step runs at a time.
type Manager struct {
	deps  Dependencies
	cfg   Config
	guard *semaphore.Weighted
	now   func() time.Time

	mu              sync.Mutex
	snapshot        Snapshot
	state           UpdateState
	available       *api.UpdateManifest
	downloadCancel  context.CancelFunc
	cancelRequested bool
	completeTimer   *time.Timer
	foreground      bool
	subscriptions   map[string]*Subscription

	wake    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	reports sync.WaitGroup
}

func NewManager(deps Dependencies, cfg Config) (*Manager, error) {
	if deps.Checker == nil || deps.Downloader == nil || deps.Installer == nil || deps.State == nil {
		return nil, errors.New("checker, downloader, installer and state are required")
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.CompleteDisplayWindow <= 0 {
		cfg.CompleteDisplayWindow = DefaultCompleteDisplayWindow
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = DefaultReportTimeout
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}

	m := &Manager{
		deps:          deps,
		cfg:           cfg,
		guard:         semaphore.NewWeighted(1),
		now:           time.Now,
		snapshot:      Snapshot{Phase: PhaseIdle},
		foreground:    true,
		subscriptions: make(map[string]*Subscription),
		wake:          make(chan struct{}, 1),
	}
	m.deps.State.RegisterState(&UpdateState{})
	return m, nil
}

// Load reads the persisted state and seeds missing values. Start calls it.
func (m *Manager) Load(ctx context.Context) error {
	if err := m.deps.State.LoadState(&UpdateState{}); err != nil {
		log.Warnf("failed to load update state, starting fresh: %v", err)
	}

	m.mu.Lock()
	if loaded, ok := m.deps.State.GetState(&UpdateState{}).(*UpdateState); ok && loaded != nil {
		m.state = *loaded
	} else {
		m.state = UpdateState{
			Channel:           m.cfg.Channel,
			FeatureTag:        m.cfg.FeatureTag,
			AutoUpdateEnabled: m.cfg.AutoUpdate,
		}
	}
	if m.state.DeviceID == "" {
		m.state.DeviceID = uuid.NewString()
	}
	if m.state.Channel == "" {
		m.state.Channel = m.cfg.Channel
	}
	if newer(m.cfg.CurrentVersion, m.state.CurrentVersion) {
		m.state.CurrentVersion = m.cfg.CurrentVersion
	}
	m.mu.Unlock()

	return m.persist(ctx)
}

// newer reports whether candidate is a valid version above current or current is unusable
func newer(candidate, current string) bool {
	if candidate == "" {
		return false
	}
	if current == "" {
		return true
	}
	cmp, err := version.Compare(candidate, current)
	if err != nil {
		_, currentErr := version.Parse(current)
		return currentErr != nil
	}
	return cmp > 0
}

// Start loads the state, completes a pending full update, runs an initial check and schedules the
// periodic ones
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return errors.New("update manager already started")
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	if err := m.Load(ctx); err != nil {
		log.Warnf("failed to persist update state: %v", err)
	}

	if _, err := m.Finalize(ctx); err != nil {
		log.Errorf("failed to finalize pending update: %v", err)
	}

	m.deps.State.Start()

	m.wg.Add(1)
	go m.schedule(ctx)

	return nil
}

// Stop ends scheduling, closes subscriptions and flushes the state
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	if m.downloadCancel != nil {
		m.cancelRequested = true
		m.downloadCancel()
	}
	if m.completeTimer != nil {
		m.completeTimer.Stop()
	}
	subscriptions := m.subscriptions
	m.subscriptions = make(map[string]*Subscription)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.reports.Wait()

	for _, s := range subscriptions {
		s.close()
	}

	return m.deps.State.Stop(ctx)
}

// Finalize commits a full update completed by the external installer since the last run. It returns
// nil without error when nothing was pending or the installer has not finished yet.
func (m *Manager) Finalize(ctx context.Context) (*installer.Result, error) {
	return m.finalize(ctx, m.deps.Installer.Finalize)
}

// WaitForInstaller blocks until the platform installer reports the outcome of a pending full update
// and then finalizes it
func (m *Manager) WaitForInstaller(ctx context.Context) (*installer.Result, error) {
	return m.finalize(ctx, m.deps.Installer.WaitForResult)
}

func (m *Manager) finalize(ctx context.Context, run func(context.Context) (*installer.Result, error)) (*installer.Result, error) {
	result, err := run(ctx)
	if err != nil {
		ver := ""
		if result != nil {
			ver = result.NewVersion
		}
		m.report(api.ReportStatusFailed, ver, err)
		m.mu.Lock()
		// the running binary was not replaced
		if m.cfg.CurrentVersion != "" {
			m.state.CurrentVersion = m.cfg.CurrentVersion
		}
		m.transition(Snapshot{Phase: PhaseError, Version: ver, Message: userMessage(err)}, false)
		m.mu.Unlock()
		if err := m.persist(ctx); err != nil {
			log.Errorf("failed to persist update state: %v", err)
		}
		return result, err
	}
	if result == nil {
		return nil, nil //nolint:nilnil
	}

	m.mu.Lock()
	m.state.CurrentVersion = result.NewVersion
	m.state.SuppressedVersion = ""
	m.mu.Unlock()

	log.Infof("finalized update to %s", result.NewVersion)
	return result, m.persist(ctx)
}

// schedule runs the initial check and the interval checks while in the foreground
func (m *Manager) schedule(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	m.scheduledCheck(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		case <-ticker.C:
			m.mu.Lock()
			foreground := m.foreground
			m.mu.Unlock()
			if !foreground {
				continue
			}
		}
		m.scheduledCheck(ctx)
	}
}

func (m *Manager) scheduledCheck(ctx context.Context) {
	if err := m.Check(ctx); err != nil && ctx.Err() == nil {
		log.Warnf("update check failed: %v", err)
	}
}

// OnForeground resumes interval checks and checks immediately
func (m *Manager) OnForeground() {
	m.mu.Lock()
	m.foreground = true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// OnBackground pauses interval checks
func (m *Manager) OnBackground() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foreground = false
}

// Check asks the server for an update. It is a no-op while another lifecycle step runs or outside
// the idle and available phases.
func (m *Manager) Check(ctx context.Context) error {
	if !m.guard.TryAcquire(1) {
		log.Debugf("lifecycle step in progress, skipping check")
		return nil
	}
	defer m.guard.Release(1)

	m.mu.Lock()
	phase := m.snapshot.Phase
	m.mu.Unlock()

	if phase != PhaseIdle && phase != PhaseAvailable {
		log.Debugf("not checking for updates in phase %s", phase)
		return nil
	}

	return m.check(ctx)
}

// Retry leaves the error phase with a new check
func (m *Manager) Retry(ctx context.Context) error {
	if !m.guard.TryAcquire(1) {
		log.Debugf("lifecycle step in progress, skipping retry")
		return nil
	}
	defer m.guard.Release(1)

	m.mu.Lock()
	phase := m.snapshot.Phase
	m.mu.Unlock()

	if phase != PhaseError {
		return nil
	}

	return m.check(ctx)
}

// Acknowledge leaves the error phase
func (m *Manager) Acknowledge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot.Phase == PhaseError {
		m.transition(Snapshot{Phase: PhaseIdle}, false)
	}
}

// check runs with the guard held
func (m *Manager) check(ctx context.Context) error {
	m.mu.Lock()
	m.transition(Snapshot{Phase: PhaseChecking}, false)
	request := api.CheckRequest{
		CurrentVersion: m.state.CurrentVersion,
		Platform:       m.cfg.Platform,
		DeviceID:       m.state.DeviceID,
		Channel:        m.state.Channel,
		FeatureTag:     m.state.FeatureTag,
	}
	m.mu.Unlock()

	manifest, err := m.deps.Checker.Check(ctx, request)

	m.mu.Lock()
	m.state.LastCheckedAt = m.now().UTC()
	m.mu.Unlock()
	if perr := m.persist(ctx); perr != nil {
		log.Errorf("failed to persist update state: %v", perr)
	}

	if err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.available = nil
		switch {
		case ctx.Err() != nil:
			m.transition(Snapshot{Phase: PhaseIdle}, false)
			return ctx.Err()
		case nberrors.IsData(err):
			log.Warnf("ignoring invalid update information: %v", err)
			m.transition(Snapshot{Phase: PhaseIdle}, false)
			return nil
		default:
			m.transition(Snapshot{Phase: PhaseError, Message: userMessage(err)}, false)
			return err
		}
	}

	if manifest == nil {
		log.Debugf("no update available for %s", request.CurrentVersion)
		m.mu.Lock()
		m.available = nil
		m.transition(Snapshot{Phase: PhaseIdle}, false)
		m.mu.Unlock()
		return nil
	}

	if m.suppressed(ctx, manifest) {
		return nil
	}

	m.mu.Lock()
	m.available = manifest
	m.transition(Snapshot{
		Phase:   PhaseAvailable,
		Version: manifest.Version,
		Message: fmt.Sprintf("Version %s is available", manifest.Version),
	}, false)
	auto := m.state.AutoUpdateEnabled || manifest.IsRequired
	m.mu.Unlock()

	log.Infof("update %s available on channel %q", manifest.Version, request.Channel)

	if !auto {
		return nil
	}

	log.Infof("starting automatic update to %s", manifest.Version)
	return m.startUpdate(ctx)
}

// suppressed returns true and moves to idle when the user dismissed this exact version. A strictly
// greater version clears the suppression.
func (m *Manager) suppressed(ctx context.Context, manifest *api.UpdateManifest) bool {
	m.mu.Lock()
	suppressedVersion := m.state.SuppressedVersion
	m.mu.Unlock()

	if suppressedVersion == "" {
		return false
	}

	cmp, err := version.Compare(manifest.Version, suppressedVersion)
	switch {
	case err != nil:
		log.Warnf("clearing unusable suppressed version %q: %v", suppressedVersion, err)
	case cmp == 0 && !manifest.IsRequired:
		log.Debugf("update %s was dismissed", manifest.Version)
		m.mu.Lock()
		m.available = nil
		m.transition(Snapshot{Phase: PhaseIdle}, false)
		m.mu.Unlock()
		return true
	case cmp < 0:
		return false
	}

	m.mu.Lock()
	m.state.SuppressedVersion = ""
	m.mu.Unlock()
	if err := m.persist(ctx); err != nil {
		log.Errorf("failed to persist update state: %v", err)
	}
	return false
}

// StartUpdate downloads and installs the available update. It is a no-op while another lifecycle
// step runs.
func (m *Manager) StartUpdate(ctx context.Context) error {
	if !m.guard.TryAcquire(1) {
		log.Debugf("lifecycle step in progress, skipping update start")
		return nil
	}
	defer m.guard.Release(1)

	return m.startUpdate(ctx)
}

// startUpdate runs with the guard held
func (m *Manager) startUpdate(ctx context.Context) error {
	m.mu.Lock()
	if m.snapshot.Phase != PhaseAvailable || m.available == nil {
		m.mu.Unlock()
		return ErrNothingAvailable
	}
	manifest := m.available
	downloadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.downloadCancel = cancel
	m.cancelRequested = false
	m.transition(Snapshot{
		Phase:   PhaseDownloading,
		Version: manifest.Version,
		Message: fmt.Sprintf("Downloading %s", manifest.Version),
	}, false)
	m.mu.Unlock()

	m.report(api.ReportStatusStarted, manifest.Version, nil)

	artifact, err := m.deps.Downloader.Download(downloadCtx, manifest, m.onProgress(manifest.Version))

	m.mu.Lock()
	m.downloadCancel = nil
	canceled := m.cancelRequested
	m.cancelRequested = false
	m.mu.Unlock()

	if err != nil {
		if canceled || ctx.Err() != nil {
			log.Infof("download of %s canceled", manifest.Version)
			m.mu.Lock()
			m.transition(Snapshot{
				Phase:   PhaseAvailable,
				Version: manifest.Version,
				Message: fmt.Sprintf("Version %s is available", manifest.Version),
			}, false)
			m.mu.Unlock()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrCanceled
		}
		return m.fail(manifest, err)
	}

	m.report(api.ReportStatusDownloaded, manifest.Version, nil)

	m.mu.Lock()
	m.transition(Snapshot{
		Phase:           PhaseInstalling,
		ProgressPercent: 100,
		Version:         manifest.Version,
		Message:         fmt.Sprintf("Installing %s", manifest.Version),
	}, false)
	m.mu.Unlock()

	result, err := m.deps.Installer.Install(ctx, manifest, artifact)
	if derr := m.deps.Downloader.Discard(manifest.Version); derr != nil {
		log.Warnf("failed to discard staged %s: %v", manifest.Version, derr)
	}
	if err != nil {
		return m.fail(manifest, err)
	}

	m.mu.Lock()
	m.state.CurrentVersion = result.NewVersion
	m.state.SuppressedVersion = ""
	m.available = nil
	m.mu.Unlock()
	if err := m.persist(ctx); err != nil {
		log.Errorf("failed to persist update state: %v", err)
	}

	m.report(api.ReportStatusInstalled, manifest.Version, nil)

	message := fmt.Sprintf("Updated to %s", result.NewVersion)
	if result.RequiresRestart {
		message = fmt.Sprintf("Version %s is ready, restart to finish the update", result.NewVersion)
	}

	m.mu.Lock()
	m.transition(Snapshot{
		Phase:           PhaseComplete,
		ProgressPercent: 100,
		Version:         result.NewVersion,
		RequiresRestart: result.RequiresRestart,
		Message:         message,
	}, false)
	m.scheduleIdle()
	m.mu.Unlock()

	log.Infof("update to %s complete, restart required: %t", result.NewVersion, result.RequiresRestart)

	return nil
}

func (m *Manager) fail(manifest *api.UpdateManifest, err error) error {
	log.Errorf("update to %s failed: %v", manifest.Version, err)
	m.report(api.ReportStatusFailed, manifest.Version, err)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.available = nil
	m.transition(Snapshot{Phase: PhaseError, Version: manifest.Version, Message: userMessage(err)}, false)
	return err
}

// scheduleIdle returns from complete to idle after the display window. Caller holds mu.
func (m *Manager) scheduleIdle() {
	if m.completeTimer != nil {
		m.completeTimer.Stop()
	}
	m.completeTimer = time.AfterFunc(m.cfg.CompleteDisplayWindow, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.snapshot.Phase == PhaseComplete {
			m.transition(Snapshot{Phase: PhaseIdle}, false)
		}
	})
}

func (m *Manager) onProgress(ver string) func(downloader.Progress) {
	return func(p downloader.Progress) {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.snapshot.Phase != PhaseDownloading {
			return
		}
		m.transition(Snapshot{
			Phase:            PhaseDownloading,
			ProgressPercent:  p.Percent,
			SpeedBytesPerSec: p.SpeedBytesPerSec,
			ETASeconds:       p.ETASeconds,
			Version:          ver,
			Message:          m.snapshot.Message,
		}, true)
	}
}

// Cancel aborts a running download and returns to the available phase
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.snapshot.Phase {
	case PhaseDownloading:
		if m.downloadCancel != nil {
			m.cancelRequested = true
			m.downloadCancel()
		}
		return nil
	case PhaseInstalling:
		return ErrCancelNotAllowed
	default:
		return nil
	}
}

// Dismiss suppresses the available version until a greater one is offered
func (m *Manager) Dismiss(ctx context.Context) error {
	m.mu.Lock()
	if m.snapshot.Phase != PhaseAvailable || m.available == nil {
		m.mu.Unlock()
		return ErrNothingAvailable
	}
	if m.available.IsRequired {
		m.mu.Unlock()
		return ErrRequiredUpdate
	}

	ver := m.available.Version
	m.state.SuppressedVersion = ver
	m.available = nil
	m.transition(Snapshot{Phase: PhaseIdle}, false)
	m.mu.Unlock()

	log.Infof("update %s dismissed", ver)

	return m.persist(ctx)
}

// SetAutoUpdate enables or disables automatic updates
func (m *Manager) SetAutoUpdate(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	m.state.AutoUpdateEnabled = enabled
	m.mu.Unlock()
	return m.persist(ctx)
}

// SetChannel switches the release channel and feature tag
func (m *Manager) SetChannel(ctx context.Context, channel, featureTag string) error {
	if channel == "" {
		return errors.New("channel is required")
	}
	m.mu.Lock()
	m.state.Channel = channel
	m.state.FeatureTag = featureTag
	m.mu.Unlock()
	return m.persist(ctx)
}

// Reset removes the persisted update state, including the suppressed version and the device id.
// The in-memory state starts over from the configuration.
func (m *Manager) Reset(ctx context.Context) error {
	if !m.guard.TryAcquire(1) {
		return ErrBusy
	}
	defer m.guard.Release(1)

	if err := m.deps.State.DeleteState(&UpdateState{}); err != nil {
		return fmt.Errorf("delete update state: %w", err)
	}
	if err := m.deps.State.PersistState(ctx); err != nil {
		return fmt.Errorf("persist update state: %w", err)
	}

	m.mu.Lock()
	m.state = UpdateState{
		CurrentVersion:    m.cfg.CurrentVersion,
		Channel:           m.cfg.Channel,
		FeatureTag:        m.cfg.FeatureTag,
		AutoUpdateEnabled: m.cfg.AutoUpdate,
		DeviceID:          uuid.NewString(),
	}
	m.available = nil
	m.transition(Snapshot{Phase: PhaseIdle}, false)
	m.mu.Unlock()

	log.Info("update state reset")

	return nil
}

// Snapshot returns the current lifecycle snapshot
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// State returns a copy of the persisted state
func (m *Manager) State() UpdateState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Available returns the update offered by the last check, nil if none
func (m *Manager) Available() *api.UpdateManifest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.available == nil {
		return nil
	}
	manifest := *m.available
	return &manifest
}

// Subscribe returns a subscription starting with the current snapshot
func (m *Manager) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newSubscription()
	s.push(m.snapshot, false)
	m.subscriptions[s.ID] = s
	return s
}

func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	s, ok := m.subscriptions[id]
	delete(m.subscriptions, id)
	m.mu.Unlock()

	if ok {
		s.close()
	}
}

// transition sets and broadcasts the snapshot. Caller holds mu.
func (m *Manager) transition(snapshot Snapshot, progress bool) {
	if !progress && snapshot.Phase != m.snapshot.Phase {
		log.Debugf("update phase %s -> %s", m.snapshot.Phase, snapshot.Phase)
	}
	m.snapshot = snapshot
	for _, s := range m.subscriptions {
		s.push(snapshot, progress)
	}
}

func (m *Manager) persist(ctx context.Context) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if err := m.deps.State.UpdateState(&state); err != nil {
		return err
	}
	return m.deps.State.PersistState(ctx)
}

// report sends a lifecycle report in the background. Failures are only logged.
func (m *Manager) report(status api.ReportStatus, ver string, reportErr error) {
	if m.deps.Reporter == nil {
		return
	}

	m.mu.Lock()
	request := api.ReportRequest{
		UpdateID:  ver,
		Status:    status,
		DeviceID:  m.state.DeviceID,
		Timestamp: m.now().UTC(),
	}
	m.mu.Unlock()
	if reportErr != nil {
		request.Error = reportErr.Error()
	}

	m.reports.Add(1)
	go func() {
		defer m.reports.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ReportTimeout)
		defer cancel()

		operation := func() error {
			err := m.deps.Reporter.Report(ctx, request)
			if err != nil && !nberrors.IsNetwork(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
		if err := backoff.Retry(operation, b); err != nil {
			log.Warnf("failed to report update %s status %s: %v", ver, status, err)
		}
	}()
}

// userMessage is the human readable text of the error phase
func userMessage(err error) string {
	switch nberrors.KindOf(err) {
	case nberrors.KindNetwork:
		return "Could not reach the update server. Check your connection and retry."
	case nberrors.KindVerification:
		return "The downloaded update is corrupted and was discarded."
	case nberrors.KindInstallation:
		return "The update could not be installed."
	case nberrors.KindData:
		return "The update information is invalid."
	default:
		return fmt.Sprintf("Update failed: %v", err)
	}
}
