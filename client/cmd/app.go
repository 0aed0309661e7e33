package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/netbirdio/updater/client/internal/config"
	"github.com/netbirdio/updater/client/internal/statemanager"
	"github.com/netbirdio/updater/client/internal/updatemanager"
	"github.com/netbirdio/updater/client/internal/updatemanager/downloader"
	"github.com/netbirdio/updater/client/internal/updatemanager/installer"
	"github.com/netbirdio/updater/shared/updates/client/rest"
	"github.com/netbirdio/updater/version"
)

const apiTimeout = 30 * time.Second

// app holds the wired update client
type app struct {
	cfg       *config.Config
	server    *updatemanager.ServerClient
	installer *installer.Installer
	manager   *updatemanager.Manager
}

func newApp(cfg *config.Config) (*app, error) {
	client := rest.New(cfg.ServerURL,
		rest.WithHttpClient(&http.Client{Timeout: apiTimeout}),
		rest.WithUserAgent("netbird-updater/"+version.UpdaterVersion()),
	)
	server := updatemanager.NewServerClient(client)

	dl, err := downloader.New(downloader.Config{
		StagingDir: cfg.StagingDir,
		MaxRetries: cfg.DownloadRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create downloader: %w", err)
	}

	var platform installer.PlatformInstaller
	if cfg.InstallerCommand != "" {
		platform = installer.NewCommandInstaller(cfg.InstallerCommand, cfg.InstallerArgs...)
	}
	inst, err := installer.New(cfg.InstallDir, platform)
	if err != nil {
		return nil, fmt.Errorf("create installer: %w", err)
	}

	manager, err := updatemanager.NewManager(updatemanager.Dependencies{
		Checker:    server,
		Reporter:   server,
		Downloader: dl,
		Installer:  inst,
		State:      statemanager.New(cfg.StatePath),
	}, updatemanager.Config{
		CurrentVersion:        cfg.CurrentVersion,
		Platform:              cfg.Platform,
		Channel:               cfg.Channel,
		FeatureTag:            cfg.FeatureTag,
		AutoUpdate:            cfg.AutoUpdate,
		CheckInterval:         cfg.CheckInterval,
		CompleteDisplayWindow: cfg.CompleteDisplayWindow,
	})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, server: server, installer: inst, manager: manager}, nil
}

// setupApp loads the configuration, wires the client and loads the persisted state. Channel and
// auto update flags given on the command line are written to the state.
func setupApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if err := a.manager.Load(ctx); err != nil {
		return nil, fmt.Errorf("load update state: %w", err)
	}
	if err := a.applyFlags(ctx, cmd); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) applyFlags(ctx context.Context, cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed(channelFlag) || flags.Changed(featureTagFlag) {
		if err := a.manager.SetChannel(ctx, a.cfg.Channel, a.cfg.FeatureTag); err != nil {
			return fmt.Errorf("set channel: %w", err)
		}
	}
	if flags.Changed(autoUpdateFlag) {
		if err := a.manager.SetAutoUpdate(ctx, a.cfg.AutoUpdate); err != nil {
			return fmt.Errorf("set auto update: %w", err)
		}
	}
	return nil
}

func (a *app) close(cmd *cobra.Command) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.manager.Stop(ctx); err != nil {
		cmd.PrintErrf("failed to save update state: %v\n", err)
	}
}
