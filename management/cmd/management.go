package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/netbirdio/updater/management/server"
	"github.com/netbirdio/updater/management/server/telemetry"
	nbcontext "github.com/netbirdio/updater/shared/context"
	"github.com/netbirdio/updater/util"
	"github.com/netbirdio/updater/version"
)

var (
	mgmtPort    int
	metricsPort int
	certFile    string
	certKey     string

	mgmtCmd = &cobra.Command{
		Use:   "management",
		Short: "start the update distribution server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			util.SetFlagsFromEnvVars(rootCmd, envPrefix)
			util.SetFlagsFromEnvVars(cmd, envPrefix)

			if err := util.InitLog(logLevel, logFile); err != nil {
				return fmt.Errorf("failed initializing log %v", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			//nolint
			ctx = context.WithValue(ctx, nbcontext.SourceKey, util.SystemSource)

			config, err := loadMgmtConfig(ctx, mgmtConfig)
			if err != nil {
				return fmt.Errorf("failed reading provided config file: %s: %v", mgmtConfig, err)
			}
			applyFlags(cmd, config)

			appMetrics, err := telemetry.NewDefaultAppMetrics(ctx)
			if err != nil {
				return fmt.Errorf("failed creating app metrics: %v", err)
			}
			if err := appMetrics.Expose(ctx, metricsPort, "/metrics"); err != nil {
				return fmt.Errorf("failed exposing metrics: %v", err)
			}
			defer func() {
				if err := appMetrics.Close(); err != nil {
					log.WithContext(ctx).Warnf("failed closing metrics: %v", err)
				}
			}()

			srv, err := server.NewServer(ctx, config, appMetrics)
			if err != nil {
				return fmt.Errorf("failed creating server: %v", err)
			}
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("failed starting server: %v", err)
			}

			log.WithContext(ctx).Infof("update server %s started", version.UpdaterVersion())
			<-ctx.Done()
			log.WithContext(ctx).Info("received signal to stop the update server")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Stop(shutdownCtx)
		},
	}
)

// loadMgmtConfig reads the JSON config. A missing file yields the defaults.
func loadMgmtConfig(ctx context.Context, path string) (*server.Config, error) {
	config := &server.Config{}
	if _, err := util.ReadJson(path, config); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		log.WithContext(ctx).Infof("config file %s not found, using defaults", path)
	}
	config.ApplyDefaults()
	return config, nil
}

// applyFlags lets command line flags take precedence over the config file
func applyFlags(cmd *cobra.Command, config *server.Config) {
	if config.Datadir == "" || cmd.Flags().Changed("datadir") {
		config.Datadir = mgmtDataDir
	}
	if config.HttpConfig.Address == "" || cmd.Flags().Changed("port") {
		port := mgmtPort
		if !cmd.Flags().Changed("port") && certFile != "" {
			port = 443
		}
		config.HttpConfig.Address = fmt.Sprintf(":%d", port)
	}
	if certFile != "" && certKey != "" {
		config.HttpConfig.CertFile = certFile
		config.HttpConfig.CertKey = certKey
	}
	if manifestsDir != "" {
		config.ManifestsDir = manifestsDir
	}
}
