package cmd

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/netbirdio/updater/client/internal/config"
	"github.com/netbirdio/updater/util"
)

const (
	serverURLFlag  = "server-url"
	channelFlag    = "channel"
	featureTagFlag = "feature-tag"
	autoUpdateFlag = "auto-update"
	logLevelFlag   = "log-level"
	logFileFlag    = "log-file"
)

var (
	configPath  string
	serviceName string
	v           = config.New()

	rootCmd = &cobra.Command{
		Use:          "netbird-updater",
		Short:        "checks for, downloads and installs updates",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaultServiceName := "netbird-updater"
	if runtime.GOOS == "windows" {
		defaultServiceName = "NetbirdUpdater"
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", filepath.Join(config.DefaultDataDir(), "updater.yaml"), "updater config file location")
	flags.StringVarP(&serviceName, "service", "s", defaultServiceName, "updater system service name")
	flags.String(serverURLFlag, "", "update server URL [http|https]://[host]:[port]")
	flags.String(channelFlag, "", "release channel to follow")
	flags.String(featureTagFlag, "", "rollout track to follow within the channel")
	flags.Bool(autoUpdateFlag, false, "install available updates without asking")
	flags.StringP(logLevelFlag, "l", "", "sets the log level")
	flags.String(logFileFlag, "", "sets the log path. If console is specified the log will be output to stderr")

	bindFlag(serverURLFlag, config.KeyServerURL)
	bindFlag(channelFlag, config.KeyChannel)
	bindFlag(featureTagFlag, config.KeyFeatureTag)
	bindFlag(autoUpdateFlag, config.KeyAutoUpdate)
	bindFlag(logLevelFlag, config.KeyLogLevel)
	bindFlag(logFileFlag, config.KeyLogFile)

	rootCmd.AddCommand(runCmd, checkCmd, upCmd, statusCmd, dismissCmd, resetCmd, historyCmd, finalizeCmd, versionCmd, installResultCmd)
	rootCmd.AddCommand(serviceCmd)
	serviceCmd.AddCommand(serviceRunCmd, serviceStartCmd, serviceStopCmd)
	serviceCmd.AddCommand(serviceInstallCmd, serviceUninstallCmd)
}

// bindFlag lets a command line flag take precedence over the config file and environment
func bindFlag(flag, key string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// loadConfig reads the configuration and initializes logging
func loadConfig(vp *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(vp, configPath)
	if err != nil {
		return nil, err
	}
	if err := util.InitLog(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed initializing log %v", err)
	}
	return cfg, nil
}
