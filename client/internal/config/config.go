// Package config loads the update client configuration from an optional YAML file, NB_UPDATER_*
// environment variables and command line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/netbirdio/updater/client/internal/statemanager"
	"github.com/netbirdio/updater/version"
)

const (
	EnvPrefix = "NB_UPDATER"

	KeyServerURL             = "server.url"
	KeyChannel               = "updates.channel"
	KeyFeatureTag            = "updates.feature_tag"
	KeyAutoUpdate            = "updates.auto_update"
	KeyCheckInterval         = "updates.check_interval"
	KeyCompleteDisplayWindow = "updates.complete_display_window"
	KeyCurrentVersion        = "updates.current_version"
	KeyPlatform              = "updates.platform"
	KeyStatePath             = "paths.state"
	KeyStagingDir            = "paths.staging"
	KeyInstallDir            = "paths.install"
	KeyInstallerCommand      = "installer.command"
	KeyInstallerArgs         = "installer.args"
	KeyDownloadRetries       = "download.max_retries"
	KeyLogLevel              = "log.level"
	KeyLogFile               = "log.file"
)

// Config of the update client
type Config struct {
	ServerURL             string
	Channel               string
	FeatureTag            string
	AutoUpdate            bool
	CheckInterval         time.Duration
	CompleteDisplayWindow time.Duration
	CurrentVersion        string
	Platform              string

	StatePath  string
	StagingDir string
	InstallDir string

	// InstallerCommand runs full updates. Empty leaves them pending for an external installer.
	InstallerCommand string
	InstallerArgs    []string

	DownloadRetries uint64

	LogLevel string
	LogFile  string
}

// DefaultDataDir is the directory holding state, staged downloads and installed versions
func DefaultDataDir() string {
	if statePath := statemanager.GetDefaultStatePath(); statePath != "" {
		return filepath.Dir(statePath)
	}
	return filepath.Join(os.TempDir(), "netbird-updater")
}

// New returns a viper instance with defaults and environment binding set up
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	dataDir := DefaultDataDir()
	v.SetDefault(KeyServerURL, "http://localhost:8080")
	v.SetDefault(KeyChannel, "stable")
	v.SetDefault(KeyFeatureTag, "")
	v.SetDefault(KeyAutoUpdate, false)
	v.SetDefault(KeyCheckInterval, 6*time.Hour)
	v.SetDefault(KeyCompleteDisplayWindow, 5*time.Second)
	v.SetDefault(KeyCurrentVersion, "")
	v.SetDefault(KeyPlatform, runtime.GOOS+"/"+runtime.GOARCH)
	v.SetDefault(KeyStatePath, filepath.Join(dataDir, "state.json"))
	v.SetDefault(KeyStagingDir, filepath.Join(dataDir, "staging"))
	v.SetDefault(KeyInstallDir, filepath.Join(dataDir, "install"))
	v.SetDefault(KeyInstallerCommand, "")
	v.SetDefault(KeyInstallerArgs, []string{})
	v.SetDefault(KeyDownloadRetries, 5)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "console")

	return v
}

// Load reads the optional config file into v and returns the validated configuration. A missing
// file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		ServerURL:             strings.TrimSpace(v.GetString(KeyServerURL)),
		Channel:               strings.TrimSpace(v.GetString(KeyChannel)),
		FeatureTag:            strings.TrimSpace(v.GetString(KeyFeatureTag)),
		AutoUpdate:            v.GetBool(KeyAutoUpdate),
		CheckInterval:         v.GetDuration(KeyCheckInterval),
		CompleteDisplayWindow: v.GetDuration(KeyCompleteDisplayWindow),
		CurrentVersion:        strings.TrimSpace(v.GetString(KeyCurrentVersion)),
		Platform:              v.GetString(KeyPlatform),
		StatePath:             v.GetString(KeyStatePath),
		StagingDir:            v.GetString(KeyStagingDir),
		InstallDir:            v.GetString(KeyInstallDir),
		InstallerCommand:      v.GetString(KeyInstallerCommand),
		InstallerArgs:         v.GetStringSlice(KeyInstallerArgs),
		DownloadRetries:       v.GetUint64(KeyDownloadRetries),
		LogLevel:              v.GetString(KeyLogLevel),
		LogFile:               v.GetString(KeyLogFile),
	}
	if cfg.CurrentVersion == "" {
		cfg.CurrentVersion = version.UpdaterVersion()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q", KeyServerURL, c.ServerURL)
	}
	if c.Channel == "" {
		return fmt.Errorf("%s must not be empty", KeyChannel)
	}
	if c.CheckInterval < time.Minute {
		return fmt.Errorf("%s must be at least 1m, got %s", KeyCheckInterval, c.CheckInterval)
	}
	if c.CompleteDisplayWindow < 0 {
		return fmt.Errorf("%s must not be negative", KeyCompleteDisplayWindow)
	}
	if c.StatePath == "" || c.StagingDir == "" || c.InstallDir == "" {
		return errors.New("state, staging and install paths must be set")
	}
	return nil
}
