package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "manages the update client service",
}

// program runs the update scheduler under the service manager
type program struct {
	cmd    *cobra.Command
	ctx    context.Context
	cancel context.CancelFunc
	app    *app
}

func (p *program) Start(s service.Service) error {
	// Start should not block
	log.Info("starting update client service")

	a, err := setupApp(p.cmd)
	if err != nil {
		return err
	}
	p.app = a
	p.ctx, p.cancel = context.WithCancel(context.Background())

	return runUpdater(p.ctx, a)
}

func (p *program) Stop(s service.Service) error {
	log.Info("stopping update client service")
	if p.cancel != nil {
		p.cancel()
	}
	if p.app != nil {
		p.app.close(p.cmd)
	}
	return nil
}

func newSVCConfig() *service.Config {
	config := &service.Config{
		Name:        serviceName,
		DisplayName: "Netbird Updater",
		Description: "Checks for, downloads and installs updates",
		Option:      make(service.KeyValue),
		EnvVars:     make(map[string]string),
	}
	if runtime.GOOS == "linux" {
		config.EnvVars["SYSTEMD_UNIT"] = serviceName
	}
	return config
}

func newSVC(prg *program, conf *service.Config) (service.Service, error) {
	return service.New(prg, conf)
}

// buildServiceArguments passes the effective global flags to the installed service
func buildServiceArguments() []string {
	args := []string{"service", "run", "--config", configPath}
	for _, name := range []string{serverURLFlag, channelFlag, featureTagFlag, autoUpdateFlag, logLevelFlag, logFileFlag} {
		f := rootCmd.PersistentFlags().Lookup(name)
		if f != nil && f.Changed {
			args = append(args, "--"+name, f.Value.String())
		}
	}
	return args
}

func serviceControl(action string, fn func(service.Service) error) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: action + " the update client service",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSVC(&program{cmd: cmd}, newSVCConfig())
			if err != nil {
				return err
			}
			if err := fn(s); err != nil {
				return fmt.Errorf("%s service: %w", action, err)
			}
			cmd.Printf("update client service %s: done\n", action)
			return nil
		},
	}
}

var (
	serviceRunCmd = &cobra.Command{
		Use:   "run",
		Short: "runs the update client as a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSVC(&program{cmd: cmd}, newSVCConfig())
			if err != nil {
				return err
			}
			return s.Run()
		},
	}

	serviceStartCmd = serviceControl("start", service.Service.Start)
	serviceStopCmd  = serviceControl("stop", service.Service.Stop)

	serviceInstallCmd = &cobra.Command{
		Use:   "install",
		Short: "installs the update client service",
		RunE: func(cmd *cobra.Command, args []string) error {
			svcConfig := newSVCConfig()
			svcConfig.Arguments = buildServiceArguments()

			if runtime.GOOS == "linux" {
				// Respected only by systemd systems
				svcConfig.Dependencies = []string{"After=network.target syslog.target"}

				cfg, err := loadConfig(v)
				if err == nil && cfg.LogFile != "" && cfg.LogFile != "console" {
					dir := filepath.Dir(cfg.LogFile)
					if err := os.MkdirAll(dir, 0o750); err == nil {
						svcConfig.Option["LogOutput"] = true
						svcConfig.Option["LogDirectory"] = dir
					}
				}
			}
			if runtime.GOOS == "windows" {
				svcConfig.Option["OnFailure"] = "restart"
			}

			s, err := newSVC(&program{cmd: cmd}, svcConfig)
			if err != nil {
				return err
			}
			if err := s.Install(); err != nil {
				return fmt.Errorf("install service: %w", err)
			}
			cmd.Println("update client service has been installed")
			return nil
		},
	}

	serviceUninstallCmd = &cobra.Command{
		Use:   "uninstall",
		Short: "uninstalls the update client service",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSVC(&program{cmd: cmd}, newSVCConfig())
			if err != nil {
				return err
			}

			// stop first, uninstalling a running service leaves it running on some platforms
			if status, err := s.Status(); err == nil && status == service.StatusRunning {
				if err := s.Stop(); err != nil {
					log.Warnf("failed to stop service before uninstall: %v", err)
				}
				time.Sleep(time.Second)
			}

			if err := s.Uninstall(); err != nil {
				return fmt.Errorf("uninstall service: %w", err)
			}
			cmd.Println("update client service has been uninstalled")
			return nil
		},
	}
)
