package cmd

import (
	"github.com/spf13/cobra"
)

var (
	mgmtDataDir  string
	mgmtConfig   string
	logLevel     string
	logFile      string
	manifestsDir string

	rootCmd = &cobra.Command{
		Use:   "updater-mgmt",
		Short: "",
		Long:  "",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	mgmtCmd.Flags().IntVar(&mgmtPort, "port", 80, "server port to listen on (defaults to 443 if TLS is enabled, 80 otherwise")
	mgmtCmd.Flags().IntVar(&metricsPort, "metrics-port", 9090, "metrics endpoint http port. Metrics are accessible under host:metrics-port/metrics")
	mgmtCmd.Flags().StringVar(&mgmtDataDir, "datadir", defaultMgmtDataDir, "server data directory location")
	mgmtCmd.Flags().StringVar(&mgmtConfig, "config", defaultMgmtConfig, "update server config file location. Config params specified via command line (e.g. datadir) have a precedence over configuration from this file")
	mgmtCmd.Flags().StringVar(&manifestsDir, "manifests-dir", "", "directory with yaml or json manifest feeds published on start")
	mgmtCmd.Flags().StringVar(&certFile, "cert-file", "", "location of your SSL certificate")
	mgmtCmd.Flags().StringVar(&certKey, "cert-key", "", "location of your SSL certificate private key")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", defaultLogFile, "sets the update server log path. If console is specified the log will be output to stderr")
	rootCmd.AddCommand(mgmtCmd)
}
