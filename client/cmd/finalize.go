package cmd

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/netbirdio/updater/client/internal/updatemanager/installer"
)

var (
	waitFlag      bool
	resultDir     string
	resultSuccess bool
	resultError   string

	finalizeCmd = &cobra.Command{
		Use:   "finalize",
		Short: "commits a full update applied by the platform installer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd)

			finalize := a.manager.Finalize
			if waitFlag {
				if pending, err := a.installer.Pending(); err == nil && pending != nil {
					cmd.Printf("waiting for the installer of %s\n", pending.Manifest.Version)
				}
				finalize = a.manager.WaitForInstaller
			}

			result, err := finalize(cmd.Context())
			if err != nil {
				return err
			}
			if result == nil {
				cmd.Println("no pending update to finalize")
				return nil
			}
			cmd.Printf("updated to %s\n", result.NewVersion)
			return nil
		},
	}

	// installResultCmd is called by platform installers to hand the outcome back
	installResultCmd = &cobra.Command{
		Use:    "install-result",
		Short:  "records the outcome of a platform installation",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if resultDir == "" {
				return errors.New("--result-dir is required")
			}
			rh := installer.NewResultHandler(filepath.Clean(resultDir))
			outcome := installer.Outcome{
				Success:    resultSuccess,
				Error:      resultError,
				ExecutedAt: time.Now().UTC(),
			}
			if !resultSuccess && resultError == "" {
				outcome.Error = "installation failed"
			}
			return rh.Write(cmd.Context(), outcome)
		},
	}
)

func init() {
	finalizeCmd.Flags().BoolVar(&waitFlag, "wait", false, "wait for the platform installer to report its result")

	installResultCmd.Flags().StringVar(&resultDir, "result-dir", "", "directory the update client watches for the result")
	installResultCmd.Flags().BoolVar(&resultSuccess, "success", false, "the installation succeeded")
	installResultCmd.Flags().StringVar(&resultError, "error", "", "reason of a failed installation")
}
