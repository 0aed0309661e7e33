package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netbirdio/updater/client/internal/updatemanager"
)

var (
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "checks the update server for an applicable release",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd)

			if err := a.manager.Check(cmd.Context()); err != nil {
				return err
			}

			manifest := a.manager.Available()
			if manifest == nil {
				cmd.Printf("%s is up to date\n", a.manager.State().CurrentVersion)
				return nil
			}
			cmd.Printf("version %s is available (%s update", manifest.Version, manifest.UpdateType)
			if manifest.IsRequired {
				cmd.Print(", required")
			}
			cmd.Println(")")
			for _, line := range manifest.Changelog {
				cmd.Printf("  - %s\n", line)
			}
			return nil
		},
	}

	upCmd = &cobra.Command{
		Use:   "up",
		Short: "checks for an update, then downloads and installs it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd)

			sub := a.manager.Subscribe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				printProgress(cmd, sub)
			}()
			defer func() {
				a.manager.Unsubscribe(sub.ID)
				<-done
			}()

			// an interrupt cancels the download and leaves the update available
			go func() {
				<-ctx.Done()
				_ = a.manager.Cancel()
			}()

			if err := a.manager.Check(ctx); err != nil {
				return err
			}
			snapshot := a.manager.Snapshot()
			switch snapshot.Phase {
			case updatemanager.PhaseComplete:
				// installed automatically by the check
				return nil
			case updatemanager.PhaseAvailable:
			default:
				cmd.Printf("%s is up to date\n", a.manager.State().CurrentVersion)
				return nil
			}

			if err := a.manager.StartUpdate(ctx); err != nil {
				if errors.Is(err, updatemanager.ErrCanceled) || errors.Is(err, context.Canceled) {
					return errors.New("update canceled")
				}
				return fmt.Errorf("%s: %w", a.manager.Snapshot().Message, err)
			}
			return nil
		},
	}

	dismissCmd = &cobra.Command{
		Use:   "dismiss",
		Short: "stops offering the available version until a newer one is released",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd)

			if err := a.manager.Check(cmd.Context()); err != nil {
				return err
			}
			manifest := a.manager.Available()
			if err := a.manager.Dismiss(cmd.Context()); err != nil {
				return err
			}
			cmd.Printf("version %s dismissed\n", manifest.Version)
			return nil
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "forgets dismissed versions and the persisted update settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setupApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd)

			if err := a.manager.Reset(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("update state has been reset")
			return nil
		},
	}
)

// printProgress writes phase changes and download progress until the subscription closes
func printProgress(cmd *cobra.Command, sub *updatemanager.Subscription) {
	var last updatemanager.Snapshot
	for snapshot := range sub.C {
		switch {
		case snapshot.Phase == updatemanager.PhaseDownloading && snapshot.ProgressPercent > 0:
			if int(snapshot.ProgressPercent) == int(last.ProgressPercent) && last.Phase == snapshot.Phase {
				continue
			}
			cmd.Printf("\rdownloading %s: %3.0f%% %s/s eta %ds", snapshot.Version, snapshot.ProgressPercent,
				humanBytes(snapshot.SpeedBytesPerSec), snapshot.ETASeconds)
		case snapshot.Phase != last.Phase && snapshot.Message != "":
			if last.Phase == updatemanager.PhaseDownloading {
				cmd.Println()
			}
			cmd.Println(snapshot.Message)
		}
		last = snapshot
	}
}

func humanBytes(b float64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%.0fB", b)
	}
	div, exp := float64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", b/div, "KMGTPE"[exp])
}
