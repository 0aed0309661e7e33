package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/netbirdio/updater/client/internal/updatemanager"
	"github.com/netbirdio/updater/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "runs the update client in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := setupApp(cmd)
		if err != nil {
			return err
		}
		defer a.close(cmd)

		if err := runUpdater(ctx, a); err != nil {
			return err
		}
		<-ctx.Done()
		log.Info("shutdown signal received")
		return nil
	},
}

// runUpdater starts the scheduler and logs lifecycle transitions until ctx is done
func runUpdater(ctx context.Context, a *app) error {
	sub := a.manager.Subscribe()
	go logSnapshots(ctx, a.manager, sub)

	if err := a.manager.Start(ctx); err != nil {
		a.manager.Unsubscribe(sub.ID)
		return fmt.Errorf("start update manager: %w", err)
	}
	log.Infof("update client %s started, following channel %q", version.UpdaterVersion(), a.manager.State().Channel)
	return nil
}

func logSnapshots(ctx context.Context, m *updatemanager.Manager, sub *updatemanager.Subscription) {
	defer m.Unsubscribe(sub.ID)

	var last updatemanager.Phase
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-sub.C:
			if !ok {
				return
			}
			if snapshot.Phase == last {
				continue
			}
			last = snapshot.Phase
			if snapshot.Message != "" {
				log.Infof("update %s: %s", snapshot.Phase, snapshot.Message)
			} else {
				log.Infof("update %s", snapshot.Phase)
			}
		}
	}
}
