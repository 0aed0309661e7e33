package installer

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// CommandInstaller hands full updates to an external program started detached from the client.
// The program receives the pending file and the directory where it must write result.json.
type CommandInstaller struct {
	Path string
	Args []string
}

func NewCommandInstaller(path string, args ...string) *CommandInstaller {
	return &CommandInstaller{Path: path, Args: args}
}

func (c *CommandInstaller) Install(_ context.Context, pendingFile string, update *PendingUpdate) error {
	if c.Path == "" {
		return errors.New("installer command is not configured")
	}

	args := append([]string{}, c.Args...)
	args = append(args,
		"--pending-file", pendingFile,
		"--result-dir", filepath.Dir(pendingFile),
		"--artifact", update.ArtifactPath,
		"--version", update.Manifest.Version,
	)

	// not bound to ctx, the installer must outlive the lifecycle step that started it
	cmd := exec.Command(c.Path, args...)
	setDetached(cmd)

	log.Infof("starting platform installer: %s", cmd.String())
	if err := cmd.Start(); err != nil {
		return err
	}

	log.Infof("platform installer started with PID %d", cmd.Process.Pid)

	if err := cmd.Process.Release(); err != nil {
		log.Warnf("failed to release platform installer process: %v", err)
	}
	return nil
}
