//go:build unix

package installer

import (
	"os/exec"
	"syscall"
)

// setDetached starts the platform installer in a new session so it survives the client being stopped
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
