package installer

import (
	"os/exec"
	"syscall"
)

// setDetached starts the platform installer in its own process group without a console
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | 0x00000008, // DETACHED_PROCESS
	}
}
