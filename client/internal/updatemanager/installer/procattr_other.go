//go:build !unix && !windows

package installer

import "os/exec"

func setDetached(*exec.Cmd) {}
