package statemanager

import (
	"os"
	"path/filepath"
	"runtime"
)

// GetDefaultStatePath returns the path of the updater state file for the operating system.
// It returns an empty string if the path cannot be determined.
func GetDefaultStatePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("PROGRAMDATA"), "NetbirdUpdater", "state.json")
	case "darwin", "linux":
		return "/var/lib/netbird-updater/state.json"
	case "freebsd", "openbsd", "netbsd", "dragonfly":
		return "/var/db/netbird-updater/state.json"
	}

	return ""
}
