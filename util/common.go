package util

import "os"

// DirExists returns true if path exists and is a directory
func DirExists(path string) bool {
	s, err := os.Stat(path)
	return err == nil && s.IsDir()
}
