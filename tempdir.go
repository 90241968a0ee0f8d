package csicam

import (
	"os"
)

// TempDir returns a fresh directory for intermediate frame files, in /dev/shm
// when it exists so that JPEG frames written by gstreamer stay in memory.
// Otherwise the OS default temporary directory is used.
func TempDir() (string, error) {
	// Only use /dev/shm when it is already there; never create it.
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		dir, err := os.MkdirTemp("/dev/shm", "csicam")
		if err == nil {
			return dir, nil
		}
	}
	return os.MkdirTemp("", "csicam")
}
