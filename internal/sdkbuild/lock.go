package sdkbuild

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// withBuildLock holds an exclusive advisory lock on <base>/build for the
// duration of fn. A second pipeline on the same checkout fails immediately.
func withBuildLock(baseDir string, fn func() error) error {
	dir := filepath.Join(baseDir, "build")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create build directory: %w", err)
	}
	lockPath := filepath.Join(dir, ".sdkbuild.lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("another build is running in %s (lock %s)", baseDir, lockPath)
		}
		return fmt.Errorf("failed to lock %s: %w", lockPath, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return fn()
}
