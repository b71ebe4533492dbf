//go:build unix

package selfupdate

import (
	"fmt"
	"os"
	"syscall"
)

// ExecRestarter replaces the current process image with a fresh copy of the
// executable, keeping the original arguments and environment.
type ExecRestarter struct{}

// Restart implements Restarter.
func (ExecRestarter) Restart() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("failed to exec %s: %w", exe, err)
	}
	return nil
}
