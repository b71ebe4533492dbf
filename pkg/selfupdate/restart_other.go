//go:build !unix

package selfupdate

import "fmt"

// ExecRestarter is unsupported on this platform.
type ExecRestarter struct{}

// Restart implements Restarter.
func (ExecRestarter) Restart() error {
	return fmt.Errorf("in-place restart is not supported on this platform")
}
