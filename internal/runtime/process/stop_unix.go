//go:build !windows

package process

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Terminate delivers SIGTERM to the child's process group.
func (p *processInstance) Terminate() error {
	if p.cmd.Process == nil || p.exited() {
		return nil
	}
	if err := unix.Kill(-p.cmd.Process.Pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("signal process group %s: %w", p.name, err)
	}
	return nil
}
