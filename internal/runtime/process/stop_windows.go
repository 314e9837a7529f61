//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
)

// Terminate kills the direct child. Windows has no deliverable interrupt for
// processes that do not share the supervisor's console group.
func (p *processInstance) Terminate() error {
	if p.cmd.Process == nil || p.exited() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %s: %w", p.name, err)
	}
	return nil
}
