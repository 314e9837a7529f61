package engine

import (
	"fmt"
	"strings"
)

// SpawnError reports that a child process could not be launched.
type SpawnError struct {
	Service string
	Command []string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s (%s): %v", e.Service, strings.Join(e.Command, " "), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError reports that a child exited on its own with a non-zero status.
type ExitError struct {
	Service string
	Code    int
	Err     error
}

func (e *ExitError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("%s exited: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s exited with status %d", e.Service, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
