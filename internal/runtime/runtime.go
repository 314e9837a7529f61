package runtime

import (
	"context"
	"errors"
	"io"
)

// StartSpec describes a single child process launch.
type StartSpec struct {
	Name    string
	Command []string
	Workdir string
	Env     map[string]string

	// Stdout and Stderr receive the child's output unmodified. Nil writers
	// discard the stream.
	Stdout io.Writer
	Stderr io.Writer
}

// Instance represents a single running child managed by a runtime adapter.
type Instance interface {
	// PID returns the operating system process identifier assigned at spawn.
	PID() int

	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}

	// Err returns the wait result. It is only meaningful after Done is closed.
	Err() error

	// Terminate sends a single termination request to the process.
	// Implementations must report a process that already exited as success.
	Terminate() error
}

// Runtime describes a backend capable of launching child processes.
type Runtime interface {
	// Start launches the child described by spec. Implementations should
	// surface spawn failures via the returned error and never return a nil
	// Instance without one.
	Start(ctx context.Context, spec StartSpec) (Instance, error)
}

type exitCoder interface {
	ExitCode() int
}

// ExitCode extracts the exit status from a wait error. A nil error maps to
// zero and errors that carry no status map to -1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}
