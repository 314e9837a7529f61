package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/Paintersrp/duet/internal/runtime"
)

type runtimeImpl struct{}

// New constructs a runtime that executes children as local processes.
func New() runtime.Runtime {
	return &runtimeImpl{}
}

func (r *runtimeImpl) Start(ctx context.Context, spec runtime.StartSpec) (runtime.Instance, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("process runtime for %s requires a command", spec.Name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The supervisor owns termination; CommandContext would SIGKILL the child
	// as soon as the caller's context is cancelled.
	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	if spec.Workdir != "" {
		info, err := os.Stat(spec.Workdir)
		if err != nil {
			return nil, fmt.Errorf("%s workdir: %w", spec.Name, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s workdir %s is not a directory", spec.Name, spec.Workdir)
		}
		cmd.Dir = spec.Workdir
	}
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	cmd.Stdout = writerOrDiscard(spec.Stdout)
	cmd.Stderr = writerOrDiscard(spec.Stderr)

	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Name, err)
	}

	inst := &processInstance{
		name: spec.Name,
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go inst.wait()
	return inst, nil
}

type processInstance struct {
	name string
	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	waitErr error
}

func (p *processInstance) PID() int {
	return p.cmd.Process.Pid
}

func (p *processInstance) Done() <-chan struct{} {
	return p.done
}

func (p *processInstance) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *processInstance) wait() {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.waitErr = err
	p.mu.Unlock()
	close(p.done)
}

func (p *processInstance) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, overrides[k]))
	}
	return env
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
