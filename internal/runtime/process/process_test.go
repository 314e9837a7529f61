package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	stdruntime "runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Paintersrp/duet/internal/runtime"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if stdruntime.GOOS == "windows" {
		t.Skip("process runtime tests skipped on windows")
	}
}

func waitDone(t *testing.T, inst runtime.Instance) {
	t.Helper()
	select {
	case <-inst.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for process %d to exit", inst.PID())
	}
}

func TestStartRunsInWorkdirWithEnv(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	out := &syncBuffer{}

	inst, err := New().Start(context.Background(), runtime.StartSpec{
		Name:    "backend",
		Command: []string{"/bin/sh", "-c", "pwd -P; echo $DUET_TEST_VALUE"},
		Workdir: dir,
		Env:     map[string]string{"DUET_TEST_VALUE": "hello"},
		Stdout:  out,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if inst.PID() <= 0 {
		t.Fatalf("expected positive pid, got %d", inst.PID())
	}
	waitDone(t, inst)
	if err := inst.Err(); err != nil {
		t.Fatalf("unexpected wait error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two output lines, got %q", out.String())
	}
	if lines[0] != resolved {
		t.Fatalf("expected workdir %s, got %s", resolved, lines[0])
	}
	if lines[1] != "hello" {
		t.Fatalf("expected env override, got %q", lines[1])
	}
}

func TestStartMissingExecutable(t *testing.T) {
	skipOnWindows(t)

	_, err := New().Start(context.Background(), runtime.StartSpec{
		Name:    "backend",
		Command: []string{filepath.Join(t.TempDir(), "does-not-exist")},
	})
	if err == nil {
		t.Fatal("expected spawn error for missing executable")
	}
	if !strings.Contains(err.Error(), "start backend") {
		t.Fatalf("expected error to name the child, got %v", err)
	}
}

func TestStartMissingWorkdir(t *testing.T) {
	skipOnWindows(t)

	_, err := New().Start(context.Background(), runtime.StartSpec{
		Name:    "frontend",
		Command: []string{"/bin/sh", "-c", "true"},
		Workdir: filepath.Join(t.TempDir(), "missing"),
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestStartRequiresCommand(t *testing.T) {
	if _, err := New().Start(context.Background(), runtime.StartSpec{Name: "backend"}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestTerminateStopsProcessGroup(t *testing.T) {
	skipOnWindows(t)

	inst, err := New().Start(context.Background(), runtime.StartSpec{
		Name:    "frontend",
		Command: []string{"/bin/sh", "-c", "sleep 30 & wait"},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := inst.Terminate(); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	waitDone(t, inst)
	if code := runtime.ExitCode(inst.Err()); code == 0 {
		t.Fatalf("expected non-zero exit after SIGTERM, got %d", code)
	}
}

func TestTerminateAfterExitIsSilent(t *testing.T) {
	skipOnWindows(t)

	inst, err := New().Start(context.Background(), runtime.StartSpec{
		Name:    "backend",
		Command: []string{"/bin/sh", "-c", "exit 3"},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, inst)

	if err := inst.Terminate(); err != nil {
		t.Fatalf("expected terminate of exited process to succeed, got %v", err)
	}
	if code := runtime.ExitCode(inst.Err()); code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
}
