//go:build !windows

package cli

import (
	"bufio"
	stdcontext "context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/Paintersrp/duet/internal/cliutil"
	"github.com/Paintersrp/duet/internal/engine"
)

func decodeRecords(t *testing.T, output string) []cliutil.LogRecord {
	t.Helper()
	var records []cliutil.LogRecord
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var record cliutil.LogRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		records = append(records, record)
	}
	return records
}

func TestRootInterruptStopsBothChildren(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "duet.yaml")
	writeFile(t, configPath, `
version: "1"
startDelay: 100ms
stopTimeout: 2s
services:
  backend:
    workdir: api
    command: /bin/sh -c 'echo backend-up; exec sleep 30'
    endpoint: localhost:18001
  frontend:
    workdir: web
    command: [/bin/sh, -c, "echo frontend-up; exec sleep 30"]
    endpoint: localhost:18002
`)
	for _, sub := range []string{"api", "web"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	root := NewRootCmd()
	out := &syncBuffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"--file", configPath, "--log-format", "json"})

	ctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- root.ExecuteContext(ctx)
	}()

	waitForOutput(t, out, "All services started")
	waitForOutput(t, out, "backend-up")
	waitForOutput(t, out, "frontend-up")
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not exit after interrupt")
	}

	pids := map[string]int{}
	var endpoints []string
	for _, record := range decodeRecords(t, out.String()) {
		if record.Type == string(engine.EventTypeStarted) {
			pids[record.Service] = record.PID
		}
		if record.Reason == engine.ReasonEndpoint {
			endpoints = append(endpoints, record.Message)
		}
	}
	if len(pids) != 2 {
		t.Fatalf("expected pids for both children, got %v", pids)
	}
	for name, pid := range pids {
		if err := syscall.Kill(pid, 0); !errors.Is(err, syscall.ESRCH) {
			t.Fatalf("%s (pid %d) still alive after shutdown: %v", name, pid, err)
		}
	}
	wantEndpoints := []string{"Backend: http://localhost:18001", "Frontend: http://localhost:18002"}
	if strings.Join(endpoints, "|") != strings.Join(wantEndpoints, "|") {
		t.Fatalf("unexpected endpoint notices: %v", endpoints)
	}
}
