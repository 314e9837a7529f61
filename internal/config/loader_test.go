package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultResolvesWorkdirs(t *testing.T) {
	base := t.TempDir()

	cfg, err := LoadDefault(base)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}

	if cfg.StartDelay.Duration != 5*time.Second {
		t.Fatalf("expected 5s start delay, got %s", cfg.StartDelay.Duration)
	}
	if cfg.StopTimeout.Duration != DefaultStopTimeout {
		t.Fatalf("expected default stop timeout, got %s", cfg.StopTimeout.Duration)
	}

	got := map[string]string{}
	for _, named := range cfg.Ordered() {
		got[named.Name] = named.Spec.ResolvedWorkdir
	}
	want := map[string]string{
		ServiceBackend:  filepath.Join(base, "agent-zero"),
		ServiceFrontend: filepath.Join(base, "agent-zero", "main_ui"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("resolved workdirs mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"npm", "run", "dev"}, []string(cfg.Services.Frontend.Command)); diff != "" {
		t.Fatalf("frontend command mismatch (-want +got):\n%s", diff)
	}
	if cfg.Source != "" {
		t.Fatalf("expected empty source for defaults, got %q", cfg.Source)
	}
}

func TestOrderedLaunchesBackendFirst(t *testing.T) {
	cfg := Default()
	ordered := cfg.Ordered()
	if len(ordered) != 2 || ordered[0].Name != ServiceBackend || ordered[1].Name != ServiceFrontend {
		t.Fatalf("unexpected launch order: %+v", ordered)
	}
}

func TestLoadMergesOverridesWithDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DUET_TEST_ROOT", "apps")
	if err := os.WriteFile(filepath.Join(dir, "backend.env"), []byte("# comment\nexport MODE=file\nTOKEN='abc'\nLEVEL=debug # trailing\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	path := writeConfig(t, dir, `
version: "1"
startDelay: 250ms
services:
  backend:
    workdir: ${DUET_TEST_ROOT}/api
    command: python -m server --port "5 0"
    envFromFile: backend.env
    env:
      MODE: inline
      PORT: 8080
  frontend:
    command: [pnpm, dev]
    endpoint: 127.0.0.1:3000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Source != path {
		t.Fatalf("expected source %s, got %s", path, cfg.Source)
	}
	if cfg.StartDelay.Duration != 250*time.Millisecond {
		t.Fatalf("expected 250ms start delay, got %s", cfg.StartDelay.Duration)
	}
	if cfg.StopTimeout.Duration != DefaultStopTimeout {
		t.Fatalf("expected default stop timeout, got %s", cfg.StopTimeout.Duration)
	}

	backend := cfg.Services.Backend
	if diff := cmp.Diff([]string{"python", "-m", "server", "--port", "5 0"}, []string(backend.Command)); diff != "" {
		t.Fatalf("backend command mismatch (-want +got):\n%s", diff)
	}
	if backend.ResolvedWorkdir != filepath.Join(dir, "apps", "api") {
		t.Fatalf("unexpected backend workdir %s", backend.ResolvedWorkdir)
	}
	wantEnv := map[string]string{
		"MODE":  "inline",
		"TOKEN": "abc",
		"LEVEL": "debug",
		"PORT":  "8080",
	}
	if diff := cmp.Diff(wantEnv, backend.Env); diff != "" {
		t.Fatalf("backend env mismatch (-want +got):\n%s", diff)
	}
	if backend.Endpoint != "localhost:50001" {
		t.Fatalf("expected default backend endpoint, got %s", backend.Endpoint)
	}

	frontend := cfg.Services.Frontend
	if frontend.ResolvedWorkdir != filepath.Join(dir, "agent-zero", "main_ui") {
		t.Fatalf("expected default frontend workdir, got %s", frontend.ResolvedWorkdir)
	}
	if frontend.URL() != "http://127.0.0.1:3000" {
		t.Fatalf("unexpected frontend url %s", frontend.URL())
	}
}

func TestLoadAllowsExplicitZeroDelay(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "version: \"1\"\nstartDelay: 0s\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StartDelay.Duration != 0 {
		t.Fatalf("expected explicit zero delay to be kept, got %s", cfg.StartDelay.Duration)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]struct {
		contents string
		want     string
	}{
		"empty": {
			contents: "",
			want:     "configuration is empty",
		},
		"unknown top-level field": {
			contents: "version: \"1\"\nrestart: always\n",
			want:     "schema validation failed",
		},
		"unknown service": {
			contents: "version: \"1\"\nservices:\n  worker:\n    command: [true]\n",
			want:     "schema validation failed",
		},
		"wrong version": {
			contents: "version: \"2\"\n",
			want:     "schema validation failed",
		},
		"bad duration": {
			contents: "version: \"1\"\nstartDelay: soon\n",
			want:     "startDelay",
		},
		"unterminated quote": {
			contents: "version: \"1\"\nservices:\n  backend:\n    command: \"python 'run.py\"\n",
			want:     "parse command",
		},
		"bad endpoint": {
			contents: "version: \"1\"\nservices:\n  backend:\n    endpoint: localhost\n",
			want:     "services.backend.endpoint",
		},
		"missing env file": {
			contents: "version: \"1\"\nservices:\n  frontend:\n    envFromFile: nope.env\n",
			want:     "services.frontend.envFromFile",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tc.contents)
			_, err := Load(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "open config file") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Default()
	cfg.Services.Backend.Env = map[string]string{"A": "1"}

	cp := cfg.Clone()
	cp.Services.Backend.Command[0] = "python3"
	cp.Services.Backend.Env["A"] = "2"

	if cfg.Services.Backend.Command[0] != "python" {
		t.Fatalf("clone shares command slice")
	}
	if cfg.Services.Backend.Env["A"] != "1" {
		t.Fatalf("clone shares env map")
	}
}
