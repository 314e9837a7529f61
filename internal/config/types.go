package config

import (
	"fmt"
	"time"

	"github.com/buildkite/shellwords"
	"gopkg.in/yaml.v3"
)

const (
	// ServiceBackend names the child launched first.
	ServiceBackend = "backend"
	// ServiceFrontend names the child launched after the start delay.
	ServiceFrontend = "frontend"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Command is an argv list. In YAML it may be written either as a sequence or
// as a single shell-style string.
type Command []string

// UnmarshalYAML accepts both `[python, run_ui.py]` and `"python run_ui.py"`.
func (c *Command) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		words, err := shellwords.SplitPosix(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: parse command %q: %w", node.Line, node.Value, err)
		}
		*c = words
		return nil
	case yaml.SequenceNode:
		var words []string
		if err := node.Decode(&words); err != nil {
			return err
		}
		*c = words
		return nil
	default:
		return fmt.Errorf("line %d: command must be a string or a list of strings", node.Line)
	}
}

// Config mirrors the duet.yaml document structure.
type Config struct {
	Version     string   `yaml:"version"`
	StartDelay  Duration `yaml:"startDelay"`
	StopTimeout Duration `yaml:"stopTimeout"`
	Services    Services `yaml:"services"`

	// Source is the absolute path the configuration was loaded from. It is
	// empty when the built-in defaults are in use.
	Source string `yaml:"-"`
}

// Services holds the two supervised children. The backend is always launched
// before the frontend.
type Services struct {
	Backend  *ServiceSpec `yaml:"backend"`
	Frontend *ServiceSpec `yaml:"frontend"`
}

// ServiceSpec describes how to launch a single child process.
type ServiceSpec struct {
	Workdir     string            `yaml:"workdir"`
	Command     Command           `yaml:"command,flow"`
	Env         map[string]string `yaml:"env,omitempty"`
	EnvFromFile string            `yaml:"envFromFile,omitempty"`
	// Endpoint is the host:port the service is expected to listen on. It is
	// reported to the user and never probed.
	Endpoint string `yaml:"endpoint,omitempty"`

	ResolvedWorkdir string `yaml:"-"`
}

// NamedService pairs a service spec with its name.
type NamedService struct {
	Name string
	Spec *ServiceSpec
}

// Ordered returns the services in launch order.
func (c *Config) Ordered() []NamedService {
	return []NamedService{
		{Name: ServiceBackend, Spec: c.Services.Backend},
		{Name: ServiceFrontend, Spec: c.Services.Frontend},
	}
}

// URL renders the informational endpoint as an http URL.
func (s *ServiceSpec) URL() string {
	if s == nil || s.Endpoint == "" {
		return ""
	}
	return "http://" + s.Endpoint
}

// Clone creates a deep copy of the service specification.
func (s *ServiceSpec) Clone() *ServiceSpec {
	if s == nil {
		return nil
	}
	cp := *s
	if len(s.Command) > 0 {
		cp.Command = append(Command(nil), s.Command...)
	}
	if len(s.Env) > 0 {
		cp.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			cp.Env[k] = v
		}
	}
	return &cp
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Services = Services{
		Backend:  c.Services.Backend.Clone(),
		Frontend: c.Services.Frontend.Clone(),
	}
	return &cp
}
