package config

import "time"

const (
	// CurrentVersion is the only configuration schema version understood.
	CurrentVersion = "1"

	// DefaultFile is looked up in the working directory when no file is given.
	DefaultFile = "duet.yaml"

	DefaultStartDelay  = 5 * time.Second
	DefaultStopTimeout = 2 * time.Second
)

func defaultBackend() *ServiceSpec {
	return &ServiceSpec{
		Workdir:  "agent-zero",
		Command:  Command{"python", "run_ui.py"},
		Endpoint: "localhost:50001",
	}
}

func defaultFrontend() *ServiceSpec {
	return &ServiceSpec{
		Workdir:  "agent-zero/main_ui",
		Command:  Command{"npm", "run", "dev"},
		Endpoint: "localhost:5173",
	}
}

// Default returns the built-in configuration with workdirs still relative.
func Default() *Config {
	return &Config{
		Version:     CurrentVersion,
		StartDelay:  Duration{Duration: DefaultStartDelay},
		StopTimeout: Duration{Duration: DefaultStopTimeout},
		Services: Services{
			Backend:  defaultBackend(),
			Frontend: defaultFrontend(),
		},
	}
}

// ApplyDefaults fills unset fields from the built-in configuration. A service
// block that only overrides some fields keeps the defaults for the rest.
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	if !c.StartDelay.IsSet() {
		c.StartDelay.Duration = DefaultStartDelay
	}
	if !c.StopTimeout.IsSet() {
		c.StopTimeout.Duration = DefaultStopTimeout
	}
	c.Services.Backend = mergeService(c.Services.Backend, defaultBackend())
	c.Services.Frontend = mergeService(c.Services.Frontend, defaultFrontend())
}

func mergeService(svc, def *ServiceSpec) *ServiceSpec {
	if svc == nil {
		return def
	}
	if svc.Workdir == "" {
		svc.Workdir = def.Workdir
	}
	if len(svc.Command) == 0 {
		svc.Command = def.Command
	}
	if svc.Endpoint == "" {
		svc.Endpoint = def.Endpoint
	}
	return svc
}
