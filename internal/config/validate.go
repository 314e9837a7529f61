package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/docker/go-connections/nat"
)

// Validate enforces semantic invariants that the schema cannot express.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported version %q (expected %q)", c.Version, CurrentVersion)
	}
	if c.StartDelay.Duration < 0 {
		return fmt.Errorf("startDelay must not be negative")
	}
	if c.StopTimeout.Duration < 0 {
		return fmt.Errorf("stopTimeout must not be negative")
	}

	claimed := map[int]string{}
	for _, named := range c.Ordered() {
		svc := named.Spec
		if svc == nil {
			return fmt.Errorf("services.%s is required", named.Name)
		}
		if len(svc.Command) == 0 || strings.TrimSpace(svc.Command[0]) == "" {
			return fmt.Errorf("%s: command is required", serviceField(named.Name, "command"))
		}
		if svc.Endpoint == "" {
			continue
		}
		host, port, err := parseEndpoint(svc.Endpoint)
		if err != nil {
			return fmt.Errorf("%s: %w", serviceField(named.Name, "endpoint"), err)
		}
		if other, ok := claimed[port]; ok {
			return fmt.Errorf("%s: port %d on %q is already claimed by %s", serviceField(named.Name, "endpoint"), port, host, other)
		}
		claimed[port] = named.Name
	}
	return nil
}

func parseEndpoint(endpoint string) (string, int, error) {
	host, rawPort, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	port, err := nat.ParsePort(rawPort)
	if err != nil {
		return "", 0, fmt.Errorf("invalid endpoint port %q: %w", rawPort, err)
	}
	if port == 0 {
		return "", 0, fmt.Errorf("invalid endpoint port %q: must be between 1 and 65535", rawPort)
	}
	return host, port, nil
}
