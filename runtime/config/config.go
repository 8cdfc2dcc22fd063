// Package config loads the service configuration document: downstream service
// base URLs with their auth specs, and the secret resolution maps. Parsed once
// at startup and read-only thereafter.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/intermesh-io/intermesh/runtime/secrets"
)

type (
	// Service describes one downstream system reachable over HTTP.
	Service struct {
		// BaseURL is prepended to relative tool URLs routed to this service.
		BaseURL string `yaml:"base_url"`
		// Auth is a "<kind>:<secret_key>" spec with kind bearer or basic.
		Auth string `yaml:"auth"`
	}

	// Config is the full service configuration document.
	Config struct {
		Services map[string]Service `yaml:"services"`
		Secrets  secrets.Config     `yaml:"secrets"`
	}
)

// Load parses the configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &c, nil
}

// Service returns the named service entry, or a zero entry when absent.
func (c *Config) Service(name string) Service {
	if c == nil {
		return Service{}
	}
	return c.Services[name]
}
