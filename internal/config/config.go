// Package config loads and validates the crosstalk.yml document manifest:
// which datasets a document binds, how their keys are derived, which groups
// link them, and optional serve/bridge settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level crosstalk.yml configuration.
type Config struct {
	Version  string             `yaml:"version"`
	Datasets map[string]Dataset `yaml:"datasets"`
	Serve    *ServeConfig       `yaml:"serve,omitempty"`
	Bridge   *BridgeConfig      `yaml:"bridge,omitempty"`
}

// Dataset declares one dataset binding: a CSV file, the group it links into
// and how its row keys are derived.
type Dataset struct {
	Path  string   `yaml:"path"`
	Group string   `yaml:"group,omitempty"` // empty means a fresh unlinked group
	Key   *KeySpec `yaml:"key,omitempty"`   // nil means default keys
}

// KeySpec selects exactly one key derivation form for a dataset.
type KeySpec struct {
	Column   string   `yaml:"column,omitempty"`
	Explicit []string `yaml:"explicit,omitempty"`
}

// ServeConfig specifies the websocket sync server.
type ServeConfig struct {
	Addr string `yaml:"addr,omitempty"` // default ":8331"
}

// BridgeConfig specifies the optional Redis mirror.
type BridgeConfig struct {
	Addr     string `yaml:"addr"`     // Redis address, e.g. "localhost:6379"
	Document string `yaml:"document"` // namespace shared by mirrored processes
}

// DefaultServeAddr is used when serve.addr is not set.
const DefaultServeAddr = ":8331"

// Load reads, parses and validates a crosstalk.yml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if len(c.Datasets) == 0 {
		return fmt.Errorf("no datasets defined")
	}

	for name, ds := range c.Datasets {
		if ds.Path == "" {
			return fmt.Errorf("dataset %q: path is required", name)
		}
		if ds.Key != nil {
			if ds.Key.Column != "" && len(ds.Key.Explicit) > 0 {
				return fmt.Errorf("dataset %q: key must set either column or explicit, not both", name)
			}
			if ds.Key.Column == "" && len(ds.Key.Explicit) == 0 {
				return fmt.Errorf("dataset %q: key must set column or explicit", name)
			}
		}
	}

	if c.Bridge != nil {
		if c.Bridge.Addr == "" {
			return fmt.Errorf("bridge: addr is required")
		}
		if c.Bridge.Document == "" {
			return fmt.Errorf("bridge: document is required")
		}
	}

	return nil
}

// ServeAddr returns the configured serve address or the default.
func (c *Config) ServeAddr() string {
	if c.Serve != nil && c.Serve.Addr != "" {
		return c.Serve.Addr
	}
	return DefaultServeAddr
}
