//go:build !tinygo

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load parses a YAML configuration. Fields missing from data keep their
// Default() values.
func Load(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and parses the YAML configuration at path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Load(data)
}

// Marshal renders cfg as YAML
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
