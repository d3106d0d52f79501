// Package app owns process-wide concerns: configuration loading, the
// PROJECT/.ralph/ path layout, and the interrupt flag shared between the
// CLI signal handler and the iteration loop.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the parsed form of PROJECT/.ralph.toml.
type Config struct {
	Specs struct {
		Dir string `toml:"dir"`
	} `toml:"specs"`
	Plans struct {
		Dir string `toml:"dir"`
	} `toml:"plans"`
	Prompts struct {
		Dir string `toml:"dir"`
	} `toml:"prompts"`
	Agent struct {
		Command string `toml:"command"`
	} `toml:"agent"`
	Run struct {
		DefaultModelStrategy string `toml:"default_model_strategy"`
		MaxRetries           int    `toml:"max_retries"`
	} `toml:"run"`
}

// defaultConfig mirrors the teacher's load-or-default-on-missing-file
// behavior: a project with no .ralph.toml still runs with sane defaults.
func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Specs.Dir = "specs"
	cfg.Plans.Dir = "plans"
	cfg.Prompts.Dir = "prompts"
	cfg.Agent.Command = "claude-agent"
	cfg.Run.DefaultModelStrategy = "cost_optimized"
	cfg.Run.MaxRetries = 3
	return cfg
}

// LoadConfig reads PROJECT/.ralph.toml, falling back to defaultConfig when
// the file is absent.
func LoadConfig(projectRoot string) (*Config, error) {
	path := filepath.Join(projectRoot, ".ralph.toml")
	cfg := defaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: projectRoot is a CLI-provided trusted root
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
