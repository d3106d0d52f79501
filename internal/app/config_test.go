package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ReturnsDefaultsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, "specs", cfg.Specs.Dir)
	require.Equal(t, "plans", cfg.Plans.Dir)
	require.Equal(t, "claude-agent", cfg.Agent.Command)
	require.Equal(t, "cost_optimized", cfg.Run.DefaultModelStrategy)
	require.Equal(t, 3, cfg.Run.MaxRetries)
}

func TestLoadConfig_OverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	toml := `
[agent]
command = "my-agent"

[run]
default_model_strategy = "escalate"
max_retries = 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ralph.toml"), []byte(toml), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, "my-agent", cfg.Agent.Command)
	require.Equal(t, "escalate", cfg.Run.DefaultModelStrategy)
	require.Equal(t, 5, cfg.Run.MaxRetries)
	// fields absent from the override file still fall back to defaults
	require.Equal(t, "specs", cfg.Specs.Dir)
}

func TestLoadConfig_RejectsMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".ralph.toml"), []byte("not valid [ toml"), 0o600))

	_, err := LoadConfig(dir)
	require.Error(t, err)
}
