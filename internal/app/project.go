package app

import (
	"fmt"
	"os"
)

// dbPathOverride lets the --db-path flag bypass the standard .ralph/
// layout, mirroring the teacher's override hook for test harnesses and
// multi-project setups.
var dbPathOverride string

// SetDBPathOverride sets a process-wide database path override.
func SetDBPathOverride(path string) { dbPathOverride = path }

// GetDBPath resolves the database path: the override if set, otherwise
// PROJECT/.ralph/progress.db rooted at the current working directory.
func GetDBPath() (string, error) {
	if dbPathOverride != "" {
		return dbPathOverride, nil
	}
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determine working directory: %w", err)
	}
	return ResolvePaths(root).DBPath, nil
}

// EnsureConfigDir creates the PROJECT/.ralph/ directory layout rooted at
// the current working directory.
func EnsureConfigDir() error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	return ResolvePaths(root).EnsureDirs()
}
