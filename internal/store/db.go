// Package store provides durable SQLite-backed persistence for the task DAG,
// features, journal, and task logs, with schema migrations and cycle-safe
// dependency management.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// defaultBusyTimeoutMS is the SQLite busy_timeout in milliseconds.
// Override with RALPH_BUSY_TIMEOUT_MS for environments with high contention.
const defaultBusyTimeoutMS = 5000

// validCheckpointModes is the allowlist of accepted WAL checkpoint modes.
var validCheckpointModes = map[string]bool{
	"PASSIVE":  true,
	"FULL":     true,
	"TRUNCATE": true,
	"RESTART":  true,
}

// OpenDB opens a database connection and configures SQLite pragmas, but does
// NOT run migrations. Pair with MigrateDB (or CheckSchemaVersion for
// production commands that expect migrations to already be applied).
func OpenDB(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if dir := dirOf(dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", normalizeSQLiteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: SQLite concurrency is handled via WAL + busy_timeout,
	// not a Go-level connection pool. Matches the CLI/single-process scale of
	// one ralph run at a time against one project's .ralph/progress.db.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busyTimeout := defaultBusyTimeoutMS
	if v := os.Getenv("RALPH_BUSY_TIMEOUT_MS"); v != "" {
		if parsed, parseErr := strconv.Atoi(v); parseErr == nil && parsed > 0 {
			busyTimeout = parsed
		}
	}

	pragmas := []string{
		// busy_timeout first so subsequent pragmas (including WAL) wait on locks.
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA journal_mode=WAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := RetryWithBackoff(context.Background(), func() error {
			_, execErr := db.ExecContext(context.Background(), pragma)
			return execErr
		}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	return db, nil
}

// InitDBWithPath opens a database and runs migrations. Used by tests and the
// `ralph init` command. Long-running commands should use OpenDB plus
// CheckSchemaVersion so a stale-schema run fails fast instead of silently
// migrating under an interrupted agent.
func InitDBWithPath(dbPath string) (*sql.DB, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := MigrateDB(db, dbPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// CheckSchemaVersion verifies the database schema is up to date.
func CheckSchemaVersion(db *sql.DB) error {
	current, latest, err := SchemaVersion(db)
	if err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}
	if current < latest {
		return fmt.Errorf("schema version %d, expected %d: run 'ralph upgrade' to apply migrations", current, latest)
	}
	return nil
}

// CloseDB runs PRAGMA optimize then closes the connection.
func CloseDB(db *sql.DB) error {
	_, _ = db.ExecContext(context.Background(), "PRAGMA optimize")
	return db.Close()
}

// CheckpointWAL triggers a WAL checkpoint. mode must be one of PASSIVE, FULL,
// TRUNCATE, RESTART.
func CheckpointWAL(ctx context.Context, db *sql.DB, mode string) error {
	if !validCheckpointModes[mode] {
		return fmt.Errorf("invalid WAL checkpoint mode %q: must be one of PASSIVE, FULL, TRUNCATE, RESTART", mode)
	}
	_, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint("+mode+")")
	return err
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func normalizeSQLiteDSN(dbPath string) string {
	if strings.HasPrefix(dbPath, "file:") {
		if strings.Contains(dbPath, ":memory:") {
			return dbPath
		}
		if strings.Contains(dbPath, "_txlock=") {
			return dbPath
		}
		if strings.Contains(dbPath, "?") {
			return dbPath + "&_txlock=immediate"
		}
		return dbPath + "?_txlock=immediate"
	}

	if dbPath == ":memory:" {
		return "file::memory:?cache=shared"
	}

	// mode=rwc => read/write/create; without it some environments open read-only.
	return "file:" + dbPath + "?mode=rwc&_txlock=immediate"
}
