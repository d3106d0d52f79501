package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// RetryWithBackoff wraps an operation with exponential backoff retry logic.
// Retries on transient SQLite errors (SQLITE_BUSY, SQLITE_LOCKED). Does not
// retry on version conflicts, constraint violations, or DAG errors — those
// signal a real conflict the caller must resolve, not contention.
func RetryWithBackoff(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second
	b.RandomizationFactor = 0.1

	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		err := operation()
		if err == nil {
			return nil
		}
		if isRetryableError(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))
}

// isRetryableError determines if an error should be retried.
//
// Uses typed sqlite.Error code matching first (belt), then string matching as
// a fallback for wrapped errors that may lose the concrete type (suspenders).
func isRetryableError(err error) bool {
	var vce *VersionConflictError
	if errors.As(err, &vce) {
		return false
	}
	var ite *InvalidTransitionError
	if errors.As(err, &ite) {
		return false
	}
	var cde *CycleError
	if errors.As(err, &cde) {
		return false
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		primaryCode := sqliteErr.Code() & 0xFF
		switch primaryCode {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return false
		}
	}

	errStr := err.Error()
	if strings.Contains(errStr, "database is locked") || strings.Contains(errStr, "SQLITE_BUSY") {
		return true
	}
	if strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "FOREIGN KEY constraint") ||
		strings.Contains(errStr, "version conflict") {
		return false
	}

	return false
}

// IsVersionConflict reports whether err represents an optimistic-concurrency
// conflict on a task/feature update.
func IsVersionConflict(err error) bool {
	if err == nil {
		return false
	}
	var vce *VersionConflictError
	return errors.As(err, &vce)
}
