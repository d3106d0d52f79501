package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Querier is the common query/exec surface shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transact runs fn in a transaction, retrying transient SQLite errors. All
// writes that must be observed as a single logical unit — a status change
// and its cascading auto-transitions, a dependency insert and its cycle
// check — go through Transact so no other reader ever sees an intermediate
// state (spec.md §5 ordering guarantee).
func Transact(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	return RetryWithBackoff(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}
