package commands

import (
	"database/sql"
	"errors"
	"log/slog"

	"github.com/dotcommander/ralph/internal/app"
	"github.com/dotcommander/ralph/internal/output"
	"github.com/dotcommander/ralph/internal/store"
)

// DB is an alias so command code doesn't need to import database/sql.
type DB = sql.DB

// printedError marks an error whose JSON envelope has already been written
// to stdout, so Execute doesn't log or print it a second time.
type printedError struct {
	err error
}

func (e printedError) Error() string { return "error already printed" }

// openDB opens the project database without migrating it. A stale schema
// fails CheckSchemaVersion immediately rather than silently migrating under
// a run that may have been interrupted mid-iteration; `ralph init`/`ralph
// upgrade` are the only commands that call store.MigrateDB directly.
func openDB() (*DB, func(), error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.OpenDB(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := store.CheckSchemaVersion(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, func() { _ = store.CloseDB(db) }, nil
}

func withDB(fn func(db *DB) error) error {
	db, closeDB, err := openDB()
	if err != nil {
		return cmdErr(err)
	}
	defer closeDB()

	if err := fn(db); err != nil {
		return cmdErr(err)
	}
	return nil
}

// cmdErr prints the JSON error envelope (enriching it when err implements
// models.RecoverableError), logs the raw error for operators, and returns a
// sentinel so Execute doesn't print or log it again.
func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	_ = output.PrintError(err)

	attrs := []any{"error", err.Error()}
	type slogAttrError interface{ SlogAttrs() []any }
	var detailed slogAttrError
	if errors.As(err, &detailed) {
		attrs = append(attrs, detailed.SlogAttrs()...)
	}
	slog.Error("command error", attrs...)
	return printedError{err: err}
}
