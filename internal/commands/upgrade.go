package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/ralph/internal/app"
	"github.com/dotcommander/ralph/internal/output"
	"github.com/dotcommander/ralph/internal/store"
)

// NewUpgradeCmd creates the upgrade command: applies pending migrations to
// an existing project database.
func NewUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dbPath, err := app.GetDBPath()
			if err != nil {
				return cmdErr(err)
			}
			db, err := store.OpenDB(dbPath)
			if err != nil {
				return cmdErr(err)
			}
			defer func() { _ = store.CloseDB(db) }()

			before, _, err := store.SchemaVersion(db)
			if err != nil {
				return cmdErr(err)
			}
			if err := store.MigrateDB(db, dbPath); err != nil {
				return cmdErr(err)
			}
			after, latest, err := store.SchemaVersion(db)
			if err != nil {
				return cmdErr(err)
			}

			return output.PrintSuccess(map[string]int64{
				"from":   before,
				"to":     after,
				"latest": latest,
			})
		},
	}
}
