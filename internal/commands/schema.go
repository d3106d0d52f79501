package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/ralph/internal/app"
	"github.com/dotcommander/ralph/internal/output"
	"github.com/dotcommander/ralph/internal/store"
)

// NewSchemaCmd creates the schema command: reports the current and latest
// migration versions. Deliberately bypasses withDB's CheckSchemaVersion gate
// so it can report a stale database's status instead of erroring on it.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show the database schema version",
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

			current, latest, err := store.SchemaVersion(db)
			if err != nil {
				return cmdErr(err)
			}

			type resp struct {
				Current  int64 `json:"current"`
				Latest   int64 `json:"latest"`
				UpToDate bool  `json:"up_to_date"`
			}
			return output.PrintSuccess(resp{Current: current, Latest: latest, UpToDate: current == latest})
		},
	}
}
