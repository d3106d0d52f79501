package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/ralph/internal/app"
	"github.com/dotcommander/ralph/internal/output"
	"github.com/dotcommander/ralph/internal/store"
)

// NewInitCmd creates PROJECT/.ralph/ and runs migrations against a fresh
// progress.db.
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the .ralph/ state directory in the current project",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return cmdErr(err)
			}
			paths := app.ResolvePaths(cwd)
			if err := paths.EnsureDirs(); err != nil {
				return cmdErr(err)
			}
			db, err := store.InitDBWithPath(paths.DBPath)
			if err != nil {
				return cmdErr(err)
			}
			defer func() { _ = store.CloseDB(db) }()

			type resp struct {
				Root string `json:"root"`
			}
			return output.PrintSuccess(resp{Root: paths.Root})
		},
	}
}
