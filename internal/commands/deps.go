package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotcommander/ralph/internal/output"
	"github.com/dotcommander/ralph/internal/store"
)

// NewDepsCmd creates the deps command group, managing blocker->blocked
// edges independently of the task command group's read-only `task deps`.
func NewDepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Manage dependency edges between tasks",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newDepsAddCmd())
	cmd.AddCommand(newDepsRmCmd())
	cmd.AddCommand(newDepsListCmd())
	return cmd
}

func newDepsAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <blocker-id> <blocked-id>",
		Short: "Add a dependency edge (blocker must complete before blocked is ready)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := withDB(func(db *DB) error {
				return store.AddDependency(context.Background(), db, args[0], args[1])
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string]string{"blocker_id": args[0], "blocked_id": args[1]})
		},
	}
}

func newDepsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <blocker-id> <blocked-id>",
		Short: "Remove a dependency edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := withDB(func(db *DB) error {
				return store.RemoveDependency(context.Background(), db, args[0], args[1])
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string]string{"blocker_id": args[0], "blocked_id": args[1], "removed": "true"})
		},
	}
}

func newDepsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <id>",
		Short: "List a task's direct blockers",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var blockers []string
			if err := withDB(func(db *DB) error {
				ids, err := store.ListDependencies(context.Background(), db, args[0])
				if err != nil {
					return err
				}
				blockers = ids
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string][]string{"blockers": blockers})
		},
	}
}
