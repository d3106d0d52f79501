package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dotcommander/ralph/internal/models"
	"github.com/dotcommander/ralph/internal/output"
	"github.com/dotcommander/ralph/internal/store"
)

// NewTaskCmd creates the task command group.
func NewTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, inspect, and transition tasks in the DAG",
		Args:  cobra.NoArgs,
	}

	cmd.AddCommand(newTaskCreateCmd("add"))
	cmd.AddCommand(newTaskCreateCmd("create"))
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	cmd.AddCommand(newTaskDoneCmd())
	cmd.AddCommand(newTaskFailCmd())
	cmd.AddCommand(newTaskResetCmd())
	cmd.AddCommand(newTaskLogCmd())
	cmd.AddCommand(newTaskDepsCmd())
	cmd.AddCommand(newTaskTreeCmd())
	return cmd
}

func newTaskCreateCmd(use string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: "Create a new task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			title, _ := cmd.Flags().GetString("title")
			desc, _ := cmd.Flags().GetString("desc")
			parentID, _ := cmd.Flags().GetString("parent")
			featureID, _ := cmd.Flags().GetString("feature")
			priority, _ := cmd.Flags().GetInt("priority")
			maxRetries, _ := cmd.Flags().GetInt("max-retries")
			if title == "" {
				return cmdErr(errors.New("--title is required"))
			}

			taskType := models.TaskTypeStandalone
			if featureID != "" {
				taskType = models.TaskTypeFeature
			}

			var task *models.Task
			if err := withDB(func(db *DB) error {
				t, err := store.CreateTask(context.Background(), db, &models.Task{
					Title:       title,
					Description: desc,
					ParentID:    parentID,
					FeatureID:   featureID,
					TaskType:    taskType,
					Priority:    priority,
					MaxRetries:  maxRetries,
				})
				if err != nil {
					return err
				}
				task = t
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(task)
		},
	}
	cmd.Flags().String("title", "", "Task title (required)")
	cmd.Flags().String("desc", "", "Task description")
	cmd.Flags().String("parent", "", "Parent task id")
	cmd.Flags().String("feature", "", "Owning feature id")
	cmd.Flags().Int("priority", 0, "Priority (lower claims first)")
	cmd.Flags().Int("max-retries", 3, "Max retry attempts on failure")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var task *models.Task
			if err := withDB(func(db *DB) error {
				t, err := store.GetTask(context.Background(), db, args[0])
				if err != nil {
					return err
				}
				task = t
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(task)
		},
	}
	return cmd
}

func newTaskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			feature, _ := cmd.Flags().GetString("feature")
			var tasks []*models.Task
			if err := withDB(func(db *DB) error {
				ts, err := store.ListTasks(context.Background(), db, status, feature)
				if err != nil {
					return err
				}
				tasks = ts
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(tasks)
		},
	}
	cmd.Flags().String("status", "", "Filter by status")
	cmd.Flags().String("feature", "", "Filter by feature id")
	return cmd
}

func newTaskUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			if status == "" {
				return cmdErr(errors.New("--status is required"))
			}
			if err := withDB(func(db *DB) error {
				return store.UpdateTaskStatus(context.Background(), db, args[0], models.TaskStatus(status), "")
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string]string{"id": args[0], "status": status})
		},
	}
	cmd.Flags().String("status", "", "New status (pending|in_progress|done|blocked|failed)")
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task (rejected if other tasks still depend on it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := withDB(func(db *DB) error {
				return store.DeleteTask(context.Background(), db, args[0])
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string]string{"id": args[0], "deleted": "true"})
		},
	}
}

func newTaskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := withDB(func(db *DB) error {
				return store.UpdateTaskStatus(context.Background(), db, args[0], models.TaskStatusDone, "")
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string]string{"id": args[0], "status": string(models.TaskStatusDone)})
		},
	}
}

func newTaskFailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fail <id>",
		Short: "Mark a task failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := withDB(func(db *DB) error {
				return store.UpdateTaskStatus(context.Background(), db, args[0], models.TaskStatusFailed, "")
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string]string{"id": args[0], "status": string(models.TaskStatusFailed)})
		},
	}
}

func newTaskResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>",
		Short: "Reset a failed task to pending for retry",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := withDB(func(db *DB) error {
				return store.RetryTask(context.Background(), db, args[0])
			}); err != nil {
				return err
			}
			return output.PrintSuccess(map[string]string{"id": args[0], "status": string(models.TaskStatusPending)})
		},
	}
}

func newTaskLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log <id> [message]",
		Short: "Append a log line to a task, or list its log",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 2 {
				if err := withDB(func(db *DB) error {
					return store.AppendTaskLog(context.Background(), db, args[0], args[1])
				}); err != nil {
					return err
				}
				return output.PrintSuccess(map[string]string{"id": args[0], "logged": "true"})
			}
			var logs []*models.TaskLog
			if err := withDB(func(db *DB) error {
				l, err := store.ListTaskLogs(context.Background(), db, args[0])
				if err != nil {
					return err
				}
				logs = l
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(logs)
		},
	}
	return cmd
}

func newTaskDepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <id>",
		Short: "List a task's blockers and dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			type resp struct {
				Blockers   []string `json:"blockers"`
				Dependents []string `json:"dependents"`
			}
			var r resp
			if err := withDB(func(db *DB) error {
				blockers, err := store.ListDependencies(context.Background(), db, args[0])
				if err != nil {
					return err
				}
				dependents, err := store.ListDependents(context.Background(), db, args[0])
				if err != nil {
					return err
				}
				r = resp{Blockers: blockers, Dependents: dependents}
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(r)
		},
	}
}

func newTaskTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <id>",
		Short: "Show a task and its descendant subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var nodes []*models.Task
			if err := withDB(func(db *DB) error {
				n, err := collectSubtree(context.Background(), db, args[0])
				if err != nil {
					return err
				}
				nodes = n
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(nodes)
		},
	}
}

// collectSubtree walks down from root via ListTasks, filtering by parent
// id level by level; the DAG is shallow enough in practice that this
// avoids a dedicated recursive-CTE query.
func collectSubtree(ctx context.Context, db *DB, rootID string) ([]*models.Task, error) {
	root, err := store.GetTask(ctx, db, rootID)
	if err != nil {
		return nil, err
	}
	all, err := store.ListTasks(ctx, db, "", root.FeatureID)
	if err != nil {
		return nil, err
	}
	byParent := map[string][]*models.Task{}
	for _, t := range all {
		byParent[t.ParentID] = append(byParent[t.ParentID], t)
	}
	var out []*models.Task
	queue := []*models.Task{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		queue = append(queue, byParent[n.ID]...)
	}
	return out, nil
}
