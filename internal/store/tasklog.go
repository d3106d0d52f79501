package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dotcommander/ralph/internal/models"
)

// AppendTaskLog appends a message to a task's log. Append-only by design.
func AppendTaskLog(ctx context.Context, db *sql.DB, taskID, message string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO task_logs (task_id, message, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	`, taskID, message)
	if err != nil {
		return fmt.Errorf("append task log: %w", err)
	}
	return nil
}

// ListTaskLogs returns a task's log entries in chronological order.
func ListTaskLogs(ctx context.Context, db *sql.DB, taskID string) ([]*models.TaskLog, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT task_id, message, created_at FROM task_logs WHERE task_id = ? ORDER BY created_at ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query task logs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []*models.TaskLog
	for rows.Next() {
		var l models.TaskLog
		if err := rows.Scan(&l.TaskID, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task log: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
