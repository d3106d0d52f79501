package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dotcommander/ralph/internal/models"
)

// validTransitions enumerates spec.md §4.2's allowed (from, to) status pairs.
var validTransitions = map[models.TaskStatus]map[models.TaskStatus]bool{
	models.TaskStatusPending:    {models.TaskStatusInProgress: true, models.TaskStatusBlocked: true},
	models.TaskStatusInProgress: {models.TaskStatusDone: true, models.TaskStatusFailed: true, models.TaskStatusPending: true},
	models.TaskStatusBlocked:    {models.TaskStatusPending: true},
	models.TaskStatusFailed:     {models.TaskStatusPending: true},
	models.TaskStatusDone:       {models.TaskStatusFailed: true}, // verification revert, see loop.runVerification
}

// CreateTask inserts a new task, retrying ID generation on collision.
func CreateTask(ctx context.Context, db *sql.DB, t *models.Task) (*models.Task, error) {
	var created *models.Task
	err := Transact(ctx, db, func(tx *sql.Tx) error {
		id, err := withRetryableID("t", func(id string) error {
			return insertTaskTx(ctx, tx, id, t)
		})
		if err != nil {
			return err
		}
		got, err := getTaskTx(ctx, tx, id)
		if err != nil {
			return err
		}
		created = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func insertTaskTx(ctx context.Context, tx *sql.Tx, id string, t *models.Task) error {
	status := t.Status
	if status == "" {
		status = models.TaskStatusPending
	}
	taskType := t.TaskType
	if taskType == "" {
		taskType = models.TaskTypeStandalone
	}
	maxRetries := t.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, parent_id, feature_id, task_type, priority, max_retries, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, id, t.Title, t.Description, string(status), nullable(t.ParentID), nullable(t.FeatureID), string(taskType), t.Priority, maxRetries)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID with its stored (non-derived) status.
func GetTask(ctx context.Context, db *sql.DB, id string) (*models.Task, error) {
	return getTaskByQuerier(ctx, db, id)
}

func getTaskTx(ctx context.Context, tx *sql.Tx, id string) (*models.Task, error) {
	return getTaskByQuerier(ctx, tx, id)
}

func getTaskByQuerier(ctx context.Context, q Querier, id string) (*models.Task, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, title, description, status, parent_id, feature_id, task_type, priority,
		       retry_count, max_retries, verification_status, claimed_by, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return t, nil
}

// DerivedStatus computes a task's effective status following spec.md §4.2:
// for a task with children, failed > done > in_progress > pending over the
// children's own derived statuses; leaves return their stored status.
func DerivedStatus(ctx context.Context, db *sql.DB, id string) (models.TaskStatus, error) {
	return derivedStatusQuerier(ctx, db, id)
}

func derivedStatusQuerier(ctx context.Context, q Querier, id string) (models.TaskStatus, error) {
	t, err := getTaskByQuerier(ctx, q, id)
	if err != nil {
		return "", err
	}
	childIDs, err := childIDsOf(ctx, q, id)
	if err != nil {
		return "", err
	}
	if len(childIDs) == 0 {
		return t.Status, nil
	}

	sawFailed, sawInProgress, allDone := false, false, true
	for _, cid := range childIDs {
		cs, err := derivedStatusQuerier(ctx, q, cid)
		if err != nil {
			return "", err
		}
		switch cs {
		case models.TaskStatusFailed:
			sawFailed = true
		case models.TaskStatusInProgress:
			sawInProgress = true
			allDone = false
		case models.TaskStatusDone:
			// no-op
		default:
			allDone = false
		}
	}
	switch {
	case sawFailed:
		return models.TaskStatusFailed, nil
	case allDone:
		return models.TaskStatusDone, nil
	case sawInProgress:
		return models.TaskStatusInProgress, nil
	default:
		return models.TaskStatusPending, nil
	}
}

func childIDsOf(ctx context.Context, q Querier, parentID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM tasks WHERE parent_id = ?`, parentID)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan child id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateTaskStatus applies a validated transition and fires the spec.md
// §4.2 auto-transition cascade inside the same transaction.
func UpdateTaskStatus(ctx context.Context, db *sql.DB, taskID string, to models.TaskStatus, claimedBy string) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		cur, err := getTaskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if !validTransitions[cur.Status][to] {
			return &InvalidTransitionError{TaskID: taskID, From: cur.Status, To: to}
		}

		var claimedVal any
		switch to {
		case models.TaskStatusInProgress:
			claimedVal = nullable(claimedBy)
		case models.TaskStatusPending, models.TaskStatusBlocked:
			claimedVal = nil
		default:
			claimedVal = nullable(cur.ClaimedBy)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, claimed_by = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?
		`, string(to), claimedVal, taskID, string(cur.Status))
		if err != nil {
			return fmt.Errorf("update task status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return &VersionConflictError{Entity: "task", ID: taskID}
		}

		switch to {
		case models.TaskStatusDone:
			return applyDoneCascadeTx(ctx, tx, cur)
		case models.TaskStatusFailed:
			return applyFailedCascadeTx(ctx, tx, cur)
		}
		return nil
	})
}

func applyDoneCascadeTx(ctx context.Context, tx *sql.Tx, t *models.Task) error {
	blockedIDs, err := blockedByTx(ctx, tx, t.ID)
	if err != nil {
		return err
	}
	for _, blockedID := range blockedIDs {
		blocked, err := getTaskTx(ctx, tx, blockedID)
		if err != nil {
			return err
		}
		if blocked.Status != models.TaskStatusBlocked {
			continue
		}
		ok, err := allBlockersDoneTx(ctx, tx, blockedID)
		if err != nil {
			return err
		}
		if ok {
			if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				string(models.TaskStatusPending), blockedID); err != nil {
				return fmt.Errorf("release blocked task %s: %w", blockedID, err)
			}
		}
	}

	if t.ParentID != "" {
		siblingIDs, err := childIDsOf(ctx, tx, t.ParentID)
		if err != nil {
			return err
		}
		allDone := true
		for _, sid := range siblingIDs {
			s, err := getTaskTx(ctx, tx, sid)
			if err != nil {
				return err
			}
			if s.Status != models.TaskStatusDone {
				allDone = false
				break
			}
		}
		if allDone {
			parent, err := getTaskTx(ctx, tx, t.ParentID)
			if err != nil {
				return err
			}
			if parent.Status != models.TaskStatusDone {
				if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
					string(models.TaskStatusDone), t.ParentID); err != nil {
					return fmt.Errorf("cascade parent done: %w", err)
				}
				if err := applyDoneCascadeTx(ctx, tx, parent); err != nil {
					return err
				}
			}
		}
	}

	if t.FeatureID != "" {
		if err := maybeFinishFeatureTx(ctx, tx, t.FeatureID); err != nil {
			return err
		}
	}
	return nil
}

func applyFailedCascadeTx(ctx context.Context, tx *sql.Tx, t *models.Task) error {
	if t.ParentID != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status != ?`,
			string(models.TaskStatusFailed), t.ParentID, string(models.TaskStatusFailed)); err != nil {
			return fmt.Errorf("cascade parent failed: %w", err)
		}
		parent, err := getTaskTx(ctx, tx, t.ParentID)
		if err != nil {
			return err
		}
		if err := applyFailedCascadeTx(ctx, tx, parent); err != nil {
			return err
		}
	}
	if t.FeatureID != "" {
		if err := maybeFinishFeatureTx(ctx, tx, t.FeatureID); err != nil {
			return err
		}
	}
	return nil
}

func maybeFinishFeatureTx(ctx context.Context, tx *sql.Tx, featureID string) error {
	rows, err := tx.QueryContext(ctx, `SELECT status FROM tasks WHERE feature_id = ?`, featureID)
	if err != nil {
		return fmt.Errorf("query feature tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	total, done, terminal := 0, 0, 0
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return fmt.Errorf("scan feature task status: %w", err)
		}
		total++
		status := models.TaskStatus(s)
		if status.IsTerminal() {
			terminal++
		}
		if status == models.TaskStatusDone {
			done++
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if total == 0 {
		return nil
	}
	switch {
	case done == total:
		_, err = tx.ExecContext(ctx, `UPDATE features SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			string(models.FeatureStatusDone), featureID)
	case terminal == total:
		_, err = tx.ExecContext(ctx, `UPDATE features SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			string(models.FeatureStatusFailed), featureID)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("update feature status: %w", err)
	}
	return nil
}

func allBlockersDoneTx(ctx context.Context, tx *sql.Tx, taskID string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT t.status FROM dependencies d JOIN tasks t ON t.id = d.blocker_id WHERE d.blocked_id = ?
	`, taskID)
	if err != nil {
		return false, fmt.Errorf("query blockers: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return false, fmt.Errorf("scan blocker status: %w", err)
		}
		if models.TaskStatus(s) != models.TaskStatusDone {
			return false, nil
		}
	}
	return true, rows.Err()
}

func blockedByTx(ctx context.Context, tx *sql.Tx, blockerID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT blocked_id FROM dependencies WHERE blocker_id = ?`, blockerID)
	if err != nil {
		return nil, fmt.Errorf("query dependents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dependent id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimNextReady claims the highest-priority ready task for claimedBy,
// following spec.md §4.2's ready-set definition and claim protocol. Returns
// ErrNotFound if no task is ready.
func ClaimNextReady(ctx context.Context, db *sql.DB, claimedBy string) (*models.Task, error) {
	var claimed *models.Task
	err := Transact(ctx, db, func(tx *sql.Tx) error {
		ids, err := readySetIDsTx(ctx, tx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return ErrNotFound
		}
		id := ids[0]
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, claimed_by = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?
		`, string(models.TaskStatusInProgress), claimedBy, id, string(models.TaskStatusPending))
		if err != nil {
			return fmt.Errorf("claim task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &VersionConflictError{Entity: "task", ID: id}
		}
		got, err := getTaskTx(ctx, tx, id)
		if err != nil {
			return err
		}
		claimed = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ReadySetIDs returns the ready-set task IDs ordered by (priority ASC,
// created_at ASC), per spec.md §4.2.
func ReadySetIDs(ctx context.Context, db *sql.DB) ([]string, error) {
	return readySetIDsTx(ctx, db)
}

func readySetIDsTx(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT t.id FROM tasks t
		WHERE t.status = ?
		  AND NOT EXISTS (
		      SELECT 1 FROM tasks c WHERE c.id = t.id AND EXISTS (SELECT 1 FROM tasks WHERE parent_id = c.id)
		  )
		  AND (t.parent_id IS NULL OR (SELECT status FROM tasks WHERE id = t.parent_id) != ?)
		  AND NOT EXISTS (
		      SELECT 1 FROM dependencies d JOIN tasks b ON b.id = d.blocker_id
		      WHERE d.blocked_id = t.id AND b.status != ?
		  )
		ORDER BY t.priority ASC, t.created_at ASC
	`, string(models.TaskStatusPending), string(models.TaskStatusFailed), string(models.TaskStatusDone))
	if err != nil {
		return nil, fmt.Errorf("query ready set: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ready id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReleaseTask reverts a claimed task back to pending, clearing claimed_by.
func ReleaseTask(ctx context.Context, db *sql.DB, taskID string) error {
	return UpdateTaskStatus(ctx, db, taskID, models.TaskStatusPending, "")
}

// AppendTaskDescription appends text to a task's description, used to fold
// interrupt-time user feedback into the next iteration's prompt.
func AppendTaskDescription(ctx context.Context, db *sql.DB, taskID, suffix string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE tasks SET description = description || ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, suffix, taskID)
	if err != nil {
		return fmt.Errorf("append task description: %w", err)
	}
	return nil
}

// ListTasks retrieves tasks, optionally filtered by status and feature.
func ListTasks(ctx context.Context, db *sql.DB, statusFilter string, featureFilter string) ([]*models.Task, error) {
	query := `
		SELECT id, title, description, status, parent_id, feature_id, task_type, priority,
		       retry_count, max_retries, verification_status, claimed_by, created_at, updated_at
		FROM tasks WHERE 1=1`
	var args []any
	if statusFilter != "" {
		query += ` AND status = ?`
		args = append(args, statusFilter)
	}
	if featureFilter != "" {
		query += ` AND feature_id = ?`
		args = append(args, featureFilter)
	}
	query += ` ORDER BY priority ASC, created_at ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DeleteTask removes a task, rejecting the delete if any other task still
// lists it as a blocker (spec.md §3.3).
func DeleteTask(ctx context.Context, db *sql.DB, taskID string) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		dependents, err := blockedByTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if len(dependents) > 0 {
			return &BlockedByDependentsError{TaskID: taskID, Dependents: dependents}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		return nil
	})
}

// RetryTask increments retry_count and resets a failed task to pending, for
// use by the iteration loop's retry policy.
func RetryTask(ctx context.Context, db *sql.DB, taskID string) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		t, err := getTaskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if !validTransitions[t.Status][models.TaskStatusPending] {
			return &InvalidTransitionError{TaskID: taskID, From: t.Status, To: models.TaskStatusPending}
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, retry_count = retry_count + 1, claimed_by = NULL, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, string(models.TaskStatusPending), taskID)
		if err != nil {
			return fmt.Errorf("retry task: %w", err)
		}
		return nil
	})
}

// SetVerificationStatus records the verification outcome for a task.
func SetVerificationStatus(ctx context.Context, db *sql.DB, taskID string, status models.VerificationStatus) error {
	_, err := db.ExecContext(ctx, `UPDATE tasks SET verification_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		nullable(string(status)), taskID)
	if err != nil {
		return fmt.Errorf("set verification status: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var parentID, featureID, verificationStatus, claimedBy sql.NullString
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &parentID, &featureID, &t.TaskType, &t.Priority,
		&t.RetryCount, &t.MaxRetries, &verificationStatus, &claimedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.ParentID = parentID.String
	t.FeatureID = featureID.String
	t.VerificationStatus = models.VerificationStatus(verificationStatus.String)
	t.ClaimedBy = claimedBy.String
	return &t, nil
}

func nullable(s string) any {
	if s == "" || s == "<nil>" {
		return nil
	}
	return s
}
