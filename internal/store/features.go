package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dotcommander/ralph/internal/models"
)

// CreateFeature inserts a feature with a unique name, retrying ID generation
// on collision.
func CreateFeature(ctx context.Context, db *sql.DB, name, specPath, planPath string) (*models.Feature, error) {
	var created *models.Feature
	err := Transact(ctx, db, func(tx *sql.Tx) error {
		id, err := withRetryableID("f", func(id string) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO features (id, name, spec_path, plan_path, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			`, id, name, specPath, planPath, string(models.FeatureStatusDraft))
			return err
		})
		if err != nil {
			return err
		}
		f, err := getFeatureTx(ctx, tx, id)
		if err != nil {
			return err
		}
		created = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetFeature retrieves a feature by ID.
func GetFeature(ctx context.Context, db *sql.DB, id string) (*models.Feature, error) {
	return getFeatureTx(ctx, db, id)
}

func getFeatureTx(ctx context.Context, q Querier, id string) (*models.Feature, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, spec_path, plan_path, root_task_id, status, created_at, updated_at
		FROM features WHERE id = ?
	`, id)
	f, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feature %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query feature: %w", err)
	}
	return f, nil
}

// GetFeatureByName retrieves a feature by its unique name.
func GetFeatureByName(ctx context.Context, db *sql.DB, name string) (*models.Feature, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, spec_path, plan_path, root_task_id, status, created_at, updated_at
		FROM features WHERE name = ?
	`, name)
	f, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feature %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query feature: %w", err)
	}
	return f, nil
}

// ListFeatures returns all features ordered by creation time.
func ListFeatures(ctx context.Context, db *sql.DB) ([]*models.Feature, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, spec_path, plan_path, root_task_id, status, created_at, updated_at
		FROM features ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []*models.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateFeatureStatus sets a feature's status directly (used by the feature
// pipeline's phase transitions, which are driven by the pipeline rather than
// the task-status cascade).
func UpdateFeatureStatus(ctx context.Context, db *sql.DB, id string, status models.FeatureStatus) error {
	res, err := db.ExecContext(ctx, `UPDATE features SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update feature status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("feature %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetFeatureRootTask records the feature's root task once the plan phase
// creates the task subtree.
func SetFeatureRootTask(ctx context.Context, db *sql.DB, featureID, rootTaskID string) error {
	_, err := db.ExecContext(ctx, `UPDATE features SET root_task_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, rootTaskID, featureID)
	if err != nil {
		return fmt.Errorf("set feature root task: %w", err)
	}
	return nil
}

// DeleteFeature removes a feature and cascades to every task with that
// feature_id and their dependencies, logs, and journal rows (spec.md §3.2
// "Feature task ownership"). Other tasks are untouched.
func DeleteFeature(ctx context.Context, db *sql.DB, featureID string) error {
	return Transact(ctx, db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM tasks WHERE feature_id = ?`, featureID)
		if err != nil {
			return fmt.Errorf("query feature tasks: %w", err)
		}
		var taskIDs []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan task id: %w", err)
			}
			taskIDs = append(taskIDs, id)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		_ = rows.Close()

		for _, id := range taskIDs {
			if _, err := tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE task_id = ?`, id); err != nil {
				return fmt.Errorf("delete journal entries for task %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM task_logs WHERE task_id = ?`, id); err != nil {
				return fmt.Errorf("delete task logs for task %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM dependencies WHERE blocker_id = ? OR blocked_id = ?`, id, id); err != nil {
				return fmt.Errorf("delete dependencies for task %s: %w", id, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE feature_id = ?`, featureID); err != nil {
			return fmt.Errorf("delete feature journal entries: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE feature_id = ?`, featureID); err != nil {
			return fmt.Errorf("delete feature tasks: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM features WHERE id = ?`, featureID)
		if err != nil {
			return fmt.Errorf("delete feature: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("feature %s: %w", featureID, ErrNotFound)
		}
		return nil
	})
}

func scanFeature(row rowScanner) (*models.Feature, error) {
	var f models.Feature
	var specPath, planPath, rootTaskID sql.NullString
	err := row.Scan(&f.ID, &f.Name, &specPath, &planPath, &rootTaskID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.SpecPath = specPath.String
	f.PlanPath = planPath.String
	f.RootTaskID = rootTaskID.String
	return &f, nil
}
