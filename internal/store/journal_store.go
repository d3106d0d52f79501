package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dotcommander/ralph/internal/models"
)

// AppendJournalEntry inserts one append-only journal row. The journal_fts
// virtual table is kept in sync by triggers (migration 00005).
func AppendJournalEntry(ctx context.Context, db *sql.DB, e *models.JournalEntry) (int64, error) {
	filesJSON, err := json.Marshal(e.FilesModified)
	if err != nil {
		return 0, fmt.Errorf("marshal files_modified: %w", err)
	}
	var id int64
	err = Transact(ctx, db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO journal_entries (run_id, iteration, task_id, feature_id, outcome, model, duration_secs, cost_usd, files_modified, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		`, e.RunID, e.Iteration, nullable(e.TaskID), nullable(e.FeatureID), string(e.Outcome), e.Model, e.DurationSecs, e.CostUSD, string(filesJSON), e.Notes)
		if err != nil {
			return fmt.Errorf("insert journal entry: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RecentJournalEntries returns up to limit most-recent entries for a run,
// newest first, for the journal's recency component of retrieval.
func RecentJournalEntries(ctx context.Context, db *sql.DB, runID string, limit int) ([]*models.JournalEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, run_id, iteration, task_id, feature_id, outcome, model, duration_secs, cost_usd, files_modified, notes, created_at
		FROM journal_entries WHERE run_id = ? ORDER BY iteration DESC LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent journal entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanJournalRows(rows)
}

// SearchJournalEntries runs a full-text query over notes via journal_fts and
// returns matching entries ordered by rank (best match first), capped at
// limit. Used by the journal's FTS retrieval component alongside recency.
func SearchJournalEntries(ctx context.Context, db *sql.DB, query string, limit int) ([]*models.JournalEntry, error) {
	if query == "" {
		return nil, nil
	}
	rows, err := db.QueryContext(ctx, `
		SELECT j.id, j.run_id, j.iteration, j.task_id, j.feature_id, j.outcome, j.model,
		       j.duration_secs, j.cost_usd, j.files_modified, j.notes, j.created_at
		FROM journal_fts f
		JOIN journal_entries j ON j.id = f.rowid
		WHERE journal_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search journal entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanJournalRows(rows)
}

func scanJournalRows(rows *sql.Rows) ([]*models.JournalEntry, error) {
	var out []*models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		var taskID, featureID sql.NullString
		var filesJSON string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Iteration, &taskID, &featureID, &e.Outcome, &e.Model,
			&e.DurationSecs, &e.CostUSD, &filesJSON, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.TaskID = taskID.String
		e.FeatureID = featureID.String
		if filesJSON != "" {
			if err := json.Unmarshal([]byte(filesJSON), &e.FilesModified); err != nil {
				return nil, fmt.Errorf("unmarshal files_modified: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
