package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AddDependency inserts edge (blockerID -> blockedID) after rejecting
// self-edges and cycles, per spec.md §3.2/§4.2.
func AddDependency(ctx context.Context, db *sql.DB, blockerID, blockedID string) error {
	if blockerID == blockedID {
		return &SelfEdgeError{TaskID: blockerID}
	}
	return Transact(ctx, db, func(tx *sql.Tx) error {
		path, found, err := bfsReaches(ctx, tx, blockedID, blockerID)
		if err != nil {
			return err
		}
		if found {
			return &CycleError{BlockerID: blockerID, BlockedID: blockedID, Path: path}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO dependencies (blocker_id, blocked_id, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		`, blockerID, blockedID)
		if err != nil {
			if isUniqueConstraintError(err) {
				return nil // edge already exists, idempotent
			}
			return fmt.Errorf("insert dependency: %w", err)
		}
		return nil
	})
}

// bfsReaches reports whether target is reachable from start by following
// existing blocker->blocked edges forward, i.e. whether adding edge
// (target -> start) would close a cycle. Returns the discovered path for
// diagnostics.
func bfsReaches(ctx context.Context, tx *sql.Tx, start, target string) ([]string, bool, error) {
	visited := map[string]bool{start: true}
	queue := []string{start}
	parent := map[string]string{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return reconstructPath(parent, start, target), true, nil
		}
		next, err := blockedByTx(ctx, tx, cur)
		if err != nil {
			return nil, false, err
		}
		for _, n := range next {
			if !visited[n] {
				visited[n] = true
				parent[n] = cur
				queue = append(queue, n)
			}
		}
	}
	return nil, false, nil
}

func reconstructPath(parent map[string]string, start, target string) []string {
	var path []string
	cur := target
	for cur != start {
		path = append([]string{cur}, path...)
		p, ok := parent[cur]
		if !ok {
			break
		}
		cur = p
	}
	return append([]string{start}, path...)
}

// RemoveDependency deletes an edge if present. No error if absent.
func RemoveDependency(ctx context.Context, db *sql.DB, blockerID, blockedID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM dependencies WHERE blocker_id = ? AND blocked_id = ?`, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("delete dependency: %w", err)
	}
	return nil
}

// ListDependencies returns the direct blockers of a task.
func ListDependencies(ctx context.Context, db *sql.DB, blockedID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT blocker_id FROM dependencies WHERE blocked_id = ? ORDER BY created_at ASC`, blockedID)
	if err != nil {
		return nil, fmt.Errorf("query dependencies: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListDependents returns the tasks directly blocked by blockerID.
func ListDependents(ctx context.Context, db *sql.DB, blockerID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT blocked_id FROM dependencies WHERE blocker_id = ? ORDER BY created_at ASC`, blockerID)
	if err != nil {
		return nil, fmt.Errorf("query dependents: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dependent: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
