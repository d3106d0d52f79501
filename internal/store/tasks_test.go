package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dotcommander/ralph/internal/models"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustCreateTask(t *testing.T, ctx context.Context, db *sql.DB, title string) *models.Task {
	t.Helper()
	task, err := CreateTask(ctx, db, &models.Task{Title: title})
	require.NoError(t, err)
	return task
}

func TestClaimNextReady_RespectsDependencies(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	blocker := mustCreateTask(t, ctx, db, "blocker")
	blocked := mustCreateTask(t, ctx, db, "blocked")
	require.NoError(t, AddDependency(ctx, db, blocker.ID, blocked.ID))

	claimed, err := ClaimNextReady(ctx, db, "run-1")
	require.NoError(t, err)
	require.Equal(t, blocker.ID, claimed.ID, "only the unblocked task should be claimable")

	_, err = ClaimNextReady(ctx, db, "run-1")
	require.ErrorIs(t, err, ErrNotFound, "blocked task must not appear in the ready set")
}

func TestUpdateTaskStatus_DoneCascadesReleasesDependent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	blocker := mustCreateTask(t, ctx, db, "blocker")
	blocked := mustCreateTask(t, ctx, db, "blocked")
	require.NoError(t, AddDependency(ctx, db, blocker.ID, blocked.ID))
	require.NoError(t, UpdateTaskStatus(ctx, db, blocked.ID, models.TaskStatusBlocked, ""))

	require.NoError(t, UpdateTaskStatus(ctx, db, blocker.ID, models.TaskStatusInProgress, "run-1"))
	require.NoError(t, UpdateTaskStatus(ctx, db, blocker.ID, models.TaskStatusDone, "run-1"))

	got, err := GetTask(ctx, db, blocked.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, got.Status)
}

func TestUpdateTaskStatus_FailedCascadesToParent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	parent, err := CreateTask(ctx, db, &models.Task{Title: "parent"})
	require.NoError(t, err)
	child, err := CreateTask(ctx, db, &models.Task{Title: "child", ParentID: parent.ID})
	require.NoError(t, err)

	require.NoError(t, UpdateTaskStatus(ctx, db, child.ID, models.TaskStatusInProgress, "run-1"))
	require.NoError(t, UpdateTaskStatus(ctx, db, child.ID, models.TaskStatusFailed, "run-1"))

	derived, err := DerivedStatus(ctx, db, parent.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusFailed, derived, "a failed child's status dominates the parent's derived status")
}

func TestUpdateTaskStatus_RejectsInvalidTransition(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	task := mustCreateTask(t, ctx, db, "t")
	err := UpdateTaskStatus(ctx, db, task.ID, models.TaskStatusDone, "run-1")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid, "pending -> done is not a direct transition")
}

func TestUpdateTaskStatus_AllowsDoneToFailedForVerificationRevert(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	task := mustCreateTask(t, ctx, db, "t")
	require.NoError(t, UpdateTaskStatus(ctx, db, task.ID, models.TaskStatusInProgress, "run-1"))
	require.NoError(t, UpdateTaskStatus(ctx, db, task.ID, models.TaskStatusDone, "run-1"))

	err := UpdateTaskStatus(ctx, db, task.ID, models.TaskStatusFailed, "run-1")
	require.NoError(t, err, "done -> failed is allowed for verification revert")
}

func TestRetryTask_IncrementsRetryCountAndClearsClaim(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	task := mustCreateTask(t, ctx, db, "t")
	require.NoError(t, UpdateTaskStatus(ctx, db, task.ID, models.TaskStatusInProgress, "run-1"))
	require.NoError(t, UpdateTaskStatus(ctx, db, task.ID, models.TaskStatusFailed, "run-1"))
	require.NoError(t, RetryTask(ctx, db, task.ID))

	got, err := GetTask(ctx, db, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, got.Status)
	require.Equal(t, 1, got.RetryCount)
	require.Empty(t, got.ClaimedBy)
}

func TestDeleteTask_RejectsWhenStillBlocking(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	blocker := mustCreateTask(t, ctx, db, "blocker")
	blocked := mustCreateTask(t, ctx, db, "blocked")
	require.NoError(t, AddDependency(ctx, db, blocker.ID, blocked.ID))

	err := DeleteTask(ctx, db, blocker.ID)
	var depErr *BlockedByDependentsError
	require.ErrorAs(t, err, &depErr)
}

func TestDerivedStatus_RecursesThroughChildren(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	parent, err := CreateTask(ctx, db, &models.Task{Title: "parent"})
	require.NoError(t, err)
	child1, err := CreateTask(ctx, db, &models.Task{Title: "c1", ParentID: parent.ID})
	require.NoError(t, err)
	_, err = CreateTask(ctx, db, &models.Task{Title: "c2", ParentID: parent.ID})
	require.NoError(t, err)

	require.NoError(t, UpdateTaskStatus(ctx, db, child1.ID, models.TaskStatusInProgress, "run-1"))

	derived, err := DerivedStatus(ctx, db, parent.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusInProgress, derived, "any in-progress child makes the parent in-progress")
}
