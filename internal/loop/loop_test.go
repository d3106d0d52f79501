package loop

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/ralph/internal/models"
	"github.com/dotcommander/ralph/internal/sigils"
	"github.com/dotcommander/ralph/internal/store"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustCreateTask(t *testing.T, ctx context.Context, db *sql.DB, title string) *models.Task {
	t.Helper()
	task, err := store.CreateTask(ctx, db, &models.Task{Title: title, MaxRetries: 2})
	require.NoError(t, err)
	return task
}

func TestApplySigils_TaskDoneMarksTaskDone(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	task := mustCreateTask(t, ctx, db, "do a thing")
	_, err := store.ClaimNextReady(ctx, db, "run-1")
	require.NoError(t, err)

	lastFailed := true
	outcome, err := applySigils(ctx, Options{DB: db, RunID: "run-1"}, task, sigils.Result{TaskDone: task.ID}, &lastFailed)
	require.NoError(t, err)
	require.Equal(t, models.JournalOutcomeDone, outcome)
	require.False(t, lastFailed)

	got, err := store.GetTask(ctx, db, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusDone, got.Status)
}

func TestApplySigils_TaskFailedRetriesWhenBudgetRemains(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	task := mustCreateTask(t, ctx, db, "flaky thing")
	claimed, err := store.ClaimNextReady(ctx, db, "run-1")
	require.NoError(t, err)

	lastFailed := false
	outcome, err := applySigils(ctx, Options{DB: db, RunID: "run-1"}, claimed, sigils.Result{TaskFailed: claimed.ID}, &lastFailed)
	require.NoError(t, err)
	require.Equal(t, models.JournalOutcomeRetried, outcome)
	require.True(t, lastFailed)

	got, err := store.GetTask(ctx, db, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, got.Status, "retry should reset to pending for reclaiming")
	require.Equal(t, 1, got.RetryCount)
}

func TestApplySigils_TaskFailedStopsRetryingAtMaxRetries(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	task := mustCreateTask(t, ctx, db, "no more retries") // MaxRetries defaults to 2 via mustCreateTask

	_, err := db.ExecContext(ctx, `UPDATE tasks SET retry_count = max_retries WHERE id = ?`, task.ID)
	require.NoError(t, err)

	claimed, err := store.ClaimNextReady(ctx, db, "run-1")
	require.NoError(t, err)
	require.Equal(t, task.ID, claimed.ID)

	lastFailed := false
	outcome, err := applySigils(ctx, Options{DB: db, RunID: "run-1"}, claimed, sigils.Result{TaskFailed: claimed.ID}, &lastFailed)
	require.NoError(t, err)
	require.Equal(t, models.JournalOutcomeFailed, outcome)

	got, err := store.GetTask(ctx, db, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusFailed, got.Status)
}

func TestApplySigils_NoMatchingSigilReleasesClaim(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	task := mustCreateTask(t, ctx, db, "undecided")
	claimed, err := store.ClaimNextReady(ctx, db, "run-1")
	require.NoError(t, err)

	lastFailed := false
	outcome, err := applySigils(ctx, Options{DB: db, RunID: "run-1"}, claimed, sigils.Result{}, &lastFailed)
	require.NoError(t, err)
	require.Equal(t, models.JournalOutcomeBlocked, outcome)

	got, err := store.GetTask(ctx, db, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, got.Status)
}

func TestApplySigils_MismatchedSigilIDIsIgnored(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	task := mustCreateTask(t, ctx, db, "wrong id in sigil")
	claimed, err := store.ClaimNextReady(ctx, db, "run-1")
	require.NoError(t, err)

	lastFailed := false
	outcome, err := applySigils(ctx, Options{DB: db, RunID: "run-1"}, claimed, sigils.Result{TaskDone: "t_someone_else"}, &lastFailed)
	require.NoError(t, err)
	require.Equal(t, models.JournalOutcomeBlocked, outcome)

	got, err := store.GetTask(ctx, db, task.ID)
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, got.Status, "a sigil for a different task id must not affect the claimed task")
}

func TestJournalNotes_JoinsWithNewlines(t *testing.T) {
	require.Equal(t, "", journalNotes(nil))
	require.Equal(t, "one", journalNotes([]string{"one"}))
	require.Equal(t, "one\ntwo", journalNotes([]string{"one", "two"}))
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "a", firstNonEmpty("a", "b"))
	require.Equal(t, "b", firstNonEmpty("", "b"))
	require.Equal(t, "", firstNonEmpty("", ""))
}

func TestAllResolved_TrueOnlyWhenEveryTaskIsTerminal(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	mustCreateTask(t, ctx, db, "one")
	require.False(t, allResolved(ctx, db, ""))

	tasks, err := store.ListTasks(ctx, db, "", "")
	require.NoError(t, err)
	require.NoError(t, store.UpdateTaskStatus(ctx, db, tasks[0].ID, models.TaskStatusInProgress, "run-1"))
	require.NoError(t, store.UpdateTaskStatus(ctx, db, tasks[0].ID, models.TaskStatusDone, "run-1"))
	require.True(t, allResolved(ctx, db, ""))
}
