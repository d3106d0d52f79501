package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendTaskLog_ListsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	task := mustCreateTask(t, ctx, db, "t")
	require.NoError(t, AppendTaskLog(ctx, db, task.ID, "started"))
	require.NoError(t, AppendTaskLog(ctx, db, task.ID, "finished"))

	logs, err := ListTaskLogs(ctx, db, task.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "started", logs[0].Message)
	require.Equal(t, "finished", logs[1].Message)
}
