package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddDependency_RejectsSelfEdge(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	task := mustCreateTask(t, ctx, db, "t")
	err := AddDependency(ctx, db, task.ID, task.ID)
	var selfErr *SelfEdgeError
	require.ErrorAs(t, err, &selfErr)
}

func TestAddDependency_RejectsCycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	a := mustCreateTask(t, ctx, db, "a")
	b := mustCreateTask(t, ctx, db, "b")
	c := mustCreateTask(t, ctx, db, "c")

	require.NoError(t, AddDependency(ctx, db, a.ID, b.ID))
	require.NoError(t, AddDependency(ctx, db, b.ID, c.ID))

	err := AddDependency(ctx, db, c.ID, a.ID)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr, "c -> a would close the a -> b -> c cycle")
}

func TestAddDependency_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	a := mustCreateTask(t, ctx, db, "a")
	b := mustCreateTask(t, ctx, db, "b")

	require.NoError(t, AddDependency(ctx, db, a.ID, b.ID))
	require.NoError(t, AddDependency(ctx, db, a.ID, b.ID))

	blockers, err := ListDependencies(ctx, db, b.ID)
	require.NoError(t, err)
	require.Len(t, blockers, 1)
}

func TestRemoveDependency_UnblocksDependent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	a := mustCreateTask(t, ctx, db, "a")
	b := mustCreateTask(t, ctx, db, "b")
	require.NoError(t, AddDependency(ctx, db, a.ID, b.ID))
	require.NoError(t, RemoveDependency(ctx, db, a.ID, b.ID))

	ready, err := ReadySetIDs(ctx, db)
	require.NoError(t, err)
	require.Contains(t, ready, b.ID)
}
