package store

import (
	"context"
	"testing"

	"github.com/dotcommander/ralph/internal/models"
	"github.com/stretchr/testify/require"
)

func TestCreateFeature_DefaultsToDraftStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	f, err := CreateFeature(ctx, db, "login-flow", "specs/login.md", "plans/login.md")
	require.NoError(t, err)
	require.Equal(t, models.FeatureStatusDraft, f.Status)

	got, err := GetFeatureByName(ctx, db, "login-flow")
	require.NoError(t, err)
	require.Equal(t, f.ID, got.ID)
}

func TestUpdateFeatureStatus_PersistsTransition(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	f, err := CreateFeature(ctx, db, "login-flow", "", "")
	require.NoError(t, err)
	require.NoError(t, UpdateFeatureStatus(ctx, db, f.ID, models.FeatureStatusPlanned))

	got, err := GetFeature(ctx, db, f.ID)
	require.NoError(t, err)
	require.Equal(t, models.FeatureStatusPlanned, got.Status)
}

func TestDeleteFeature_CascadesOwnedTasks(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	f, err := CreateFeature(ctx, db, "login-flow", "", "")
	require.NoError(t, err)
	root, err := CreateTask(ctx, db, &models.Task{Title: "root", FeatureID: f.ID, TaskType: models.TaskTypeFeature})
	require.NoError(t, err)
	require.NoError(t, SetFeatureRootTask(ctx, db, f.ID, root.ID))

	require.NoError(t, DeleteFeature(ctx, db, f.ID))

	_, err = GetTask(ctx, db, root.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
