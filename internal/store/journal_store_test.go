package store

import (
	"context"
	"testing"

	"github.com/dotcommander/ralph/internal/models"
	"github.com/stretchr/testify/require"
)

func TestAppendJournalEntry_RoundTripsFilesModified(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := AppendJournalEntry(ctx, db, &models.JournalEntry{
		RunID:         "run-1",
		Iteration:     1,
		Outcome:       models.JournalOutcomeDone,
		Model:         "sonnet",
		FilesModified: []string{"a.go", "b.go"},
		Notes:         "did the thing",
	})
	require.NoError(t, err)
	require.Positive(t, id)

	entries, err := RecentJournalEntries(ctx, db, "run-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []string{"a.go", "b.go"}, entries[0].FilesModified)
}

func TestSearchJournalEntries_MatchesFullText(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, err := AppendJournalEntry(ctx, db, &models.JournalEntry{
		RunID: "run-1", Iteration: 1, Outcome: models.JournalOutcomeDone,
		Model: "sonnet", Notes: "refactored the authentication middleware",
	})
	require.NoError(t, err)
	_, err = AppendJournalEntry(ctx, db, &models.JournalEntry{
		RunID: "run-2", Iteration: 1, Outcome: models.JournalOutcomeDone,
		Model: "sonnet", Notes: "updated the billing invoice template",
	})
	require.NoError(t, err)

	results, err := SearchJournalEntries(ctx, db, `"authentication"`, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "run-1", results[0].RunID)
}

func TestRecentJournalEntries_OrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for i := 1; i <= 3; i++ {
		_, err := AppendJournalEntry(ctx, db, &models.JournalEntry{
			RunID: "run-1", Iteration: i, Outcome: models.JournalOutcomeDone, Model: "sonnet",
		})
		require.NoError(t, err)
	}

	entries, err := RecentJournalEntries(ctx, db, "run-1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, 3, entries[0].Iteration)
	require.Equal(t, 1, entries[2].Iteration)
}
