package journal

import (
	"strings"
	"testing"

	"github.com/dotcommander/ralph/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildFTSQuery_DropsShortTokensAndCaps(t *testing.T) {
	q := buildFTSQuery("Fix the DB connection pool to retry on busy errors", "an extra description with more words here to pad past ten unique tokens total for sure")
	assert.NotContains(t, q, `"an"`)
	assert.NotContains(t, q, `"to"`)
	assert.Contains(t, q, "OR")
	// Ten unique long tokens are reached at "with"; later words are cut.
	assert.Equal(t, 9, strings.Count(q, " OR "))
	assert.NotContains(t, q, `"more"`)
}

func TestBuildFTSQuery_EmptyWhenNoLongTokens(t *testing.T) {
	assert.Empty(t, buildFTSQuery("a an", "to of"))
}

func TestRender_StopsAtBudget(t *testing.T) {
	entries := []*models.JournalEntry{
		{Iteration: 1, Outcome: models.JournalOutcomeDone, Model: "sonnet", Notes: "first entry notes here"},
		{Iteration: 2, Outcome: models.JournalOutcomeDone, Model: "sonnet", Notes: "second entry notes here"},
	}
	// A tiny budget should render at most the first entry (or nothing).
	out := Render(entries, 5)
	assert.NotContains(t, out, "Iteration 2")
}

func TestRender_EmptyBudgetOrEntries(t *testing.T) {
	assert.Empty(t, Render(nil, 100))
	assert.Empty(t, Render([]*models.JournalEntry{{Iteration: 1}}, 0))
}
