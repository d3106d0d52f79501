package sigils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAll_TaskDoneAndNextModel(t *testing.T) {
	text := "work done <task-done>t-abc123</task-done> <next-model>sonnet</next-model>"
	r := ExtractAll(text)

	assert.Equal(t, "t-abc123", r.TaskDone)
	assert.Equal(t, "sonnet", r.NextModel)
	assert.Empty(t, r.TaskFailed)
	assert.False(t, r.PromiseComplete)
	assert.False(t, r.PromiseFailure)
}

func TestExtractAll_TaskFailed(t *testing.T) {
	r := ExtractAll("<task-failed>t-xyz</task-failed>")
	assert.Equal(t, "t-xyz", r.TaskFailed)
	assert.Empty(t, r.TaskDone)
}

func TestExtractAll_Promise(t *testing.T) {
	assert.True(t, ExtractAll("<promise>COMPLETE</promise>").PromiseComplete)
	assert.True(t, ExtractAll("<promise>FAILURE</promise>").PromiseFailure)
	assert.False(t, ExtractAll("<promise>MAYBE</promise>").PromiseComplete)
	assert.False(t, ExtractAll("<promise>MAYBE</promise>").PromiseFailure)
}

func TestExtractAll_NextModelRejectsUnknownName(t *testing.T) {
	r := ExtractAll("<next-model>gpt5</next-model>")
	assert.Empty(t, r.NextModel)
}

func TestExtractAll_Journal_MultipleOccurrences(t *testing.T) {
	text := "<journal>first note</journal> other text <journal>second note</journal>"
	r := ExtractAll(text)
	assert.Equal(t, []string{"first note", "second note"}, r.Journal)
}

func TestExtractAll_Knowledge(t *testing.T) {
	text := `<knowledge tags="rust,testing" title="Patterns">A useful pattern.</knowledge>`
	r := ExtractAll(text)
	if assert.Len(t, r.Knowledge, 1) {
		note := r.Knowledge[0]
		assert.Equal(t, []string{"rust", "testing"}, note.Tags)
		assert.Equal(t, "Patterns", note.Title)
		assert.Equal(t, "A useful pattern.", note.Body)
	}
}

func TestExtractAll_KnowledgeMissingRequiredAttrsIgnored(t *testing.T) {
	r := ExtractAll(`<knowledge title="No Tags">body</knowledge>`)
	assert.Empty(t, r.Knowledge)

	r2 := ExtractAll(`<knowledge tags="a">body, no title</knowledge>`)
	assert.Empty(t, r2.Knowledge)
}

func TestExtractAll_PhaseComplete(t *testing.T) {
	assert.Equal(t, "plan", ExtractAll("<phase-complete>plan</phase-complete>").PhaseComplete)
	assert.Empty(t, ExtractAll("<phase-complete>unknown</phase-complete>").PhaseComplete)
}

func TestExtractAll_TasksCreated(t *testing.T) {
	assert.True(t, ExtractAll("<tasks-created/>").TasksCreated)
	assert.True(t, ExtractAll("<tasks-created></tasks-created>").TasksCreated)
	assert.False(t, ExtractAll("no sigil here").TasksCreated)
}

func TestExtractAll_VerifyAndReview(t *testing.T) {
	r := ExtractAll("<verify-fail>missing tests</verify-fail>")
	assert.True(t, r.VerifyFailSet)
	assert.Equal(t, "missing tests", r.VerifyFail)
	assert.False(t, r.VerifyPass)

	r2 := ExtractAll("<verify-pass/>")
	assert.True(t, r2.VerifyPass)
	assert.False(t, r2.VerifyFailSet)

	r3 := ExtractAll("<review-changes>rename the function</review-changes>")
	assert.True(t, r3.ReviewChangesSet)
	assert.Equal(t, "rename the function", r3.ReviewChanges)

	r4 := ExtractAll("<review-pass/>")
	assert.True(t, r4.ReviewPass)
}

func TestExtractAll_MalformedSigilsIgnoredSilently(t *testing.T) {
	r := ExtractAll("<task-done>unclosed <next-model>sonnet</next-model>")
	// The unclosed task-done tag should not match; next-model still does.
	assert.Empty(t, r.TaskDone)
	assert.Equal(t, "sonnet", r.NextModel)
}

func TestExtractAll_OrderIndependent(t *testing.T) {
	a := "<task-done>t-1</task-done> <next-model>opus</next-model>"
	b := "<next-model>opus</next-model> <task-done>t-1</task-done>"
	ra, rb := ExtractAll(a), ExtractAll(b)
	assert.Equal(t, ra.TaskDone, rb.TaskDone)
	assert.Equal(t, ra.NextModel, rb.NextModel)
}
