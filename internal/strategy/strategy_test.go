package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectModel_Fixed(t *testing.T) {
	d, err := SelectModel(Input{StoredKind: Fixed, ConfiguredModel: "sonnet"})
	require.NoError(t, err)
	assert.Equal(t, "sonnet", d.Model)
	assert.False(t, d.OverrideRejected)
}

func TestSelectModel_FixedRejectsOverride(t *testing.T) {
	d, err := SelectModel(Input{StoredKind: Fixed, ConfiguredModel: "sonnet", AgentHint: "opus"})
	require.NoError(t, err)
	assert.Equal(t, "sonnet", d.Model)
	assert.True(t, d.OverrideRejected)
}

func TestSelectModel_FixedWithoutConfiguredModelErrors(t *testing.T) {
	_, err := SelectModel(Input{StoredKind: Fixed})
	assert.Error(t, err)
}

func TestSelectModel_AgentOverrideWinsOutsideFixed(t *testing.T) {
	d, err := SelectModel(Input{StoredKind: CostOptimized, AgentHint: "opus"})
	require.NoError(t, err)
	assert.Equal(t, "opus", d.Model)
}

func TestSelectModel_CostOptimizedDistressWins(t *testing.T) {
	d, err := SelectModel(Input{StoredKind: CostOptimized, RecentJournalText: "the build failed with a panic"})
	require.NoError(t, err)
	assert.Equal(t, ModelOpus, d.Model)
}

func TestSelectModel_CostOptimizedThreeCompletionsGivesHaiku(t *testing.T) {
	d, err := SelectModel(Input{StoredKind: CostOptimized, RecentJournalText: "done done done, all good"})
	require.NoError(t, err)
	assert.Equal(t, ModelHaiku, d.Model)
}

// Open-question resolution: word-boundary matching means "undone" must not
// count as an occurrence of "done".
func TestSelectModel_CostOptimizedWordBoundaryExcludesUndone(t *testing.T) {
	d, err := SelectModel(Input{StoredKind: CostOptimized, RecentJournalText: "undone undone undone"})
	require.NoError(t, err)
	assert.Equal(t, ModelSonnet, d.Model)
}

func TestSelectModel_CostOptimizedDefaultsToSonnet(t *testing.T) {
	d, err := SelectModel(Input{StoredKind: CostOptimized, RecentJournalText: "working on it"})
	require.NoError(t, err)
	assert.Equal(t, ModelSonnet, d.Model)
}

func TestSelectModel_EscalateAdvancesOnFailureNeverDeescalates(t *testing.T) {
	d, err := SelectModel(Input{StoredKind: Escalate, HighWaterMark: ModelHaiku, LastIterationFailed: true})
	require.NoError(t, err)
	assert.Equal(t, ModelSonnet, d.Model)

	d2, err := SelectModel(Input{StoredKind: Escalate, HighWaterMark: d.Model, LastIterationFailed: true})
	require.NoError(t, err)
	assert.Equal(t, ModelOpus, d2.Model)

	d3, err := SelectModel(Input{StoredKind: Escalate, HighWaterMark: d2.Model, LastIterationFailed: false})
	require.NoError(t, err)
	assert.Equal(t, ModelOpus, d3.Model)
}

func TestSelectModel_PlanThenExecute(t *testing.T) {
	d1, err := SelectModel(Input{StoredKind: PlanThenExecute, Iteration: 1})
	require.NoError(t, err)
	assert.Equal(t, ModelOpus, d1.Model)

	d2, err := SelectModel(Input{StoredKind: PlanThenExecute, Iteration: 2})
	require.NoError(t, err)
	assert.Equal(t, ModelSonnet, d2.Model)
}
