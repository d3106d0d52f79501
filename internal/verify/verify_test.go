package verify

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// Verify and Review both go through acp.NewSession, which spawns a real
// agent subprocess. An empty AgentCommand fails in Spawn before anything is
// started ("empty agent command"), which is the one error path these tests
// can exercise without actually launching a process.

func TestVerify_EmptyAgentCommandFailsBeforeSpawning(t *testing.T) {
	_, err := Verify(context.Background(), "", t.TempDir(), "check the thing", slog.Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "start verification session")
}

func TestReview_EmptyAgentCommandFailsOnFirstRound(t *testing.T) {
	calls := 0
	buildPrompt := func(round int, previousReason string) string {
		calls++
		return "review round prompt"
	}

	_, err := Review(context.Background(), "", t.TempDir(), buildPrompt, slog.Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "review session round 1")
	require.Equal(t, 0, calls, "buildPrompt is only called once a session has started")
}

func TestMaxReviewRounds_BoundsTheLoop(t *testing.T) {
	require.Equal(t, 5, maxReviewRounds, "spec.md §4.9 caps review at a fixed round budget")
}
