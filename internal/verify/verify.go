// Package verify runs read-only verification and review sessions against
// completed work, per spec.md §4.9.
package verify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dotcommander/ralph/internal/acp"
	"github.com/dotcommander/ralph/internal/sigils"
)

// Outcome is the result of a single verification or review round.
type Outcome struct {
	Passed bool
	Reason string // verify-fail reason, or review-changes summary
}

// Verify spawns a read-only session with the given system prompt and
// returns Passed=false with the fail reason unless the agent emits
// <verify-pass/>. A missing sigil fails closed (spec.md §4.9: "verification
// defaults to safety").
func Verify(ctx context.Context, agentCommand, workingDir, prompt string, log *slog.Logger) (Outcome, error) {
	sess, err := acp.NewSession(ctx, acp.Options{
		WorkingDirectory: workingDir,
		ReadOnly:         true,
		AgentCommand:     agentCommand,
	}, log)
	if err != nil {
		return Outcome{}, fmt.Errorf("start verification session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	if _, err := sess.Prompt(ctx, prompt); err != nil {
		return Outcome{}, fmt.Errorf("verification prompt: %w", err)
	}

	r := sigils.ExtractAll(sess.AccumulatedText())
	if r.VerifyPass {
		return Outcome{Passed: true}, nil
	}
	if r.VerifyFailSet {
		return Outcome{Passed: false, Reason: r.VerifyFail}, nil
	}
	return Outcome{Passed: false, Reason: "no verification sigil emitted"}, nil
}

// maxReviewRounds bounds the review loop so a non-cooperative agent cannot
// stall a run indefinitely.
const maxReviewRounds = 5

// Review runs up to maxReviewRounds review rounds, each a fresh read-only
// session built from buildPrompt(round, previousReason). It stops on the
// first <review-pass/>, the round cap, or a round with neither review sigil —
// all of which pass, per spec.md §4.9 ("review defaults to progress").
func Review(ctx context.Context, agentCommand, workingDir string, buildPrompt func(round int, previousReason string) string, log *slog.Logger) (Outcome, error) {
	previousReason := ""
	for round := 1; round <= maxReviewRounds; round++ {
		sess, err := acp.NewSession(ctx, acp.Options{
			WorkingDirectory: workingDir,
			ReadOnly:         true,
			AgentCommand:     agentCommand,
		}, log)
		if err != nil {
			return Outcome{}, fmt.Errorf("start review session round %d: %w", round, err)
		}

		_, promptErr := sess.Prompt(ctx, buildPrompt(round, previousReason))
		text := sess.AccumulatedText()
		_ = sess.Close()
		if promptErr != nil {
			return Outcome{}, fmt.Errorf("review prompt round %d: %w", round, promptErr)
		}

		r := sigils.ExtractAll(text)
		if r.ReviewPass {
			return Outcome{Passed: true}, nil
		}
		if !r.ReviewChangesSet {
			return Outcome{Passed: true, Reason: "no review sigil emitted"}, nil
		}
		previousReason = r.ReviewChanges
	}
	return Outcome{Passed: true, Reason: previousReason}, nil
}
