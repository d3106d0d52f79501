package loop

import (
	"context"
	"fmt"

	"github.com/dotcommander/ralph/internal/models"
	"github.com/dotcommander/ralph/internal/store"
	"github.com/dotcommander/ralph/internal/verify"
)

// runVerification runs a read-only verification session against a task
// just marked done, per spec.md §4.7 step 9. A fail (explicit or missing
// sigil) reverts the task to failed with the reason recorded.
func runVerification(ctx context.Context, opts Options, t *models.Task) error {
	prompt := fmt.Sprintf(
		"Verify that task %s (%q) was completed correctly. Emit <verify-pass/> or <verify-fail>REASON</verify-fail>.",
		t.ID, t.Title,
	)
	outcome, err := verify.Verify(ctx, opts.AgentCommand, opts.WorkingDir, prompt, opts.Log)
	if err != nil {
		return err
	}
	if outcome.Passed {
		return store.SetVerificationStatus(ctx, opts.DB, t.ID, models.VerificationPassed)
	}
	if err := store.SetVerificationStatus(ctx, opts.DB, t.ID, models.VerificationFailed); err != nil {
		return err
	}
	if err := store.UpdateTaskStatus(ctx, opts.DB, t.ID, models.TaskStatusFailed, opts.RunID); err != nil {
		return err
	}
	reason := outcome.Reason
	if reason == "" {
		reason = "verification failed"
	}
	return store.AppendTaskDescription(ctx, opts.DB, t.ID,
		fmt.Sprintf("\n\n--- verification failed ---\n%s\n", reason))
}
