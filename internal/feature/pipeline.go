// Package feature drives the three-phase spec -> plan -> build pipeline
// that turns a feature request into a task subtree (spec.md §4.10).
package feature

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dotcommander/ralph/internal/acp"
	"github.com/dotcommander/ralph/internal/models"
	"github.com/dotcommander/ralph/internal/sigils"
	"github.com/dotcommander/ralph/internal/store"
	"github.com/dotcommander/ralph/internal/verify"
)

// Phase names the three pipeline stages.
type Phase string

// Pipeline phases.
const (
	PhaseSpec  Phase = "spec"
	PhasePlan  Phase = "plan"
	PhaseBuild Phase = "build"
)

// Paths resolves where each phase document lives on disk, under
// PROJECT/.ralph/features/<name>/.
type Paths struct {
	SpecPath string
	PlanPath string
}

// PathsFor derives the standard feature document paths.
func PathsFor(ralphDir, name string) Paths {
	dir := filepath.Join(ralphDir, "features", name)
	return Paths{SpecPath: filepath.Join(dir, "spec.md"), PlanPath: filepath.Join(dir, "plan.md")}
}

// RunSpecPhase runs an interactive session write-restricted to the spec
// file, terminating when the agent emits <phase-complete>spec</phase-complete>.
// Once the agent stops, an iterative review pass (spec.md §4.9) reads the
// written spec back and logs any requested changes; review never blocks the
// phase from completing, since a missing or exhausted review sigil passes.
func RunSpecPhase(ctx context.Context, db *sql.DB, f *models.Feature, agentCommand, workingDir string, paths Paths, prompt string, log *slog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(paths.SpecPath), 0o750); err != nil {
		return fmt.Errorf("create feature dir: %w", err)
	}
	if err := runPhaseSession(ctx, agentCommand, workingDir, []string{paths.SpecPath}, prompt, PhaseSpec, log); err != nil {
		return err
	}
	reviewDocument(ctx, agentCommand, workingDir, f.Name, documentKindSpec, paths.SpecPath, "", log)
	return store.UpdateFeatureStatus(ctx, db, f.ID, models.FeatureStatusPlanned)
}

// RunPlanPhase runs an interactive session write-restricted to the plan
// file; spec content is expected to already be embedded in prompt by the
// caller. Terminates on <phase-complete>plan</phase-complete>, then runs the
// same review pass as RunSpecPhase, additionally giving the reviewer the
// spec content so it can judge the plan against it.
func RunPlanPhase(ctx context.Context, db *sql.DB, f *models.Feature, agentCommand, workingDir string, paths Paths, prompt string, log *slog.Logger) error {
	if err := runPhaseSession(ctx, agentCommand, workingDir, []string{paths.PlanPath}, prompt, PhasePlan, log); err != nil {
		return err
	}
	specContent, _ := os.ReadFile(paths.SpecPath) //nolint:gosec // G304: project-local feature doc path
	reviewDocument(ctx, agentCommand, workingDir, f.Name, documentKindPlan, paths.PlanPath, string(specContent), log)
	return store.UpdateFeatureStatus(ctx, db, f.ID, models.FeatureStatusReady)
}

// RunBuildPhase runs an autonomous, unrestricted session permitted to
// invoke the host CLI (shell command) to populate the task subtree.
// Terminates on <phase-complete>build</phase-complete>.
func RunBuildPhase(ctx context.Context, db *sql.DB, f *models.Feature, agentCommand, workingDir, prompt string, log *slog.Logger) error {
	sess, err := acp.NewSession(ctx, acp.Options{
		WorkingDirectory: workingDir,
		AgentCommand:     agentCommand,
	}, log)
	if err != nil {
		return fmt.Errorf("start build session: %w", err)
	}
	defer func() { _ = sess.Close() }()

	if _, err := sess.Prompt(ctx, prompt); err != nil {
		return fmt.Errorf("build phase prompt: %w", err)
	}

	r := sigils.ExtractAll(sess.AccumulatedText())
	if r.PhaseComplete != sigils.PhaseBuild {
		return fmt.Errorf("build phase did not emit phase-complete(build)")
	}
	return store.UpdateFeatureStatus(ctx, db, f.ID, models.FeatureStatusRunning)
}

// documentKind distinguishes the spec and plan documents for review prompt
// wording, mirroring the original implementation's DocumentKind enum.
type documentKind string

const (
	documentKindSpec documentKind = "spec"
	documentKindPlan documentKind = "plan"
)

func (k documentKind) label() string {
	if k == documentKindPlan {
		return "implementation plan"
	}
	return "specification"
}

// reviewDocument runs verify.Review over the document just written by a
// phase session and logs the outcome. It never returns an error to its
// caller: a review agent that fails to start or times out should not undo a
// phase that already completed successfully, and review itself can only
// ever report pass (spec.md §4.9, "review defaults to progress").
func reviewDocument(ctx context.Context, agentCommand, workingDir, featureName string, kind documentKind, docPath, specContent string, log *slog.Logger) {
	outcome, err := verify.Review(ctx, agentCommand, workingDir, buildReviewPrompt(featureName, kind, docPath, specContent), log)
	if err != nil {
		log.Warn("review session failed, keeping phase result", "feature", featureName, "document", kind, "error", err)
		return
	}
	switch outcome.Reason {
	case "":
		log.Info("review passed", "feature", featureName, "document", kind)
	case "no review sigil emitted":
		log.Warn("review agent emitted no sigil, treating as pass", "feature", featureName, "document", kind)
	default:
		log.Info("review exhausted its round budget with feedback still open", "feature", featureName, "document", kind, "feedback", outcome.Reason)
	}
}

// buildReviewPrompt assembles the per-round review prompt: round one asks
// for a first pass, later rounds re-state the previously requested changes
// so the agent can confirm they were addressed. Plan review additionally
// receives the spec content so it can judge the plan against it.
func buildReviewPrompt(featureName string, kind documentKind, docPath, specContent string) func(round int, previousReason string) string {
	return func(round int, previousReason string) string {
		roundNote := fmt.Sprintf("This is review round %d of the %s for feature %q.", round, kind.label(), featureName)
		if round > 1 {
			roundNote = fmt.Sprintf(
				"This is review round %d of the %s for feature %q. The previous round requested:\n%s\n\nCheck whether that feedback was addressed.",
				round, kind.label(), featureName, previousReason,
			)
		}

		var specSection string
		if kind == documentKindPlan && specContent != "" {
			specSection = fmt.Sprintf("\n\nThe spec this plan must satisfy:\n%s\n", specContent)
		}

		return fmt.Sprintf(
			"%s\n\nReview the %s at %s.%s\n\n"+
				"Check for completeness, internal consistency, and whether it is specific enough to act on. "+
				"If it is ready as-is, emit <review-pass/>. Otherwise emit <review-changes>a short summary of what to change</review-changes>.",
			roundNote, kind.label(), docPath, specSection,
		)
	}
}

func runPhaseSession(ctx context.Context, agentCommand, workingDir string, allowedWritePaths []string, prompt string, want Phase, log *slog.Logger) error {
	sess, err := acp.NewSession(ctx, acp.Options{
		WorkingDirectory:  workingDir,
		AllowedWritePaths: allowedWritePaths,
		AgentCommand:      agentCommand,
	}, log)
	if err != nil {
		return fmt.Errorf("start %s phase session: %w", want, err)
	}
	defer func() { _ = sess.Close() }()

	if _, err := sess.Prompt(ctx, prompt); err != nil {
		return fmt.Errorf("%s phase prompt: %w", want, err)
	}

	r := sigils.ExtractAll(sess.AccumulatedText())
	if Phase(r.PhaseComplete) != want {
		return fmt.Errorf("%s phase did not emit phase-complete(%s)", want, want)
	}
	return nil
}
