// Package loop drives the iteration loop: claim a ready task, assemble a
// prompt from journal and knowledge context, invoke one agent session,
// extract sigils, persist the outcome, and repeat (spec.md §4.7).
package loop

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dotcommander/ralph/internal/acp"
	"github.com/dotcommander/ralph/internal/app"
	"github.com/dotcommander/ralph/internal/journal"
	"github.com/dotcommander/ralph/internal/knowledge"
	"github.com/dotcommander/ralph/internal/models"
	"github.com/dotcommander/ralph/internal/sigils"
	"github.com/dotcommander/ralph/internal/store"
	"github.com/dotcommander/ralph/internal/strategy"
)

// Outcome is the terminal reason the loop stopped.
type Outcome string

// Loop outcomes.
const (
	OutcomeNoPlan       Outcome = "no_plan"
	OutcomeBlocked      Outcome = "blocked"
	OutcomeComplete     Outcome = "complete"
	OutcomeFailure      Outcome = "failure"
	OutcomeLimitReached Outcome = "limit_reached"
	OutcomeInterrupted  Outcome = "interrupted"
)

// Options configures one call to Run.
type Options struct {
	DB        *sql.DB
	RunID     string
	FeatureID string // optional; empty means "any task in the DAG"

	AgentCommand string
	WorkingDir   string

	StrategyKind    strategy.Kind
	ConfiguredModel string // required by strategy.Fixed

	MaxIterations int
	VerifyEnabled bool

	KnowledgeDir         string
	JournalTokenBudget   int
	KnowledgeTokenBudget int

	// FeedbackOnInterrupt is called once the interrupt flag is observed
	// mid-loop. Returning ("", false) ends the run with OutcomeInterrupted;
	// returning (text, true) appends text to the claimed task's description
	// under a dated marker and continues the loop.
	FeedbackOnInterrupt func() (string, bool)

	Interrupt *app.Interrupt
	Log       *slog.Logger
}

// Result summarizes one Run invocation.
type Result struct {
	Outcome    Outcome
	Iterations int
}

const defaultJournalTokenBudget = 2000
const defaultKnowledgeTokenBudget = 2000

// Run executes the iteration loop until one of the terminal outcomes in
// spec.md §4.7 is reached.
func Run(ctx context.Context, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	journalBudget := opts.JournalTokenBudget
	if journalBudget <= 0 {
		journalBudget = defaultJournalTokenBudget
	}
	knowledgeBudget := opts.KnowledgeTokenBudget
	if knowledgeBudget <= 0 {
		knowledgeBudget = defaultKnowledgeTokenBudget
	}
	opts.JournalTokenBudget = journalBudget
	opts.KnowledgeTokenBudget = knowledgeBudget

	tasks, err := store.ListTasks(ctx, opts.DB, "", opts.FeatureID)
	if err != nil {
		return Result{}, fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return Result{Outcome: OutcomeNoPlan}, nil
	}

	currentModel := opts.ConfiguredModel
	highWaterMark := ""
	lastIterationFailed := false
	pendingHint := ""

	for iteration := 1; ; iteration++ {
		if opts.MaxIterations > 0 && iteration > opts.MaxIterations {
			return Result{Outcome: OutcomeLimitReached, Iterations: iteration - 1}, nil
		}

		ready, err := store.ReadySetIDs(ctx, opts.DB)
		if err != nil {
			return Result{}, fmt.Errorf("query ready set: %w", err)
		}
		if len(ready) == 0 {
			if allResolved(ctx, opts.DB, opts.FeatureID) {
				return Result{Outcome: OutcomeComplete, Iterations: iteration - 1}, nil
			}
			return Result{Outcome: OutcomeBlocked, Iterations: iteration - 1}, nil
		}

		claimed, err := store.ClaimNextReady(ctx, opts.DB, opts.RunID)
		if err != nil {
			return Result{}, fmt.Errorf("claim task %s: %w", ready[0], err)
		}

		if opts.Interrupt != nil && opts.Interrupt.Set() {
			if outcome, handled, err := handleInterrupt(ctx, opts, claimed); handled {
				return outcome, err
			}
			opts.Interrupt.Reset()
		}

		jctx, err := journal.Build(ctx, opts.DB, opts.RunID, claimed)
		if err != nil {
			return Result{}, fmt.Errorf("build journal context for task %s: %w", claimed.ID, err)
		}
		recentText := journal.Render(jctx.Recent, journalBudget)

		decision, err := strategy.SelectModel(strategy.Input{
			Iteration:           iteration,
			StoredKind:          opts.StrategyKind,
			ConfiguredModel:     opts.ConfiguredModel,
			AgentHint:           pendingHint,
			LastIterationFailed: lastIterationFailed,
			HighWaterMark:       highWaterMark,
			RecentJournalText:   recentText,
		})
		if err != nil {
			return Result{}, fmt.Errorf("select model: %w", err)
		}
		pendingHint = ""
		currentModel = decision.Model
		switch {
		case highWaterMark == "", decision.Model == strategy.ModelOpus,
			decision.Model == strategy.ModelSonnet && highWaterMark == strategy.ModelHaiku:
			highWaterMark = decision.Model
		}

		prompt, err := buildPrompt(ctx, opts, claimed, jctx)
		if err != nil {
			return Result{}, fmt.Errorf("build prompt for task %s: %w", claimed.ID, err)
		}

		start := time.Now()
		if opts.Interrupt != nil {
			opts.Interrupt.Reset()
		}

		sess, err := acp.NewSession(ctx, acp.Options{
			WorkingDirectory: opts.WorkingDir,
			AgentCommand:     opts.AgentCommand,
		}, log)
		if err != nil {
			return Result{}, fmt.Errorf("start session for task %s: %w", claimed.ID, err)
		}

		_, promptErr := sess.Prompt(ctx, prompt)
		fullText := sess.AccumulatedText()
		filesModified := sess.ModifiedFiles()
		_ = sess.Close()
		duration := time.Since(start)

		if promptErr != nil {
			log.Warn("agent session failed", "task_id", claimed.ID, "error", promptErr)
			if err := store.ReleaseTask(ctx, opts.DB, claimed.ID); err != nil {
				return Result{}, fmt.Errorf("release task %s after session error: %w", claimed.ID, err)
			}
			continue
		}

		r := sigils.ExtractAll(fullText)
		outcome, err := applySigils(ctx, opts, claimed, r, &lastIterationFailed)
		if err != nil {
			return Result{}, fmt.Errorf("apply sigils for task %s: %w", claimed.ID, err)
		}

		if err := persistKnowledge(opts, claimed, r.Knowledge); err != nil {
			log.Warn("persist knowledge failed", "task_id", claimed.ID, "error", err)
		}

		if _, err := store.AppendJournalEntry(ctx, opts.DB, &models.JournalEntry{
			RunID:         opts.RunID,
			Iteration:     iteration,
			TaskID:        claimed.ID,
			FeatureID:     claimed.FeatureID,
			Outcome:       outcome,
			Model:         currentModel,
			DurationSecs:  duration.Seconds(),
			FilesModified: filesModified,
			Notes:         journalNotes(r.Journal),
		}); err != nil {
			return Result{}, fmt.Errorf("append journal entry for task %s: %w", claimed.ID, err)
		}

		if outcome == models.JournalOutcomeDone && opts.VerifyEnabled {
			if err := runVerification(ctx, opts, claimed); err != nil {
				return Result{}, fmt.Errorf("verify task %s: %w", claimed.ID, err)
			}
		}

		if r.PromiseFailure {
			return Result{Outcome: OutcomeFailure, Iterations: iteration}, nil
		}

		if r.NextModel != "" {
			pendingHint = r.NextModel
		}
	}
}

// handleInterrupt is called when the interrupt flag is observed with a
// freshly claimed task in hand. It returns handled=true along with the
// terminal Result when the caller declines to continue.
func handleInterrupt(ctx context.Context, opts Options, claimed *models.Task) (Result, bool, error) {
	if opts.FeedbackOnInterrupt == nil {
		if err := store.ReleaseTask(ctx, opts.DB, claimed.ID); err != nil {
			return Result{}, true, err
		}
		return Result{Outcome: OutcomeInterrupted}, true, nil
	}
	feedback, cont := opts.FeedbackOnInterrupt()
	if !cont {
		if err := store.ReleaseTask(ctx, opts.DB, claimed.ID); err != nil {
			return Result{}, true, err
		}
		return Result{Outcome: OutcomeInterrupted}, true, nil
	}
	if feedback != "" {
		marker := fmt.Sprintf("\n\n--- user feedback (%s) ---\n%s\n", time.Now().UTC().Format(time.RFC3339), feedback)
		if err := store.AppendTaskDescription(ctx, opts.DB, claimed.ID, marker); err != nil {
			return Result{}, true, err
		}
		claimed.Description += marker
	}
	return Result{}, false, nil
}

// applySigils implements spec.md §4.7 step 7's precedence: task_done wins,
// then task_failed with retry policy, else the claim is released.
func applySigils(ctx context.Context, opts Options, claimed *models.Task, r sigils.Result, lastIterationFailed *bool) (models.JournalOutcome, error) {
	switch {
	case r.TaskDone != "" && r.TaskDone == claimed.ID:
		*lastIterationFailed = false
		if err := store.UpdateTaskStatus(ctx, opts.DB, claimed.ID, models.TaskStatusDone, opts.RunID); err != nil {
			return "", err
		}
		return models.JournalOutcomeDone, nil

	case r.TaskFailed != "" && r.TaskFailed == claimed.ID:
		*lastIterationFailed = true
		if err := store.UpdateTaskStatus(ctx, opts.DB, claimed.ID, models.TaskStatusFailed, opts.RunID); err != nil {
			return "", err
		}
		if claimed.RetryCount < claimed.MaxRetries {
			if err := store.RetryTask(ctx, opts.DB, claimed.ID); err != nil {
				return "", err
			}
			return models.JournalOutcomeRetried, nil
		}
		return models.JournalOutcomeFailed, nil

	default:
		if mismatch := firstNonEmpty(r.TaskDone, r.TaskFailed); mismatch != "" {
			log := opts.Log
			if log == nil {
				log = slog.Default()
			}
			log.Warn("sigil task id does not match claimed task, ignoring", "claimed_id", claimed.ID, "sigil_id", mismatch)
		}
		if err := store.ReleaseTask(ctx, opts.DB, claimed.ID); err != nil {
			return "", err
		}
		return models.JournalOutcomeBlocked, nil
	}
}

func persistKnowledge(opts Options, claimed *models.Task, notes []sigils.KnowledgeNote) error {
	for _, n := range notes {
		if _, err := knowledge.Write(opts.KnowledgeDir, n.Title, n.Tags, claimed.FeatureID, n.Body); err != nil {
			return err
		}
	}
	return nil
}

func journalNotes(entries []string) string {
	if len(entries) == 0 {
		return ""
	}
	notes := entries[0]
	for _, e := range entries[1:] {
		notes += "\n" + e
	}
	return notes
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func allResolved(ctx context.Context, db *sql.DB, featureID string) bool {
	tasks, err := store.ListTasks(ctx, db, "", featureID)
	if err != nil {
		return false
	}
	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			return false
		}
	}
	return true
}
