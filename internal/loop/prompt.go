package loop

import (
	"context"
	"fmt"
	"strings"

	"github.com/dotcommander/ralph/internal/journal"
	"github.com/dotcommander/ralph/internal/knowledge"
	"github.com/dotcommander/ralph/internal/models"
	"github.com/dotcommander/ralph/internal/store"
)

// buildPrompt assembles spec.md §4.7 step 4's iteration context: system
// instructions, the task block, completed-blocker summaries, retry info,
// and the pre-rendered journal and knowledge sections.
func buildPrompt(ctx context.Context, opts Options, t *models.Task, jctx *journal.Context) (string, error) {
	var b strings.Builder

	b.WriteString("You are working one task from an autonomous task DAG. ")
	b.WriteString("Emit <task-done>ID</task-done> or <task-failed>ID</task-failed> when finished, ")
	b.WriteString("using the exact task id below.\n\n")

	fmt.Fprintf(&b, "## Task %s\n", t.ID)
	fmt.Fprintf(&b, "Title: %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", t.Description)
	}
	if t.ParentID != "" {
		if parent, err := store.GetTask(ctx, opts.DB, t.ParentID); err == nil {
			fmt.Fprintf(&b, "\nParent task: %s (%s)\n", parent.ID, parent.Title)
		}
	}

	if blockers, err := store.ListDependencies(ctx, opts.DB, t.ID); err == nil && len(blockers) > 0 {
		b.WriteString("\nCompleted blockers:\n")
		for _, blockerID := range blockers {
			if blocker, err := store.GetTask(ctx, opts.DB, blockerID); err == nil {
				fmt.Fprintf(&b, "- %s: %s\n", blocker.ID, blocker.Title)
			}
		}
	}

	if t.RetryCount > 0 {
		fmt.Fprintf(&b, "\nThis is retry attempt %d of %d.\n", t.RetryCount, t.MaxRetries)
	}

	if journalSection := journal.Render(append(jctx.Recent, jctx.CrossRun...), opts.JournalTokenBudget); journalSection != "" {
		b.WriteString("\n## Recent journal\n")
		b.WriteString(journalSection)
	}

	if knowledgeSection, err := renderKnowledgeSection(opts, t); err == nil && knowledgeSection != "" {
		b.WriteString("\n## Relevant knowledge\n")
		b.WriteString(knowledgeSection)
	}

	return b.String(), nil
}

func renderKnowledgeSection(opts Options, t *models.Task) (string, error) {
	entries, err := knowledge.ReadAll(opts.KnowledgeDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	scored := knowledge.Score(entries, t.Title, t.Description, t.FeatureID, nil)
	graph := knowledge.BuildGraph(entries)
	const defaultMaxHops, defaultBaseBonus = 2, 4
	expanded := graph.Expand(scored, defaultMaxHops, defaultBaseBonus)
	for _, e := range expanded {
		scored = append(scored, knowledge.Scored{Entry: e.Entry, Score: e.Bonus})
	}
	return knowledge.Render(scored, graph, opts.KnowledgeTokenBudget), nil
}
