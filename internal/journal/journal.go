// Package journal builds iteration context from the persisted journal:
// recent entries for the current run plus cross-run full-text matches, and
// renders both under a soft token budget.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dotcommander/ralph/internal/models"
	"github.com/dotcommander/ralph/internal/store"
)

const (
	charsPerToken    = 4
	maxFTSTokens     = 10
	defaultRecencyN  = 10
	defaultCrossRunM = 10
)

// Context is the combined retrieval result handed to prompt assembly.
type Context struct {
	Recent   []*models.JournalEntry
	CrossRun []*models.JournalEntry
}

// Build assembles recency and cross-run FTS context for one task, per
// spec.md §4.4.
func Build(ctx context.Context, db *sql.DB, runID string, task *models.Task) (*Context, error) {
	recent, err := store.RecentJournalEntries(ctx, db, runID, defaultRecencyN)
	if err != nil {
		return nil, fmt.Errorf("recent journal entries: %w", err)
	}

	query := buildFTSQuery(task.Title, task.Description)
	var crossRun []*models.JournalEntry
	if query != "" {
		all, err := store.SearchJournalEntries(ctx, db, query, defaultCrossRunM+len(recent))
		if err != nil {
			return nil, fmt.Errorf("cross-run journal search: %w", err)
		}
		for _, e := range all {
			if e.RunID == runID || e.Notes == "" {
				continue
			}
			crossRun = append(crossRun, e)
			if len(crossRun) >= defaultCrossRunM {
				break
			}
		}
	}

	return &Context{Recent: recent, CrossRun: crossRun}, nil
}

// buildFTSQuery tokenizes title+description into a disjunctive FTS5 query,
// dropping tokens of length <= 2 and capping at 10 tokens.
func buildFTSQuery(title, description string) string {
	fields := strings.Fields(title + " " + description)
	seen := map[string]bool{}
	var tokens []string
	for _, f := range fields {
		tok := strings.ToLower(strings.Trim(f, `.,;:!?()[]{}'"`))
		if len(tok) <= 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, escapeFTSToken(tok))
		if len(tokens) >= maxFTSTokens {
			break
		}
	}
	if len(tokens) == 0 {
		return ""
	}
	return strings.Join(tokens, " OR ")
}

func escapeFTSToken(tok string) string {
	return `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
}

// Render produces markdown for entries, stopping once the soft token
// budget (4 chars/token) would be exceeded by the next entry.
func Render(entries []*models.JournalEntry, tokenBudget int) string {
	if tokenBudget <= 0 || len(entries) == 0 {
		return ""
	}
	budgetChars := tokenBudget * charsPerToken
	var b strings.Builder
	used := 0
	for _, e := range entries {
		chunk := renderEntry(e)
		if used+len(chunk) > budgetChars {
			break
		}
		b.WriteString(chunk)
		used += len(chunk)
	}
	return b.String()
}

func renderEntry(e *models.JournalEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### Iteration %d — %s\n", e.Iteration, e.Outcome)
	if e.TaskID != "" {
		fmt.Fprintf(&b, "- task: %s\n", e.TaskID)
	}
	fmt.Fprintf(&b, "- model: %s\n", e.Model)
	fmt.Fprintf(&b, "- duration: %.1fs, cost: $%.4f\n", e.DurationSecs, e.CostUSD)
	if len(e.FilesModified) > 0 {
		fmt.Fprintf(&b, "- files: %s\n", strings.Join(e.FilesModified, ", "))
	}
	if e.Notes != "" {
		fmt.Fprintf(&b, "\n%s\n", e.Notes)
	}
	b.WriteString("\n")
	return b.String()
}
