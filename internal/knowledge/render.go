package knowledge

import (
	"fmt"
	"strings"

	"github.com/dotcommander/ralph/internal/models"
)

const charsPerToken = 4

// Render produces markdown for scored entries under a soft token budget
// (4 chars/token), matching the journal's budget policy. When graph is
// non-nil, each entry's rendering includes "Linked from:" / "Links to:"
// lines.
func Render(scored []Scored, graph *Graph, tokenBudget int) string {
	if tokenBudget <= 0 || len(scored) == 0 {
		return ""
	}
	budgetChars := tokenBudget * charsPerToken
	var b strings.Builder
	used := 0
	for _, s := range scored {
		chunk := renderEntry(s.Entry, graph)
		if used+len(chunk) > budgetChars {
			break
		}
		b.WriteString(chunk)
		used += len(chunk)
	}
	return b.String()
}

func renderEntry(e *models.KnowledgeEntry, graph *Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s\n", e.Title)
	fmt.Fprintf(&b, "tags: %s\n", strings.Join(e.Tags, ", "))
	if graph != nil {
		lower := strings.ToLower(e.Title)
		if links := graph.Backlinks(lower); len(links) > 0 {
			fmt.Fprintf(&b, "Linked from: %s\n", strings.Join(links, ", "))
		}
		if links := graph.Outlinks(lower); len(links) > 0 {
			fmt.Fprintf(&b, "Links to: %s\n", strings.Join(links, ", "))
		}
	}
	fmt.Fprintf(&b, "\n%s\n\n", e.Body)
	return b.String()
}
