package knowledge

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dotcommander/ralph/internal/models"
)

// Graph is the bidirectional link graph derived from [[Title]] references
// across a set of knowledge entries, keyed by lowercased canonical title.
type Graph struct {
	entries  map[string]*models.KnowledgeEntry
	outlinks map[string][]string
	backlinks map[string][]string
}

var linkPattern = regexp.MustCompile(`\[\[([^\[\]]*)\]\]`)

// BuildGraph extracts [[Target]] outlinks from each entry's body and builds
// the outlink/backlink maps. Links to titles not present in entries are
// dropped.
func BuildGraph(entries []*models.KnowledgeEntry) *Graph {
	g := &Graph{
		entries:   make(map[string]*models.KnowledgeEntry, len(entries)),
		outlinks:  make(map[string][]string),
		backlinks: make(map[string][]string),
	}
	for _, e := range entries {
		g.entries[strings.ToLower(e.Title)] = e
	}
	for _, e := range entries {
		from := strings.ToLower(e.Title)
		seen := map[string]bool{}
		for _, m := range linkPattern.FindAllStringSubmatch(e.Body, -1) {
			target := strings.ToLower(strings.TrimSpace(m[1]))
			if target == "" || seen[target] {
				continue
			}
			if _, ok := g.entries[target]; !ok {
				continue
			}
			seen[target] = true
			g.outlinks[from] = append(g.outlinks[from], target)
			g.backlinks[target] = append(g.backlinks[target], from)
		}
	}
	return g
}

// Outlinks returns titles the given (lowercased) title links to.
func (g *Graph) Outlinks(lowerTitle string) []string { return g.outlinks[lowerTitle] }

// Backlinks returns titles that link to the given (lowercased) title.
func (g *Graph) Backlinks(lowerTitle string) []string { return g.backlinks[lowerTitle] }

// Expanded pairs a newly discovered entry with its hop-decayed bonus score.
type Expanded struct {
	Entry *models.KnowledgeEntry
	Bonus int
}

// Expand performs BFS from the already-scored matches, up to maxHops,
// following both out- and back-edges, awarding base_bonus/hop to each newly
// discovered entry (spec.md §4.5). Entries already present in matched are
// excluded from the result.
func (g *Graph) Expand(matched []Scored, maxHops, baseBonus int) []Expanded {
	if maxHops <= 0 || baseBonus <= 0 {
		return nil
	}
	visited := make(map[string]bool, len(matched))
	frontier := make([]string, 0, len(matched))
	for _, m := range matched {
		lt := strings.ToLower(m.Entry.Title)
		visited[lt] = true
		frontier = append(frontier, lt)
	}

	discovered := map[string]int{}
	for hop := 1; hop <= maxHops; hop++ {
		bonus := baseBonus / hop
		if bonus == 0 {
			break
		}
		var next []string
		for _, t := range frontier {
			for _, neighbor := range append(append([]string{}, g.Outlinks(t)...), g.Backlinks(t)...) {
				if visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				if _, ok := discovered[neighbor]; !ok {
					discovered[neighbor] = bonus
				}
				next = append(next, neighbor)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	out := make([]Expanded, 0, len(discovered))
	for title, bonus := range discovered {
		out = append(out, Expanded{Entry: g.entries[title], Bonus: bonus})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Bonus > out[j].Bonus })
	return out
}
