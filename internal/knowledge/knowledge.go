// Package knowledge persists and retrieves markdown notes with YAML
// frontmatter: writing with dedup against existing notes, scoring against a
// task's context, link-graph expansion, and budgeted rendering.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dotcommander/ralph/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	maxBodyWords  = 500
	truncMarker   = "[truncated]"
	maxSlugLength = 80
)

// frontmatter mirrors models.KnowledgeEntry's persisted fields; yaml tags
// control the on-disk key names.
type frontmatter struct {
	Title     string    `yaml:"title"`
	Tags      []string  `yaml:"tags"`
	Feature   string    `yaml:"feature,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
}

// Write persists a new note or merges it into an existing one, following
// spec.md §4.5's three-rule dedup cascade. Returns the entry as written.
func Write(dir, title string, tags []string, feature, body string) (*models.KnowledgeEntry, error) {
	cleanTags := cleanTagSet(tags)
	if len(cleanTags) == 0 {
		return nil, fmt.Errorf("knowledge entry %q: no tags after cleaning", title)
	}
	body = truncateBody(body)

	existing, err := ReadAll(dir)
	if err != nil {
		return nil, fmt.Errorf("read existing knowledge: %w", err)
	}

	if match := findExactTitleMatch(existing, title); match != nil {
		return overwrite(dir, match.Slug, title, unionTags(match.Tags, cleanTags), feature, body)
	}
	if match := findOverlapMatch(existing, title, cleanTags); match != nil {
		return overwrite(dir, match.Slug, title, unionTags(match.Tags, cleanTags), feature, body)
	}

	slug := uniqueSlug(dir, Slugify(title), existing)
	return overwrite(dir, slug, title, cleanTags, feature, body)
}

func overwrite(dir, slug, title string, tags []string, feature, body string) (*models.KnowledgeEntry, error) {
	entry := &models.KnowledgeEntry{
		Title:     title,
		Tags:      tags,
		Feature:   feature,
		CreatedAt: time.Now().UTC(),
		Body:      body,
		Slug:      slug,
	}
	if err := writeFile(dir, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func writeFile(dir string, e *models.KnowledgeEntry) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create knowledge dir: %w", err)
	}
	fm := frontmatter{Title: e.Title, Tags: e.Tags, Feature: e.Feature, CreatedAt: e.CreatedAt}
	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshal frontmatter: %w", err)
	}
	content := fmt.Sprintf("---\n%s---\n\n%s\n", fmBytes, e.Body)
	path := filepath.Join(dir, e.Slug+".md")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write knowledge file %s: %w", path, err)
	}
	return nil
}

// ReadAll scans dir for markdown files and parses each one's frontmatter,
// silently skipping malformed files.
func ReadAll(dir string) ([]*models.KnowledgeEntry, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read knowledge dir: %w", err)
	}

	var out []*models.KnowledgeEntry
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, de.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		entry, ok := parseNote(raw)
		if !ok {
			continue
		}
		entry.Slug = strings.TrimSuffix(de.Name(), ".md")
		out = append(out, entry)
	}
	return out, nil
}

var frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n\n?(.*)$`)

func parseNote(raw []byte) (*models.KnowledgeEntry, bool) {
	m := frontmatterPattern.FindSubmatch(raw)
	if m == nil {
		return nil, false
	}
	var fm frontmatter
	if err := yaml.Unmarshal(m[1], &fm); err != nil {
		return nil, false
	}
	if fm.Title == "" || len(fm.Tags) == 0 {
		return nil, false
	}
	return &models.KnowledgeEntry{
		Title:     fm.Title,
		Tags:      fm.Tags,
		Feature:   fm.Feature,
		CreatedAt: fm.CreatedAt,
		Body:      strings.TrimSpace(string(m[2])),
	}, true
}

func cleanTagSet(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func unionTags(a, b []string) []string {
	return cleanTagSet(append(append([]string{}, a...), b...))
}

func truncateBody(body string) string {
	words := strings.Fields(body)
	if len(words) <= maxBodyWords {
		return body
	}
	return strings.Join(words[:maxBodyWords], " ") + " " + truncMarker
}

func findExactTitleMatch(entries []*models.KnowledgeEntry, title string) *models.KnowledgeEntry {
	lower := strings.ToLower(title)
	for _, e := range entries {
		if strings.ToLower(e.Title) == lower {
			return e
		}
	}
	return nil
}

func findOverlapMatch(entries []*models.KnowledgeEntry, title string, tags []string) *models.KnowledgeEntry {
	lowerTitle := strings.ToLower(title)
	tagSet := toSet(tags)
	for _, e := range entries {
		existingSet := toSet(e.Tags)
		overlap := overlapRatio(tagSet, existingSet)
		if overlap <= 0.5 {
			continue
		}
		existingLower := strings.ToLower(e.Title)
		if strings.Contains(lowerTitle, existingLower) || strings.Contains(existingLower, lowerTitle) {
			return e
		}
	}
	return nil
}

func toSet(tags []string) map[string]bool {
	s := make(map[string]bool, len(tags))
	for _, t := range tags {
		s[t] = true
	}
	return s
}

func overlapRatio(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(inter) / float64(smaller)
}

// Slugify converts a title into a filesystem-safe, stable slug: lowercase,
// non-alphanumerics collapse to '-', leading/trailing '-' trimmed, capped at
// 80 characters with no trailing '-' (spec.md §4.5, §8 stability property).
func Slugify(title string) string {
	lower := strings.ToLower(title)
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
		s = strings.TrimRight(s, "-")
	}
	if s == "" {
		s = "note"
	}
	return s
}

func uniqueSlug(dir, base string, existing []*models.KnowledgeEntry) string {
	taken := map[string]bool{}
	for _, e := range existing {
		taken[e.Slug] = true
	}
	if _, err := os.Stat(filepath.Join(dir, base+".md")); err == nil {
		taken[base] = true
	}
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if len(candidate) > maxSlugLength {
			candidate = candidate[:maxSlugLength]
		}
		if !taken[candidate] {
			return candidate
		}
	}
}

// Scored pairs an entry with its relevance score.
type Scored struct {
	Entry *models.KnowledgeEntry
	Score int
}

// Score ranks entries against a task's title/description, the current
// feature name, and recently modified file paths, per spec.md §4.5.
func Score(entries []*models.KnowledgeEntry, title, description, featureName string, modifiedFiles []string) []Scored {
	titleTokens := toSet(lowerFields(title + " " + description))
	fileTokens := toSet(filePathTokens(modifiedFiles))
	featureLower := strings.ToLower(featureName)

	var out []Scored
	for _, e := range entries {
		score := 0
		for _, tag := range e.Tags {
			if titleTokens[tag] {
				score += 2
			}
			if featureLower != "" && tag == featureLower {
				score += 2
			}
			if fileTokens[tag] {
				score++
			}
		}
		if score > 0 {
			out = append(out, Scored{Entry: e, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func lowerFields(s string) []string {
	fields := strings.Fields(s)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.ToLower(strings.Trim(f, `.,;:!?()[]{}'"`))
	}
	return out
}

var pathSplitter = regexp.MustCompile(`[/.\-_]+`)

func filePathTokens(paths []string) []string {
	var out []string
	for _, p := range paths {
		for _, tok := range pathSplitter.Split(p, -1) {
			tok = strings.ToLower(tok)
			if len(tok) > 2 {
				out = append(out, tok)
			}
		}
	}
	return out
}
