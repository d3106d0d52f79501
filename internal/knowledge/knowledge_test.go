package knowledge

import (
	"strings"
	"testing"

	"github.com/dotcommander/ralph/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_DedupOnExactTitleMatch(t *testing.T) {
	dir := t.TempDir()

	_, err := Write(dir, "Rust Testing Patterns", []string{"rust", "testing", "patterns"}, "", "A")
	require.NoError(t, err)

	_, err = Write(dir, "rust testing patterns", []string{"rust", "testing", "new"}, "", "B")
	require.NoError(t, err)

	entries, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].Body)
	assert.ElementsMatch(t, []string{"rust", "testing", "patterns", "new"}, entries[0].Tags)
}

func TestWrite_DedupOnTagOverlapAndTitleSubstring(t *testing.T) {
	dir := t.TempDir()

	_, err := Write(dir, "Rust Testing Patterns", []string{"rust", "testing", "patterns"}, "", "A")
	require.NoError(t, err)

	// "Rust Testing" is a substring of "Rust Testing Patterns" and shares 2/3 tags.
	_, err = Write(dir, "Rust Testing", []string{"rust", "testing", "new"}, "", "B")
	require.NoError(t, err)

	entries, err := ReadAll(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "B", entries[0].Body)
}

func TestWrite_NoOverlapCreatesSeparateFile(t *testing.T) {
	dir := t.TempDir()

	_, err := Write(dir, "Rust Testing Patterns", []string{"rust", "testing"}, "", "A")
	require.NoError(t, err)
	_, err = Write(dir, "Go Concurrency Notes", []string{"go", "concurrency"}, "", "B")
	require.NoError(t, err)

	entries, err := ReadAll(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWrite_EmptyTagsRejected(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(dir, "No Tags", nil, "", "body")
	assert.Error(t, err)
}

func TestSlugify_StableAndBounded(t *testing.T) {
	title := "  Some Title!! With -- Weird_Chars "
	s := Slugify(title)
	assert.Equal(t, s, Slugify(s))
	assert.LessOrEqual(t, len(s), maxSlugLength)
	assert.False(t, strings.HasPrefix(s, "-"))
	assert.False(t, strings.HasSuffix(s, "-"))
}

func TestSlugify_LongTitleCappedWithoutTrailingDash(t *testing.T) {
	title := strings.Repeat("word ", 40)
	s := Slugify(title)
	assert.LessOrEqual(t, len(s), maxSlugLength)
	assert.False(t, strings.HasSuffix(s, "-"))
}

func TestBuildGraph_DropsLinksToUnknownTitles(t *testing.T) {
	entries := []*models.KnowledgeEntry{
		{Title: "A", Tags: []string{"x"}, Body: "see [[B]] and [[Missing]]"},
		{Title: "B", Tags: []string{"y"}, Body: "no links here"},
	}
	g := BuildGraph(entries)
	assert.Contains(t, g.Outlinks("a"), "b")
	assert.Empty(t, g.Outlinks("b"))
	assert.Contains(t, g.Backlinks("b"), "a")
}
