package acp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextFile_AllowListDeniesOutsidePaths(t *testing.T) {
	dir := t.TempDir()
	s := &Session{
		opts: Options{
			WorkingDirectory:  dir,
			AllowedWritePaths: []string{"plan.md"},
		},
		toolCallSeen: map[string]bool{},
	}

	raw, err := json.Marshal(WriteTextFileParams{Path: "other/main.rs", Content: "fn main() {}"})
	require.NoError(t, err)

	_, err = s.writeTextFile(raw)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "other/main.rs"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteTextFile_AllowListPermitsExactMatch(t *testing.T) {
	dir := t.TempDir()
	s := &Session{
		opts: Options{
			WorkingDirectory:  dir,
			AllowedWritePaths: []string{"plan.md"},
		},
		toolCallSeen: map[string]bool{},
	}

	raw, err := json.Marshal(WriteTextFileParams{Path: "plan.md", Content: "the plan"})
	require.NoError(t, err)

	_, err = s.writeTextFile(raw)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(dir, "plan.md"))
	require.NoError(t, err)
	assert.Equal(t, "the plan", string(content))
	assert.Contains(t, s.ModifiedFiles(), "plan.md")
}

func TestWriteTextFile_NoAllowListIsUnrestricted(t *testing.T) {
	dir := t.TempDir()
	s := &Session{opts: Options{WorkingDirectory: dir}, toolCallSeen: map[string]bool{}}

	raw, err := json.Marshal(WriteTextFileParams{Path: "anything/here.go", Content: "package x"})
	require.NoError(t, err)

	_, err = s.writeTextFile(raw)
	require.NoError(t, err)
}

func TestReadTextFile_SlicesLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("l1\nl2\nl3\nl4\n"), 0o600))

	s := &Session{opts: Options{WorkingDirectory: dir}}
	raw, err := json.Marshal(ReadTextFileParams{Path: "f.txt", LineOffset: 2, Limit: 2})
	require.NoError(t, err)

	result, err := s.readTextFile(raw)
	require.NoError(t, err)
	assert.Equal(t, "l2\nl3", result.(ReadTextFileResult).Content)
}
