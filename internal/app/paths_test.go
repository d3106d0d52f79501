package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePaths_DerivesStandardLayout(t *testing.T) {
	p := ResolvePaths("/project")
	require.Equal(t, "/project/.ralph", p.Root)
	require.Equal(t, "/project/.ralph/progress.db", p.DBPath)
	require.Equal(t, "/project/.ralph/features", p.FeaturesDir)
	require.Equal(t, "/project/.ralph/knowledge", p.KnowledgeDir)
	require.Equal(t, "/project/.ralph/prompts", p.PromptsDir)
}

func TestEnsureDirs_CreatesEveryDirectory(t *testing.T) {
	root := t.TempDir()
	p := ResolvePaths(root)

	require.NoError(t, p.EnsureDirs())

	for _, dir := range []string{p.Root, p.FeaturesDir, p.KnowledgeDir, p.PromptsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestGetDBPath_OverrideTakesPrecedence(t *testing.T) {
	t.Cleanup(func() { SetDBPathOverride("") })

	SetDBPathOverride("/custom/progress.db")
	path, err := GetDBPath()
	require.NoError(t, err)
	require.Equal(t, "/custom/progress.db", path)
}

func TestGetDBPath_DefaultsToCwdLayout(t *testing.T) {
	t.Cleanup(func() { SetDBPathOverride("") })
	SetDBPathOverride("")

	cwd, err := os.Getwd()
	require.NoError(t, err)

	path, err := GetDBPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cwd, ".ralph", "progress.db"), path)
}
