package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves the PROJECT/.ralph/ state layout (spec.md §6.1).
type Paths struct {
	Root         string // PROJECT/.ralph
	DBPath       string // PROJECT/.ralph/progress.db
	FeaturesDir  string // PROJECT/.ralph/features
	KnowledgeDir string // PROJECT/.ralph/knowledge
	PromptsDir   string // PROJECT/.ralph/prompts
}

// ResolvePaths derives the standard layout rooted at projectRoot.
func ResolvePaths(projectRoot string) Paths {
	root := filepath.Join(projectRoot, ".ralph")
	return Paths{
		Root:         root,
		DBPath:       filepath.Join(root, "progress.db"),
		FeaturesDir:  filepath.Join(root, "features"),
		KnowledgeDir: filepath.Join(root, "knowledge"),
		PromptsDir:   filepath.Join(root, "prompts"),
	}
}

// EnsureDirs creates every directory in the layout, for `ralph init`.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Root, p.FeaturesDir, p.KnowledgeDir, p.PromptsDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
