package feature

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathsFor_DerivesSpecAndPlanPaths(t *testing.T) {
	paths := PathsFor("/project/.ralph", "add-search")
	require.Equal(t, filepath.Join("/project/.ralph", "features", "add-search", "spec.md"), paths.SpecPath)
	require.Equal(t, filepath.Join("/project/.ralph", "features", "add-search", "plan.md"), paths.PlanPath)
}
