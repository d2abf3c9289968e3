//go:build e2e

package e2e

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/cofounder/internal/export"
	"github.com/dusk-indust/cofounder/internal/generator"
	"github.com/dusk-indust/cofounder/internal/orchestrator"
)

var update = flag.Bool("update", false, "update golden files")

// goldenDir returns the path to the testdata/golden directory.
func goldenDir() string {
	return filepath.Join("..", "..", "testdata", "golden")
}

// runPipelineForGolden runs the dry-run pipeline and exports markdown into a
// temporary directory.
func runPipelineForGolden(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := dryRunPipeline(t, generator.Echo{}).Run(ctx, idea)
	require.NoError(t, err)

	outputDir := t.TempDir()
	_, err = export.WriteArtifacts(outputDir, export.NewDocument(idea, res), []export.Format{export.FormatMarkdown})
	require.NoError(t, err)
	return outputDir
}

// TestGolden compares the dry-run sections against golden files. If golden
// files do not exist, the test is skipped with a message to run with -update.
func TestGolden(t *testing.T) {
	outputDir := runPipelineForGolden(t)

	for _, k := range orchestrator.Keys() {
		name := export.MarkdownFile(k)
		t.Run(name, func(t *testing.T) {
			golden, err := os.ReadFile(filepath.Join(goldenDir(), name))
			if os.IsNotExist(err) {
				t.Skipf("golden file %s not found; run with -update to generate", name)
				return
			}
			require.NoError(t, err)

			actual, err := os.ReadFile(filepath.Join(outputDir, name))
			require.NoError(t, err)
			assert.Equal(t, string(golden), string(actual), "%s does not match golden file", name)
		})
	}
}

// TestUpdateGolden regenerates golden files from the current pipeline output.
// Run with: go test -tags e2e -run TestUpdateGolden ./internal/e2e/ -update
func TestUpdateGolden(t *testing.T) {
	if !*update {
		t.Skip("skipping golden file update; run with -update flag")
	}

	outputDir := runPipelineForGolden(t)
	require.NoError(t, os.MkdirAll(goldenDir(), 0o755))

	for _, k := range orchestrator.Keys() {
		name := export.MarkdownFile(k)
		data, err := os.ReadFile(filepath.Join(outputDir, name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(goldenDir(), name), data, 0o644))
		t.Logf("updated %s", name)
	}
}
