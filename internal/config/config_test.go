package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	f, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "draftline-queue", f.Worker.TaskQueue)
	assert.Equal(t, 0.75, f.Funnel.CoverageThreshold)
	assert.Equal(t, 2, f.Funnel.SearchPages)
	assert.Equal(t, 10, f.Funnel.CrawlBudget)
	assert.Equal(t, 2, f.Funnel.CrawlRetries)
	assert.Equal(t, int64(500_000), f.Funnel.CostCeilingMicros)
}

func TestLoadReadsYAMLAndEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "features.yaml")
	doc := []byte(`
worker:
  task_queue: custom-queue
  max_concurrent_workflows: 7
funnel:
  coverage_threshold: 0.6
  crawl_budget: 5
  cost_ceiling_micros: 250000
`)
	require.NoError(t, os.WriteFile(path, doc, 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("TASK_QUEUE", "env-queue")
	t.Setenv("COST_CEILING_MICROS", "100000")

	f, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-queue", f.Worker.TaskQueue, "env must override file")
	assert.Equal(t, 7, f.Worker.MaxConcurrentWorkflows)
	assert.Equal(t, 0.6, f.Funnel.CoverageThreshold)
	assert.Equal(t, 5, f.Funnel.CrawlBudget)
	assert.Equal(t, int64(100_000), f.Funnel.CostCeilingMicros)
	// Untouched fields keep defaults.
	assert.Equal(t, 0.90, f.Funnel.RankDecay)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "features.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker: [not a map"), 0o644))
	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("DL_TEST_STR", "value")
	t.Setenv("DL_TEST_INT", "42")
	t.Setenv("DL_TEST_BAD", "nan")

	assert.Equal(t, "value", GetEnvOrDefault("DL_TEST_STR", "d"))
	assert.Equal(t, "d", GetEnvOrDefault("DL_TEST_MISSING", "d"))
	assert.Equal(t, 42, GetEnvOrDefaultInt("DL_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvOrDefaultInt("DL_TEST_BAD", 1))
}
