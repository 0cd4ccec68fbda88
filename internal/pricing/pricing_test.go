package pricing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRates(t *testing.T, doc string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	t.Setenv("PRICING_CONFIG_PATH", path)
	defaultPaths[0] = path
	Reload()
	t.Cleanup(func() {
		defaultPaths[0] = os.Getenv("PRICING_CONFIG_PATH")
		Reload()
	})
}

func TestRatesFromYAML(t *testing.T) {
	writeRates(t, `
rates:
  search_page_micros: 2000
  premium_crawl_micros: 15000
  deepsearch_result_micros: 7000
  media_asset_micros: 30000
  llm:
    default_per_1k_micros: 4000
    models_per_1k_micros:
      draft-large: 9000
`)

	assert.Equal(t, int64(2000), SearchPageCost())
	assert.Equal(t, int64(15000), PremiumCrawlCost())
	assert.Equal(t, int64(7000), DeepsearchResultCost())
	assert.Equal(t, int64(30000), MediaAssetCost())
}

func TestLLMTokenCostPerModel(t *testing.T) {
	writeRates(t, `
rates:
  llm:
    default_per_1k_micros: 4000
    models_per_1k_micros:
      draft-large: 9000
`)

	// 2000 tokens at 9000/1k.
	assert.Equal(t, int64(18000), LLMTokenCost("draft-large", 2000))
	// Unknown model falls back to the default rate.
	assert.Equal(t, int64(4000), LLMTokenCost("other", 1000))
	// Partial thousands round up.
	assert.Equal(t, int64(6000), LLMTokenCost("other", 1500))
	assert.Equal(t, int64(0), LLMTokenCost("other", 0))
}

func TestCompiledDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("PRICING_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	defaultPaths[0] = os.Getenv("PRICING_CONFIG_PATH")
	// Point the search away from any repo config copy.
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	Reload()

	assert.Equal(t, int64(1000), SearchPageCost())
	assert.Equal(t, int64(10000), PremiumCrawlCost())
	assert.Equal(t, int64(5000), DeepsearchResultCost())
	assert.Equal(t, int64(25000), MediaAssetCost())
	assert.Equal(t, int64(3000), LLMTokenCost("any", 1000))
}
