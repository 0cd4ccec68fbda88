package ratecontrol

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

func TestRPMForPrefersConfiguredOverride(t *testing.T) {
	writeRates(t, `
rate_limits:
  default_rpm: 90
  providers_rpm:
    search: 240
    deepsearch: 6
`)
	assert.Equal(t, 240, RPMFor("search"))
	assert.Equal(t, 6, RPMFor("deepsearch"))
	// No override and no built-in entry falls back to the default.
	assert.Equal(t, 90, RPMFor("someprovider"))
	// Built-in entries survive when the file has no override for them.
	assert.Equal(t, 120, RPMFor("crawl"))
}

func TestLimiterForRespectsRPM(t *testing.T) {
	writeRates(t, `
rate_limits:
  providers_rpm:
    search: 120
    firehose: 0
`)
	l := LimiterFor("search")
	require.NotNil(t, l)
	assert.InDelta(t, 2.0, float64(l.Limit()), 1e-9)
	assert.Equal(t, 2, l.Burst())

	assert.Nil(t, LimiterFor("firehose"), "zero rpm means unthrottled")
}

func TestLimiterBurstFloor(t *testing.T) {
	writeRates(t, `
rate_limits:
  providers_rpm:
    media: 6
`)
	l := LimiterFor("media")
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())
}
