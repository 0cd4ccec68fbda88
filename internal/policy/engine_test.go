package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testPolicy = `
package draftline.publish

default allow = false

allow {
	count(deny) == 0
}

decision = {"allow": allow, "reasons": sort([msg | deny[msg]])}

deny[msg] {
	input.coverage < 0.4
	msg := "coverage below floor"
}

deny[msg] {
	input.partial
	input.degraded
	msg := "partial and degraded"
}
`

func writePolicyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "publish.rego"), []byte(testPolicy), 0o644))
	return dir
}

func TestEvaluateAllowsHealthyDraft(t *testing.T) {
	engine, err := NewEngine(Config{Path: writePolicyDir(t), Mode: ModeEnforce}, zaptest.NewLogger(t))
	require.NoError(t, err)

	d, err := engine.Evaluate(context.Background(), PublishInput{
		Kind:     "company",
		Slug:     "acme-corp",
		Coverage: 0.8,
	})
	require.NoError(t, err)
	assert.True(t, d.Allow)
	assert.Empty(t, d.Reasons)
}

func TestEvaluateDeniesWithReasons(t *testing.T) {
	engine, err := NewEngine(Config{Path: writePolicyDir(t), Mode: ModeEnforce}, zaptest.NewLogger(t))
	require.NoError(t, err)

	d, err := engine.Evaluate(context.Background(), PublishInput{
		Kind:     "article",
		Slug:     "rocket-news",
		Coverage: 0.1,
		Partial:  true,
		Degraded: true,
	})
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, []string{"coverage below floor", "partial and degraded"}, d.Reasons)
}

func TestDryRunOverridesDeny(t *testing.T) {
	engine, err := NewEngine(Config{Path: writePolicyDir(t), Mode: ModeDryRun}, zaptest.NewLogger(t))
	require.NoError(t, err)

	d, err := engine.Evaluate(context.Background(), PublishInput{Coverage: 0.1})
	require.NoError(t, err)
	assert.True(t, d.Allow)
	assert.True(t, d.DryRun)
	assert.NotEmpty(t, d.Reasons)
}

func TestModeOffAllowsEverything(t *testing.T) {
	engine, err := NewEngine(Config{Mode: ModeOff}, zaptest.NewLogger(t))
	require.NoError(t, err)

	d, err := engine.Evaluate(context.Background(), PublishInput{Coverage: 0})
	require.NoError(t, err)
	assert.True(t, d.Allow)
}

func TestMissingPoliciesFailOpenAndClosed(t *testing.T) {
	empty := t.TempDir()

	engine, err := NewEngine(Config{Path: empty, Mode: ModeEnforce}, zaptest.NewLogger(t))
	require.NoError(t, err)
	d, err := engine.Evaluate(context.Background(), PublishInput{Coverage: 0})
	require.NoError(t, err)
	assert.True(t, d.Allow, "fail-open gate allows when no policies loaded")

	_, err = NewEngine(Config{Path: empty, Mode: ModeEnforce, FailClosed: true}, zaptest.NewLogger(t))
	assert.Error(t, err, "fail-closed gate refuses to start without policies")

	require.NoError(t, os.WriteFile(filepath.Join(empty, "broken.rego"), []byte("not rego at all {"), 0o644))
	_, err = NewEngine(Config{Path: empty, Mode: ModeEnforce, FailClosed: true}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
