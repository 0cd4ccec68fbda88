// Package policy gates publication through OPA. The engine compiles the
// .rego files under the configured directory once at startup and evaluates
// data.draftline.publish.decision against a per-instance input.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"

	"github.com/draftline-ai/orchestrator/internal/metrics"
)

// Mode controls how decisions are applied.
type Mode string

const (
	// ModeOff disables evaluation entirely; everything publishes.
	ModeOff Mode = "off"
	// ModeDryRun evaluates and records the outcome but always allows.
	ModeDryRun Mode = "dry-run"
	// ModeEnforce blocks publication on a deny.
	ModeEnforce Mode = "enforce"
)

// Config configures the publish gate.
type Config struct {
	// Path is the directory holding .rego policy files.
	Path string
	Mode Mode
	// FailClosed denies when policies cannot be loaded or evaluated.
	// Default is fail-open: a broken gate should not stop the pipeline.
	FailClosed bool
}

// PublishInput is the document the policy sees for each finished draft.
type PublishInput struct {
	Kind         string  `json:"kind"`
	Slug         string  `json:"slug"`
	Coverage     float64 `json:"coverage"`
	Completeness float64 `json:"completeness"`
	Partial      bool    `json:"partial"`
	Degraded     bool    `json:"degraded"`
	SectionCount int     `json:"section_count"`
	WordCount    int     `json:"word_count"`
	CostMicros   int64   `json:"cost_micros"`
}

// Decision is the gate's verdict.
type Decision struct {
	Allow   bool     `json:"allow"`
	Reasons []string `json:"reasons,omitempty"`
	// DryRun marks a decision that was overridden to allow.
	DryRun bool `json:"dry_run,omitempty"`
}

// Engine evaluates publish policies.
type Engine struct {
	cfg      Config
	logger   *zap.Logger
	compiled *rego.PreparedEvalQuery
}

// NewEngine loads and compiles the policies. With ModeOff, or when loading
// fails in fail-open mode, the engine degrades to an allow-everything gate.
func NewEngine(cfg Config, logger *zap.Logger) (*Engine, error) {
	e := &Engine{cfg: cfg, logger: logger}
	if cfg.Mode == "" {
		e.cfg.Mode = ModeOff
	}
	if e.cfg.Mode == ModeOff {
		return e, nil
	}

	if err := e.load(); err != nil {
		if cfg.FailClosed {
			return nil, fmt.Errorf("load publish policies: %w", err)
		}
		logger.Warn("Publish policies unavailable, gate is fail-open", zap.Error(err))
	}
	return e, nil
}

func (e *Engine) load() error {
	modules := make(map[string]string)
	err := filepath.Walk(e.cfg.Path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".rego") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read policy %s: %w", path, err)
		}
		rel, _ := filepath.Rel(e.cfg.Path, path)
		modules[strings.TrimSuffix(rel, ".rego")] = string(content)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk policy directory: %w", err)
	}
	if len(modules) == 0 {
		return fmt.Errorf("no .rego files under %s", e.cfg.Path)
	}

	opts := []func(*rego.Rego){rego.Query("data.draftline.publish.decision")}
	for name, content := range modules {
		opts = append(opts, rego.Module(name, content))
	}
	compiled, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("compile publish policies: %w", err)
	}
	e.compiled = &compiled

	e.logger.Info("Publish policies compiled",
		zap.Int("policy_count", len(modules)),
		zap.String("mode", string(e.cfg.Mode)),
	)
	return nil
}

// Mode returns the configured enforcement mode.
func (e *Engine) Mode() Mode { return e.cfg.Mode }

// Evaluate runs the publish gate. The returned error is non-nil only when
// the engine is fail-closed and evaluation itself broke.
func (e *Engine) Evaluate(ctx context.Context, input PublishInput) (Decision, error) {
	if e.cfg.Mode == ModeOff || e.compiled == nil {
		return e.finish(Decision{Allow: true, Reasons: []string{"policy gate disabled"}}), nil
	}

	doc, err := toDocument(input)
	if err != nil {
		return e.fail("input conversion failed", err)
	}
	results, err := e.compiled.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return e.fail("policy evaluation failed", err)
	}

	decision := parseResults(results)
	if e.cfg.Mode == ModeDryRun && !decision.Allow {
		e.logger.Info("Publish gate dry-run deny",
			zap.String("slug", input.Slug),
			zap.Strings("reasons", decision.Reasons),
		)
		decision.Allow = true
		decision.DryRun = true
	}
	return e.finish(decision), nil
}

func (e *Engine) fail(reason string, err error) (Decision, error) {
	e.logger.Error("Publish gate error", zap.String("reason", reason), zap.Error(err))
	if e.cfg.FailClosed {
		return e.finish(Decision{Allow: false, Reasons: []string{reason}}), err
	}
	return e.finish(Decision{Allow: true, Reasons: []string{reason + " (fail-open)"}}), nil
}

func (e *Engine) finish(d Decision) Decision {
	outcome := "deny"
	if d.Allow {
		outcome = "allow"
	}
	metrics.PolicyDecisions.WithLabelValues(string(e.cfg.Mode), outcome).Inc()
	return d
}

func toDocument(input PublishInput) (map[string]interface{}, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func parseResults(results rego.ResultSet) Decision {
	decision := Decision{Allow: false, Reasons: []string{"no matching policy rules"}}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return decision
	}

	value := results[0].Expressions[0].Value
	switch v := value.(type) {
	case map[string]interface{}:
		if allow, ok := v["allow"].(bool); ok {
			decision.Allow = allow
			decision.Reasons = nil
		}
		if reasons, ok := v["reasons"].([]interface{}); ok {
			decision.Reasons = decision.Reasons[:0]
			for _, r := range reasons {
				if s, ok := r.(string); ok {
					decision.Reasons = append(decision.Reasons, s)
				}
			}
		}
	case bool:
		decision.Allow = v
		decision.Reasons = nil
	}
	return decision
}
