// Package activities implements every activity the two workflow kinds run.
// One Pool is built in main and shared by all instances on the worker; it is
// immutable after construction, so activities are safe under the worker's
// global concurrency ceiling.
package activities

import (
	"context"

	"go.uber.org/zap"

	"github.com/draftline-ai/orchestrator/internal/config"
	"github.com/draftline-ai/orchestrator/internal/db"
	"github.com/draftline-ai/orchestrator/internal/events"
	"github.com/draftline-ai/orchestrator/internal/idempotency"
	"github.com/draftline-ai/orchestrator/internal/knowledge"
	"github.com/draftline-ai/orchestrator/internal/llm"
	"github.com/draftline-ai/orchestrator/internal/media"
	"github.com/draftline-ai/orchestrator/internal/metrics"
	"github.com/draftline-ai/orchestrator/internal/policy"
	"github.com/draftline-ai/orchestrator/internal/research"
)

// Pool aggregates the clients activities need. Optional fields (Ledger,
// Escalator, Media, Events) may be nil; activities degrade accordingly.
type Pool struct {
	Knowledge *knowledge.Gateway
	Search    *research.SearchClient
	Crawler   *research.Chain
	Escalator *research.Escalator
	LLM       *llm.Client
	Media     *media.Client
	Store     *db.Store
	Ledger    *idempotency.Ledger
	Events    *events.Hub
	Policy    *policy.Engine

	// FunnelConfig returns the current funnel tuning; backed by the hot
	// reloading config manager in production.
	FunnelConfig func() config.FunnelConfig

	Logger *zap.Logger
}

// GetFunnelConfig snapshots the funnel tuning for one workflow run. The
// workflow calls this exactly once so a live reload never changes an
// instance mid-flight. Doubles as the instance-start marker for metrics.
func (p *Pool) GetFunnelConfig(ctx context.Context, in ConfigInput) (config.FunnelConfig, error) {
	metrics.WorkflowsStarted.WithLabelValues(in.Kind).Inc()
	metrics.ActiveInstances.Inc()
	if p.FunnelConfig == nil {
		return config.Defaults().Funnel, nil
	}
	return p.FunnelConfig(), nil
}

// fromLedger loads a recorded result for (instance, activity, input) into
// dest. Returns false when the ledger is absent, degraded, or has no entry.
func (p *Pool) fromLedger(ctx context.Context, instanceID, activityName string, input, dest interface{}) (string, bool) {
	if p.Ledger == nil {
		return "", false
	}
	key, err := idempotency.Key(instanceID, activityName, input)
	if err != nil {
		p.Logger.Warn("Ledger key derivation failed",
			zap.String("activity", activityName),
			zap.Error(err),
		)
		return "", false
	}
	if p.Ledger.Load(ctx, key, dest) {
		p.Logger.Debug("Activity result served from ledger",
			zap.String("activity", activityName),
			zap.String("instance_id", instanceID),
		)
		return key, true
	}
	return key, false
}

// toLedger records a completed result under the key fromLedger derived.
func (p *Pool) toLedger(ctx context.Context, key string, result interface{}) {
	if p.Ledger == nil || key == "" {
		return
	}
	p.Ledger.Store(ctx, key, result)
}
