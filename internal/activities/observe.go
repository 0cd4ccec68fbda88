package activities

import (
	"context"

	"github.com/draftline-ai/orchestrator/internal/metrics"
)

// ArchiveSnapshot stores a terminal-state snapshot for inspection. The write
// rides the store's async queue; enqueueing cannot fail and a failed write is
// logged by the queue worker, so the activity itself always succeeds.
func (p *Pool) ArchiveSnapshot(ctx context.Context, in SnapshotInput) error {
	if p.Store == nil {
		return nil
	}
	p.Store.QueueSnapshot(in.Snapshot)
	return nil
}

// EmitProgress publishes one event on the hub. Terminal events also record
// the instance's terminal metrics so they are counted exactly once.
func (p *Pool) EmitProgress(ctx context.Context, in ProgressInput) error {
	if p.Events != nil {
		p.Events.Publish(in.Event)
	}
	if in.Terminal {
		metrics.RecordWorkflowMetrics(in.Event.Kind, in.Status, in.DurationSeconds, in.CostMicros)
		metrics.ActiveInstances.Dec()
		if in.Partial {
			metrics.CostCeilingHits.Inc()
		}
	}
	return nil
}
