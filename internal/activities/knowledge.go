package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/draftline-ai/orchestrator/internal/constants"
)

// LookupKnowledge consults the knowledge cache. It never returns an error:
// a backend outage yields a degraded miss and the funnel runs in full.
func (p *Pool) LookupKnowledge(ctx context.Context, in LookupInput) (LookupOutput, error) {
	rec := p.Knowledge.Lookup(ctx, in.Subject)
	activity.GetLogger(ctx).Info("Knowledge lookup",
		"subject_id", in.Subject.ID,
		"coverage", rec.Coverage,
		"degraded", rec.Degraded,
	)
	return LookupOutput{Record: rec}, nil
}

// DepositKnowledge writes the enriched record back. Best-effort from the
// workflow's point of view: the caller fires it on a disconnected context
// and ignores the outcome; errors here only drive the retry policy.
func (p *Pool) DepositKnowledge(ctx context.Context, in DepositInput) error {
	var done struct {
		Deposited bool `json:"deposited"`
	}
	key, ok := p.fromLedger(ctx, in.InstanceID, constants.DepositKnowledgeActivity, in, &done)
	if ok && done.Deposited {
		return nil
	}

	if err := p.Knowledge.Deposit(ctx, in.Subject, in.Record); err != nil {
		return fmt.Errorf("deposit knowledge for %s: %w", in.Subject.ID, err)
	}
	done.Deposited = true
	p.toLedger(ctx, key, done)
	return nil
}
