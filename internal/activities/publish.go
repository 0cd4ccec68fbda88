package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/draftline-ai/orchestrator/internal/constants"
	"github.com/draftline-ai/orchestrator/internal/subject"
)

// CheckPublishPolicy evaluates the OPA gate. The decision travels back to
// the workflow, which maps an enforced deny to a policy-class failure.
func (p *Pool) CheckPublishPolicy(ctx context.Context, in PolicyInput) (PolicyOutput, error) {
	decision, err := p.Policy.Evaluate(ctx, in.Publish)
	if err != nil {
		return PolicyOutput{}, fmt.Errorf("publish policy evaluation: %w", err)
	}
	activity.GetLogger(ctx).Info("Publish policy evaluated",
		"slug", in.Publish.Slug,
		"allow", decision.Allow,
		"reasons", decision.Reasons,
	)
	return PolicyOutput{Decision: decision, Mode: string(p.Policy.Mode())}, nil
}

// PersistResult writes the finished draft in one transaction, upserting by
// slug. Ledger-cached so redelivery returns the recorded row id instead of
// re-running the upsert.
func (p *Pool) PersistResult(ctx context.Context, in PersistInput) (PersistOutput, error) {
	var out PersistOutput
	key, ok := p.fromLedger(ctx, in.InstanceID, constants.PersistResultActivity, in, &out)
	if ok {
		return out, nil
	}

	var (
		id      string
		created bool
		err     error
	)
	switch in.Kind {
	case subject.KindCompany:
		if in.Company == nil {
			return PersistOutput{}, fmt.Errorf("persist: company record missing")
		}
		id, created, err = p.Store.SaveCompany(ctx, *in.Company)
	case subject.KindArticle:
		if in.Article == nil {
			return PersistOutput{}, fmt.Errorf("persist: article record missing")
		}
		id, created, err = p.Store.SaveArticle(ctx, *in.Article)
	default:
		return PersistOutput{}, fmt.Errorf("persist: unknown kind %q", in.Kind)
	}
	if err != nil {
		return PersistOutput{}, fmt.Errorf("persist result: %w", err)
	}

	out = PersistOutput{RecordID: id, Created: created}
	activity.GetLogger(ctx).Info("Result persisted",
		"kind", string(in.Kind),
		"record_id", id,
		"created", created,
	)

	p.toLedger(ctx, key, out)
	return out, nil
}
