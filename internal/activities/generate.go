package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/draftline-ai/orchestrator/internal/constants"
	"github.com/draftline-ai/orchestrator/internal/llm"
	"github.com/draftline-ai/orchestrator/internal/media"
)

// GenerateDraft calls the generation service with the assembled context.
// Ledger-cached so a redelivered task never re-spends tokens.
func (p *Pool) GenerateDraft(ctx context.Context, in GenerateInput) (GenerateOutput, error) {
	var out GenerateOutput
	key, ok := p.fromLedger(ctx, in.InstanceID, constants.GenerateDraftActivity, in, &out)
	if ok {
		return out, nil
	}

	draft, cost, err := p.LLM.Generate(ctx, llm.Request{
		Kind:           in.Kind,
		SubjectName:    in.SubjectName,
		Context:        in.Context,
		RequiredFields: in.RequiredFields,
		Partial:        in.Partial,
	})
	if err != nil {
		return GenerateOutput{}, fmt.Errorf("generate draft for %q: %w", in.SubjectName, err)
	}
	out = GenerateOutput{Draft: draft, CostMicros: cost}

	activity.GetLogger(ctx).Info("Draft generated",
		"subject", in.SubjectName,
		"sections", len(draft.Sections),
		"completeness", draft.Completeness,
		"tokens", draft.TokensUsed,
	)

	p.toLedger(ctx, key, out)
	return out, nil
}

// GenerateAsset renders the article's media asset. Article workflows only.
func (p *Pool) GenerateAsset(ctx context.Context, in AssetInput) (AssetOutput, error) {
	var out AssetOutput
	key, ok := p.fromLedger(ctx, in.InstanceID, constants.GenerateAssetActivity, in, &out)
	if ok {
		return out, nil
	}

	url, cost, err := p.Media.GenerateAsset(ctx, media.AssetSpec{
		Title:   in.Title,
		Summary: in.Summary,
		Style:   in.Style,
	})
	if err != nil {
		return AssetOutput{}, fmt.Errorf("generate asset for %q: %w", in.Title, err)
	}
	out = AssetOutput{AssetURL: url, CostMicros: cost}

	p.toLedger(ctx, key, out)
	return out, nil
}
