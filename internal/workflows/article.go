package workflows

import (
	"go.temporal.io/sdk/workflow"

	"github.com/draftline-ai/orchestrator/internal/activities"
	"github.com/draftline-ai/orchestrator/internal/constants"
	"github.com/draftline-ai/orchestrator/internal/db"
	"github.com/draftline-ai/orchestrator/internal/subject"
	"github.com/draftline-ai/orchestrator/internal/workflows/opts"
)

// ArticleWorkflow researches a topic and publishes an article with a
// rendered media asset attached.
func ArticleWorkflow(ctx workflow.Context, input SubjectInput) (RunResult, error) {
	input.Kind = string(subject.KindArticle)
	return run(ctx, input, articleStrategy{})
}

type articleStrategy struct{}

// persist renders the media asset first, then writes the article. Asset
// failure after retries degrades the instance rather than failing it; the
// article publishes without media.
func (articleStrategy) persist(ctx workflow.Context, st *runState) error {
	var asset activities.AssetOutput
	err := workflow.ExecuteActivity(opts.WithMediaOptions(ctx),
		constants.GenerateAssetActivity,
		activities.AssetInput{
			InstanceID: st.input.InstanceID,
			Title:      st.draft.Title,
			Summary:    st.draft.Summary,
			Style:      st.input.Metadata["style"],
		},
	).Get(ctx, &asset)
	switch {
	case err != nil && wasCancelled(ctx, err):
		return err
	case err != nil:
		st.degrade("media")
		workflow.GetLogger(ctx).Warn("Media asset generation failed, publishing without asset",
			"error", err,
		)
	default:
		st.assetURL = asset.AssetURL
		st.ledger.Add(asset.CostMicros)
	}

	rec := db.ArticleRecord{
		Slug:         st.sub.Slug,
		Topic:        st.sub.Name,
		Title:        st.draft.Title,
		Summary:      st.draft.Summary,
		Coverage:     st.coverage,
		Completeness: st.draft.Completeness,
		Partial:      st.partial,
		CostMicros:   st.ledger.SpentMicros,
		MediaURL:     st.assetURL,
		Payload:      st.payload(),
	}
	var out activities.PersistOutput
	if err := workflow.ExecuteActivity(opts.WithPersistOptions(ctx),
		constants.PersistResultActivity,
		activities.PersistInput{
			InstanceID: st.input.InstanceID,
			Kind:       subject.KindArticle,
			Article:    &rec,
		},
	).Get(ctx, &out); err != nil {
		return err
	}
	st.recordID = out.RecordID
	st.created = out.Created
	return nil
}
