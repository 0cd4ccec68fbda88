package workflows

import (
	"go.temporal.io/sdk/workflow"

	"github.com/draftline-ai/orchestrator/internal/activities"
	"github.com/draftline-ai/orchestrator/internal/constants"
	"github.com/draftline-ai/orchestrator/internal/db"
	"github.com/draftline-ai/orchestrator/internal/subject"
	"github.com/draftline-ai/orchestrator/internal/workflows/opts"
)

// CompanyProfileWorkflow researches a company and publishes its profile.
func CompanyProfileWorkflow(ctx workflow.Context, input SubjectInput) (RunResult, error) {
	input.Kind = string(subject.KindCompany)
	return run(ctx, input, companyStrategy{})
}

type companyStrategy struct{}

func (companyStrategy) persist(ctx workflow.Context, st *runState) error {
	rec := db.CompanyRecord{
		Slug:         st.sub.Slug,
		Name:         st.sub.Name,
		Title:        st.draft.Title,
		Summary:      st.draft.Summary,
		Coverage:     st.coverage,
		Completeness: st.draft.Completeness,
		Partial:      st.partial,
		CostMicros:   st.ledger.SpentMicros,
		Payload:      st.payload(),
	}
	var out activities.PersistOutput
	if err := workflow.ExecuteActivity(opts.WithPersistOptions(ctx),
		constants.PersistResultActivity,
		activities.PersistInput{
			InstanceID: st.input.InstanceID,
			Kind:       subject.KindCompany,
			Company:    &rec,
		},
	).Get(ctx, &out); err != nil {
		return err
	}
	st.recordID = out.RecordID
	st.created = out.Created
	return nil
}
