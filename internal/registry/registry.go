// Package registry wires workflows and activities onto a worker under their
// stable names. Names live in internal/constants; renaming a Go function
// must never change what is registered.
package registry

import (
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"

	"github.com/draftline-ai/orchestrator/internal/activities"
	"github.com/draftline-ai/orchestrator/internal/constants"
	"github.com/draftline-ai/orchestrator/internal/workflows"

	sdkactivity "go.temporal.io/sdk/activity"
)

// RegisterWorkflows registers both lifecycle kinds.
func RegisterWorkflows(w worker.Worker, logger *zap.Logger) {
	w.RegisterWorkflowWithOptions(workflows.CompanyProfileWorkflow,
		workflow.RegisterOptions{Name: constants.CompanyProfileWorkflowName})
	w.RegisterWorkflowWithOptions(workflows.ArticleWorkflow,
		workflow.RegisterOptions{Name: constants.ArticleWorkflowName})

	logger.Info("Workflows registered",
		zap.Strings("workflows", []string{
			constants.CompanyProfileWorkflowName,
			constants.ArticleWorkflowName,
		}),
	)
}

// RegisterActivities registers the shared pool's activities.
func RegisterActivities(w worker.Worker, pool *activities.Pool, logger *zap.Logger) {
	register := func(fn interface{}, name string) {
		w.RegisterActivityWithOptions(fn, sdkactivity.RegisterOptions{Name: name})
	}

	register(pool.GetFunnelConfig, constants.GetFunnelConfigActivity)
	register(pool.LookupKnowledge, constants.LookupKnowledgeActivity)
	register(pool.DepositKnowledge, constants.DepositKnowledgeActivity)
	register(pool.BroadSearch, constants.BroadSearchActivity)
	register(pool.CrawlCandidate, constants.CrawlCandidateActivity)
	register(pool.EscalateResearch, constants.EscalateResearchActivity)
	register(pool.GenerateDraft, constants.GenerateDraftActivity)
	register(pool.GenerateAsset, constants.GenerateAssetActivity)
	register(pool.CheckPublishPolicy, constants.CheckPublishPolicyActivity)
	register(pool.PersistResult, constants.PersistResultActivity)
	register(pool.ArchiveSnapshot, constants.ArchiveSnapshotActivity)
	register(pool.EmitProgress, constants.EmitProgressActivity)

	logger.Info("Activities registered", zap.Int("count", 12))
}
