package constants

// Activity names used for worker registration and workflow execution.
// Using constants eliminates magic strings and ensures consistency.
const (
	// Configuration Activities
	GetFunnelConfigActivity = "GetFunnelConfig"

	// Knowledge Cache Activities
	LookupKnowledgeActivity  = "LookupKnowledge"
	DepositKnowledgeActivity = "DepositKnowledge"

	// Research Funnel Activities
	BroadSearchActivity      = "BroadSearch"
	CrawlCandidateActivity   = "CrawlCandidate"
	EscalateResearchActivity = "EscalateResearch"

	// Generation Activities
	GenerateDraftActivity = "GenerateDraft"
	GenerateAssetActivity = "GenerateAsset"

	// Publication Activities
	CheckPublishPolicyActivity = "CheckPublishPolicy"
	PersistResultActivity      = "PersistResult"

	// Observability Activities
	ArchiveSnapshotActivity = "ArchiveSnapshot"
	EmitProgressActivity    = "EmitProgress"
)

// Workflow type names as registered on the task queue.
const (
	CompanyProfileWorkflowName = "CompanyProfileWorkflow"
	ArticleWorkflowName        = "ArticleWorkflow"
)

// DefaultTaskQueue is the single queue both workflow kinds share.
const DefaultTaskQueue = "draftline-queue"
