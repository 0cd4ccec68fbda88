package activities

import (
	"github.com/draftline-ai/orchestrator/internal/db"
	"github.com/draftline-ai/orchestrator/internal/events"
	"github.com/draftline-ai/orchestrator/internal/knowledge"
	"github.com/draftline-ai/orchestrator/internal/llm"
	"github.com/draftline-ai/orchestrator/internal/policy"
	"github.com/draftline-ai/orchestrator/internal/research"
	"github.com/draftline-ai/orchestrator/internal/subject"
)

// ConfigInput identifies the run snapshotting its funnel config. Kind feeds
// the started-instances counter.
type ConfigInput struct {
	Kind string `json:"kind"`
}

// LookupInput asks the knowledge gateway for a subject's record.
type LookupInput struct {
	Subject subject.Subject `json:"subject"`
}

// LookupOutput never carries an error; outages surface as a degraded miss.
type LookupOutput struct {
	Record knowledge.Record `json:"record"`
}

// SearchInput runs the broad-search stage. InstanceID keys the idempotency
// ledger so a retried delivery is not billed twice.
type SearchInput struct {
	InstanceID string          `json:"instance_id"`
	Subject    subject.Subject `json:"subject"`
	Pages      int             `json:"pages"`
	PerPage    int             `json:"per_page"`
	RankDecay  float64         `json:"rank_decay"`
}

// SearchOutput carries all scored snippet findings; filtering and promotion
// happen deterministically in the workflow.
type SearchOutput struct {
	Findings     []research.Finding `json:"findings"`
	PagesFetched int                `json:"pages_fetched"`
	PagesCached  int                `json:"pages_cached"`
	CostMicros   int64              `json:"cost_micros"`
}

// CrawlInput fetches full content for one promoted candidate.
type CrawlInput struct {
	InstanceID string           `json:"instance_id"`
	Kind       subject.Kind     `json:"kind"`
	Candidate  research.Finding `json:"candidate"`
}

// CrawlOutput is the promoted crawled-full finding. A chain failure is
// returned as an activity error instead; the workflow converts retry
// exhaustion into a crawl-failed marker finding.
type CrawlOutput struct {
	Finding    research.Finding `json:"finding"`
	CostMicros int64            `json:"cost_micros"`
}

// EscalateInput queries the deep-search provider for the remaining field gap.
type EscalateInput struct {
	InstanceID  string       `json:"instance_id"`
	Kind        subject.Kind `json:"kind"`
	SubjectName string       `json:"subject_name"`
	Missing     []string     `json:"missing"`
}

// EscalateOutput: Degraded means the provider was unconfigured or declined;
// the funnel proceeds with what it has.
type EscalateOutput struct {
	Findings   []research.Finding `json:"findings"`
	CostMicros int64              `json:"cost_micros"`
	Degraded   bool               `json:"degraded"`
}

// DepositInput writes an enriched record back to the knowledge service.
type DepositInput struct {
	InstanceID string           `json:"instance_id"`
	Subject    subject.Subject  `json:"subject"`
	Record     knowledge.Record `json:"record"`
}

// GenerateInput is the opaque generation service request for one draft.
type GenerateInput struct {
	InstanceID     string       `json:"instance_id"`
	Kind           subject.Kind `json:"kind"`
	SubjectName    string       `json:"subject_name"`
	Context        string       `json:"context"`
	RequiredFields []string     `json:"required_fields"`
	Partial        bool         `json:"partial"`
}

// GenerateOutput carries the draft and its token-derived cost.
type GenerateOutput struct {
	Draft      llm.Draft `json:"draft"`
	CostMicros int64     `json:"cost_micros"`
}

// AssetInput renders one media asset for an article draft.
type AssetInput struct {
	InstanceID string `json:"instance_id"`
	Title      string `json:"title"`
	Summary    string `json:"summary,omitempty"`
	Style      string `json:"style,omitempty"`
}

// AssetOutput is the rendered asset location.
type AssetOutput struct {
	AssetURL   string `json:"asset_url"`
	CostMicros int64  `json:"cost_micros"`
}

// PolicyInput evaluates the publish gate for a finished draft.
type PolicyInput struct {
	Publish policy.PublishInput `json:"publish"`
}

// PolicyOutput returns the decision plus the gate mode so the workflow can
// map an enforced deny to a policy-class failure.
type PolicyOutput struct {
	Decision policy.Decision `json:"decision"`
	Mode     string          `json:"mode"`
}

// PersistInput upserts the finished result. Exactly one of Company/Article
// is set, selected by Kind.
type PersistInput struct {
	InstanceID string            `json:"instance_id"`
	Kind       subject.Kind      `json:"kind"`
	Company    *db.CompanyRecord `json:"company,omitempty"`
	Article    *db.ArticleRecord `json:"article,omitempty"`
}

// PersistOutput reports the durable row and whether it was created fresh.
type PersistOutput struct {
	RecordID string `json:"record_id"`
	Created  bool   `json:"created"`
}

// SnapshotInput archives a terminal instance state for inspection.
type SnapshotInput struct {
	Snapshot db.Snapshot `json:"snapshot"`
}

// ProgressInput publishes one progress event. Terminal events additionally
// record the instance's terminal metrics.
type ProgressInput struct {
	Event           events.Event `json:"event"`
	Terminal        bool         `json:"terminal"`
	Status          string       `json:"status,omitempty"`
	DurationSeconds float64      `json:"duration_seconds,omitempty"`
	CostMicros      int64        `json:"cost_micros,omitempty"`
	Partial         bool         `json:"partial,omitempty"`
}
