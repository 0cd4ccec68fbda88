// Package workflows implements the two content lifecycles as one shared
// state machine parameterized by a kind strategy. All funnel math (filter,
// merge, coverage, enrich) runs as pure functions inside workflow code so
// histories replay deterministically; everything with a side effect is an
// activity.
package workflows

// SubjectInput starts one workflow instance.
type SubjectInput struct {
	InstanceID  string            `json:"instance_id"`
	Kind        string            `json:"kind"`
	Name        string            `json:"name"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	RequestedBy string            `json:"requested_by,omitempty"`
}

// Lifecycle stages, recorded on results and progress events.
const (
	StageCreated        = "created"
	StageKnowledgeCheck = "knowledge_check"
	StageResearching    = "researching"
	StageSynthesizing   = "synthesizing"
	StageGenerating     = "generating"
	StagePersisting     = "persisting"
	StageCompleted      = "completed"
)

// Terminal statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RunResult is the terminal state of one instance. Failed instances return
// a result too, with FailureClass/FailureReason describing the cause, so
// callers always get the stage and spend that was reached.
type RunResult struct {
	Status       string   `json:"status"`
	Stage        string   `json:"stage"`
	Kind         string   `json:"kind"`
	SubjectID    string   `json:"subject_id,omitempty"`
	Slug         string   `json:"slug,omitempty"`
	Partial      bool     `json:"partial,omitempty"`
	Degraded     []string `json:"degraded,omitempty"`
	Coverage     float64  `json:"coverage"`
	FindingCount int      `json:"finding_count"`
	CostMicros   int64    `json:"cost_micros"`
	Title        string   `json:"title,omitempty"`
	Completeness float64  `json:"completeness,omitempty"`
	RecordID     string   `json:"record_id,omitempty"`
	Created      bool     `json:"created,omitempty"`
	AssetURL     string   `json:"asset_url,omitempty"`

	FailureClass  string `json:"failure_class,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}
