package workflows

import (
	"encoding/json"
	"strings"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/draftline-ai/orchestrator/internal/activities"
	"github.com/draftline-ai/orchestrator/internal/config"
	"github.com/draftline-ai/orchestrator/internal/constants"
	"github.com/draftline-ai/orchestrator/internal/costs"
	"github.com/draftline-ai/orchestrator/internal/db"
	"github.com/draftline-ai/orchestrator/internal/events"
	"github.com/draftline-ai/orchestrator/internal/faults"
	"github.com/draftline-ai/orchestrator/internal/knowledge"
	"github.com/draftline-ai/orchestrator/internal/llm"
	"github.com/draftline-ai/orchestrator/internal/policy"
	"github.com/draftline-ai/orchestrator/internal/research"
	"github.com/draftline-ai/orchestrator/internal/subject"
	"github.com/draftline-ai/orchestrator/internal/workflows/opts"
)

// strategy is the kind-specific tail of the lifecycle. Everything up to and
// including generation is shared; persist differs (articles render a media
// asset first).
type strategy interface {
	persist(ctx workflow.Context, st *runState) error
}

// runState is the mutable workflow state for one instance. All mutations
// happen in workflow code from activity results and pure helpers, so replay
// reconstructs it exactly.
type runState struct {
	input    SubjectInput
	sub      subject.Subject
	cfg      config.FunnelConfig
	ledger   costs.Ledger
	record   knowledge.Record
	findings []research.Finding
	coverage float64
	context  string
	draft    llm.Draft
	partial  bool
	degraded []string
	assetURL string
	recordID string
	created  bool

	depositFuture workflow.Future
}

func (st *runState) degrade(component string) {
	for _, d := range st.degraded {
		if d == component {
			return
		}
	}
	st.degraded = append(st.degraded, component)
}

func (st *runState) result(stage string) RunResult {
	return RunResult{
		Status:       StatusCompleted,
		Stage:        stage,
		Kind:         string(st.sub.Kind),
		SubjectID:    st.sub.ID,
		Slug:         st.sub.Slug,
		Partial:      st.partial,
		Degraded:     st.degraded,
		Coverage:     st.coverage,
		FindingCount: len(st.findings),
		CostMicros:   st.ledger.SpentMicros,
		Title:        st.draft.Title,
		Completeness: st.draft.Completeness,
		RecordID:     st.recordID,
		Created:      st.created,
		AssetURL:     st.assetURL,
	}
}

// payload renders the durable JSONB document persisted with the result row.
func (st *runState) payload() json.RawMessage {
	doc := struct {
		Draft    llm.Draft `json:"draft"`
		Sources  []string  `json:"sources,omitempty"`
		Degraded []string  `json:"degraded,omitempty"`
		Partial  bool      `json:"partial,omitempty"`
	}{Draft: st.draft, Degraded: st.degraded, Partial: st.partial}
	for _, f := range st.findings {
		if f.Usable() {
			doc.Sources = append(doc.Sources, f.URL)
		}
	}
	data, _ := json.Marshal(doc)
	return data
}

// run is the shared lifecycle: Created → KnowledgeCheck → [Researching →
// Synthesizing] → Generating → Persisting → Completed, with Failed and
// Cancelled terminals. Failures still return a RunResult describing what was
// reached; the workflow itself completes.
func run(ctx workflow.Context, input SubjectInput, strat strategy) (RunResult, error) {
	logger := workflow.GetLogger(ctx)

	st := &runState{input: input}
	if st.input.InstanceID == "" {
		st.input.InstanceID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}

	kind, err := subject.ParseKind(input.Kind)
	if err != nil {
		return terminal(ctx, st, StageCreated, err)
	}
	sub, err := subject.New(kind, input.Name, input.Metadata, workflow.Now(ctx))
	if err != nil {
		return terminal(ctx, st, StageCreated, err)
	}
	st.sub = sub

	if err := workflow.ExecuteActivity(opts.WithConfigOptions(ctx),
		constants.GetFunnelConfigActivity,
		activities.ConfigInput{Kind: string(kind)},
	).Get(ctx, &st.cfg); err != nil {
		return terminal(ctx, st, StageCreated, err)
	}
	st.ledger = costs.NewLedger(st.cfg.CostCeilingMicros)

	logger.Info("Instance started",
		"subject_id", sub.ID,
		"kind", string(kind),
		"ceiling_micros", st.cfg.CostCeilingMicros,
	)

	// KnowledgeCheck
	emitStage(ctx, st, StageKnowledgeCheck)
	var lookup activities.LookupOutput
	if err := workflow.ExecuteActivity(opts.WithLookupOptions(ctx),
		constants.LookupKnowledgeActivity,
		activities.LookupInput{Subject: sub},
	).Get(ctx, &lookup); err != nil {
		return terminal(ctx, st, StageKnowledgeCheck, err)
	}
	st.record = lookup.Record
	if st.record.Degraded {
		st.degrade("knowledge_lookup")
	}

	if st.record.Coverage >= st.cfg.CoverageThreshold {
		// Cached coverage satisfies the threshold: skip the funnel's paid
		// stages but keep the stage sequence consistent for stream
		// consumers, who always see Synthesizing before Generating.
		emitStage(ctx, st, StageSynthesizing)
		st.coverage = st.record.Coverage
		st.context = knowledge.BuildContext(sub, st.record)
		logger.Info("Knowledge cache short-circuit",
			"subject_id", sub.ID,
			"coverage", st.record.Coverage,
			"threshold", st.cfg.CoverageThreshold,
		)
	} else {
		if err := runFunnel(ctx, st); err != nil {
			return terminal(ctx, st, StageResearching, err)
		}
	}

	// Generating
	emitStage(ctx, st, StageGenerating)
	if st.ledger.Exceeded() {
		st.partial = true
	}
	var gen activities.GenerateOutput
	if err := workflow.ExecuteActivity(opts.WithGenerateOptions(ctx),
		constants.GenerateDraftActivity,
		activities.GenerateInput{
			InstanceID:     st.input.InstanceID,
			Kind:           kind,
			SubjectName:    sub.Name,
			Context:        st.context,
			RequiredFields: research.RequiredFields(kind),
			Partial:        st.partial,
		},
	).Get(ctx, &gen); err != nil {
		return terminal(ctx, st, StageGenerating, err)
	}
	st.draft = gen.Draft
	st.ledger.Add(gen.CostMicros)

	// Publish gate
	var gate activities.PolicyOutput
	if err := workflow.ExecuteActivity(opts.WithPolicyOptions(ctx),
		constants.CheckPublishPolicyActivity,
		activities.PolicyInput{Publish: publishInput(st)},
	).Get(ctx, &gate); err != nil {
		return terminal(ctx, st, StageGenerating, err)
	}
	if !gate.Decision.Allow {
		err := faults.Policyf("publish denied: %s", strings.Join(gate.Decision.Reasons, "; "))
		return terminal(ctx, st, StageGenerating, err)
	}

	// Persisting
	emitStage(ctx, st, StagePersisting)
	if err := strat.persist(ctx, st); err != nil {
		return terminal(ctx, st, StagePersisting, err)
	}

	// Let the fire-and-forget deposit finish; its outcome never matters here.
	if st.depositFuture != nil {
		_ = st.depositFuture.Get(ctx, nil)
	}

	res := st.result(StageCompleted)
	emitTerminal(ctx, st, res)
	logger.Info("Instance completed",
		"subject_id", sub.ID,
		"coverage", st.coverage,
		"partial", st.partial,
		"spent", st.ledger.Dollars(),
	)
	return res, nil
}

// runFunnel executes Researching and Synthesizing: broad search, filter,
// concurrent crawls, merge, optional escalation, enrich, deposit, and
// context assembly. Cost checks precede every paid stage; hitting the
// ceiling degrades to partial, never fails.
func runFunnel(ctx workflow.Context, st *runState) error {
	logger := workflow.GetLogger(ctx)
	kind := st.sub.Kind

	emitStage(ctx, st, StageResearching)

	var promoted []research.Finding
	if st.ledger.Exceeded() {
		st.partial = true
	} else {
		var search activities.SearchOutput
		if err := workflow.ExecuteActivity(opts.WithSearchOptions(ctx),
			constants.BroadSearchActivity,
			activities.SearchInput{
				InstanceID: st.input.InstanceID,
				Subject:    st.sub,
				Pages:      st.cfg.SearchPages,
				PerPage:    st.cfg.ResultsPerPage,
				RankDecay:  st.cfg.RankDecay,
			},
		).Get(ctx, &search); err != nil {
			return err
		}
		st.ledger.Add(search.CostMicros)
		promoted = research.Filter(search.Findings, st.cfg.MinSnippetScore, st.cfg.CrawlBudget)
		logger.Info("Search filtered",
			"snippets", len(search.Findings),
			"promoted", len(promoted),
		)
	}

	var crawled []research.Finding
	if st.ledger.Exceeded() {
		st.partial = true
		logger.Warn("Cost ceiling reached before crawling", "spent", st.ledger.Dollars())
	} else if len(promoted) > 0 {
		crawlCtx := opts.WithCrawlOptions(ctx, st.cfg.CrawlRetries)
		futures := make([]workflow.Future, len(promoted))
		for i, cand := range promoted {
			futures[i] = workflow.ExecuteActivity(crawlCtx,
				constants.CrawlCandidateActivity,
				activities.CrawlInput{
					InstanceID: st.input.InstanceID,
					Kind:       kind,
					Candidate:  cand,
				},
			)
		}
		crawled = make([]research.Finding, 0, len(promoted))
		for i, f := range futures {
			var out activities.CrawlOutput
			if err := f.Get(ctx, &out); err != nil {
				if wasCancelled(ctx, err) {
					return err
				}
				// Retry budget exhausted for this candidate: record the
				// marker finding and keep going.
				crawled = append(crawled, research.FailedCrawl(promoted[i], err.Error(), 0))
				logger.Warn("Crawl abandoned",
					"url", promoted[i].URL,
					"error", err,
				)
				continue
			}
			st.ledger.Add(out.CostMicros)
			crawled = append(crawled, out.Finding)
		}
	}

	merged := research.Merge(promoted, crawled)

	// Synthesizing
	emitStage(ctx, st, StageSynthesizing)
	missing := research.MissingFields(kind, merged)
	if len(missing) > 0 && st.cfg.EscalationEnabled && !st.ledger.Exceeded() {
		var esc activities.EscalateOutput
		err := workflow.ExecuteActivity(opts.WithEscalateOptions(ctx),
			constants.EscalateResearchActivity,
			activities.EscalateInput{
				InstanceID:  st.input.InstanceID,
				Kind:        kind,
				SubjectName: st.sub.Name,
				Missing:     missing,
			},
		).Get(ctx, &esc)
		switch {
		case err != nil && wasCancelled(ctx, err):
			return err
		case err != nil:
			st.degrade("escalation")
			logger.Warn("Escalation failed, continuing degraded", "error", err)
		case esc.Degraded:
			st.degrade("escalation")
		default:
			st.ledger.Add(esc.CostMicros)
			merged = research.Merge(merged, esc.Findings)
		}
	}
	if st.ledger.Exceeded() {
		st.partial = true
	}

	st.findings = merged

	enriched := knowledge.Enrich(st.sub, st.record, merged)
	st.coverage = enriched.Coverage
	st.context = knowledge.BuildContext(st.sub, enriched)

	// Deposit is fire-and-forget on a disconnected context so neither a
	// deposit failure nor a workflow cancellation can affect the other.
	detached, _ := workflow.NewDisconnectedContext(ctx)
	st.depositFuture = workflow.ExecuteActivity(opts.WithDepositOptions(detached),
		constants.DepositKnowledgeActivity,
		activities.DepositInput{
			InstanceID: st.input.InstanceID,
			Subject:    st.sub,
			Record:     enriched,
		},
	)
	return nil
}

func publishInput(st *runState) (in policy.PublishInput) {
	in.Kind = string(st.sub.Kind)
	in.Slug = st.sub.Slug
	in.Coverage = st.coverage
	in.Completeness = st.draft.Completeness
	in.Partial = st.partial
	in.Degraded = len(st.degraded) > 0
	in.SectionCount = len(st.draft.Sections)
	in.WordCount = st.draft.WordCount()
	in.CostMicros = st.ledger.SpentMicros
	return in
}

// terminal closes out a failed or cancelled instance: classify, archive a
// snapshot, emit the terminal event, and hand the caller a result that says
// what happened. The workflow itself completes normally so the result stays
// queryable.
func terminal(ctx workflow.Context, st *runState, stage string, err error) (RunResult, error) {
	class := faults.Classify(err)

	res := st.result(stage)
	res.Status = StatusFailed
	if class == faults.ClassCancelled {
		res.Status = StatusCancelled
	}
	res.FailureClass = class
	res.FailureReason = err.Error()

	workflow.GetLogger(ctx).Error("Instance terminal",
		"status", res.Status,
		"stage", stage,
		"class", class,
		"error", err,
	)

	// Disconnected context: these must run even when the parent context was
	// cancelled, and their own failures are logged, not propagated.
	detached, _ := workflow.NewDisconnectedContext(ctx)

	state, _ := json.Marshal(res)
	snap := db.Snapshot{
		InstanceID: st.input.InstanceID,
		SubjectID:  st.sub.ID,
		Kind:       string(st.sub.Kind),
		Stage:      stage,
		Status:     res.Status,
		Reason:     class + ": " + err.Error(),
		State:      state,
	}
	_ = workflow.ExecuteActivity(opts.WithSnapshotOptions(detached),
		constants.ArchiveSnapshotActivity,
		activities.SnapshotInput{Snapshot: snap},
	).Get(detached, nil)

	emitTerminalOn(detached, st, res)
	return res, nil
}

func wasCancelled(ctx workflow.Context, err error) bool {
	return ctx.Err() != nil || temporal.IsCanceledError(err)
}

func emitStage(ctx workflow.Context, st *runState, stage string) {
	_ = workflow.ExecuteActivity(opts.WithProgressOptions(ctx),
		constants.EmitProgressActivity,
		activities.ProgressInput{
			Event: events.Event{
				InstanceID: st.input.InstanceID,
				Kind:       string(st.sub.Kind),
				Stage:      stage,
				Type:       events.TypeStage,
				Message:    "entered " + stage,
			},
		},
	).Get(ctx, nil)
}

func emitTerminal(ctx workflow.Context, st *runState, res RunResult) {
	emitTerminalOn(ctx, st, res)
}

func emitTerminalOn(ctx workflow.Context, st *runState, res RunResult) {
	elapsed := workflow.Now(ctx).Sub(workflow.GetInfo(ctx).WorkflowStartTime).Seconds()
	_ = workflow.ExecuteActivity(opts.WithProgressOptions(ctx),
		constants.EmitProgressActivity,
		activities.ProgressInput{
			Event: events.Event{
				InstanceID: st.input.InstanceID,
				Kind:       res.Kind,
				Stage:      res.Stage,
				Type:       events.TypeTerminal,
				Message:    res.Status,
			},
			Terminal:        true,
			Status:          res.Status,
			DurationSeconds: elapsed,
			CostMicros:      res.CostMicros,
			Partial:         res.Partial,
		},
	).Get(ctx, nil)
}
