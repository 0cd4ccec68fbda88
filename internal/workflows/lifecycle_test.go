package workflows

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"github.com/draftline-ai/orchestrator/internal/activities"
	"github.com/draftline-ai/orchestrator/internal/config"
	"github.com/draftline-ai/orchestrator/internal/constants"
	"github.com/draftline-ai/orchestrator/internal/events"
	"github.com/draftline-ai/orchestrator/internal/knowledge"
	"github.com/draftline-ai/orchestrator/internal/llm"
	"github.com/draftline-ai/orchestrator/internal/policy"
	"github.com/draftline-ai/orchestrator/internal/research"
	"github.com/draftline-ai/orchestrator/internal/subject"
)

// stubs is a full set of activity fakes with call counting. Individual tests
// override the behaviors they care about.
type stubs struct {
	mu sync.Mutex

	cfg config.FunnelConfig

	lookupRecord knowledge.Record
	searchOut    activities.SearchOutput
	searchErr    error
	crawlFailURL string
	escalateOut  activities.EscalateOutput
	draft        llm.Draft
	decision     policy.Decision
	policyMode   string
	assetURL     string

	searchCalls  int
	crawlCalls   map[string]int
	persistCalls int
	depositCalls int
	lastPersist  activities.PersistInput
	stages       []string
}

func newStubs() *stubs {
	cfg := config.Defaults().Funnel
	cfg.EscalationEnabled = false
	cfg.CostCeilingMicros = 10_000_000

	return &stubs{
		cfg:          cfg,
		lookupRecord: knowledge.Miss("", false),
		crawlCalls:   make(map[string]int),
		draft: llm.Draft{
			Title:   "Generated Title",
			Summary: "Generated summary.",
			Sections: []llm.Section{
				{Name: "overview", Content: sectionText()},
				{Name: "details", Content: sectionText()},
				{Name: "analysis", Content: sectionText()},
			},
			Completeness: 0.9,
			TokensUsed:   1200,
		},
		decision:   policy.Decision{Allow: true},
		policyMode: string(policy.ModeEnforce),
		assetURL:   "https://cdn.example.com/asset.png",
	}
}

func sectionText() string {
	s := ""
	for i := 0; i < 80; i++ {
		s += "word "
	}
	return s
}

func (s *stubs) register(env *testsuite.TestWorkflowEnvironment) {
	reg := func(fn interface{}, name string) {
		env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
	}

	reg(func(ctx context.Context, in activities.ConfigInput) (config.FunnelConfig, error) {
		return s.cfg, nil
	}, constants.GetFunnelConfigActivity)

	reg(func(ctx context.Context, in activities.LookupInput) (activities.LookupOutput, error) {
		rec := s.lookupRecord
		if rec.SubjectID == "" {
			rec.SubjectID = in.Subject.ID
		}
		return activities.LookupOutput{Record: rec}, nil
	}, constants.LookupKnowledgeActivity)

	reg(func(ctx context.Context, in activities.SearchInput) (activities.SearchOutput, error) {
		s.mu.Lock()
		s.searchCalls++
		s.mu.Unlock()
		if s.searchErr != nil {
			return activities.SearchOutput{}, s.searchErr
		}
		return s.searchOut, nil
	}, constants.BroadSearchActivity)

	reg(func(ctx context.Context, in activities.CrawlInput) (activities.CrawlOutput, error) {
		s.mu.Lock()
		s.crawlCalls[in.Candidate.URL]++
		s.mu.Unlock()
		if in.Candidate.URL == s.crawlFailURL {
			return activities.CrawlOutput{}, fmt.Errorf("fetch %s: connection reset", in.Candidate.URL)
		}
		return activities.CrawlOutput{
			Finding:    crawledFrom(in.Candidate),
			CostMicros: 1_000,
		}, nil
	}, constants.CrawlCandidateActivity)

	reg(func(ctx context.Context, in activities.EscalateInput) (activities.EscalateOutput, error) {
		return s.escalateOut, nil
	}, constants.EscalateResearchActivity)

	reg(func(ctx context.Context, in activities.DepositInput) error {
		s.mu.Lock()
		s.depositCalls++
		s.mu.Unlock()
		return nil
	}, constants.DepositKnowledgeActivity)

	reg(func(ctx context.Context, in activities.GenerateInput) (activities.GenerateOutput, error) {
		draft := s.draft
		draft.Kind = in.Kind
		return activities.GenerateOutput{Draft: draft, CostMicros: 2_000}, nil
	}, constants.GenerateDraftActivity)

	reg(func(ctx context.Context, in activities.AssetInput) (activities.AssetOutput, error) {
		return activities.AssetOutput{AssetURL: s.assetURL, CostMicros: 500}, nil
	}, constants.GenerateAssetActivity)

	reg(func(ctx context.Context, in activities.PolicyInput) (activities.PolicyOutput, error) {
		return activities.PolicyOutput{Decision: s.decision, Mode: s.policyMode}, nil
	}, constants.CheckPublishPolicyActivity)

	reg(func(ctx context.Context, in activities.PersistInput) (activities.PersistOutput, error) {
		s.mu.Lock()
		s.persistCalls++
		s.lastPersist = in
		s.mu.Unlock()
		return activities.PersistOutput{RecordID: "rec-1", Created: true}, nil
	}, constants.PersistResultActivity)

	reg(func(ctx context.Context, in activities.SnapshotInput) error {
		return nil
	}, constants.ArchiveSnapshotActivity)

	reg(func(ctx context.Context, in activities.ProgressInput) error {
		if in.Event.Type == events.TypeStage {
			s.mu.Lock()
			s.stages = append(s.stages, in.Event.Stage)
			s.mu.Unlock()
		}
		return nil
	}, constants.EmitProgressActivity)
}

// snippets builds n scored snippet findings, scores strictly descending so
// filtering and merging stay deterministic.
func snippets(n int) []research.Finding {
	out := make([]research.Finding, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, research.Finding{
			URL:   fmt.Sprintf("https://example.com/source-%02d", i+1),
			Title: fmt.Sprintf("Source %d", i+1),
			Tier:  research.TierSearchSnippet,
			Score: 0.95 - float64(i)*0.05,
			Rank:  i + 1,
		})
	}
	return out
}

// crawledFrom promotes a snippet with facts covering every company field.
func crawledFrom(cand research.Finding) research.Finding {
	return research.Finding{
		URL:   cand.URL,
		Title: cand.Title,
		Tier:  research.TierCrawledFull,
		Score: cand.Score,
		Rank:  cand.Rank,
		Facts: []research.Fact{
			{Category: "overview", Statement: "Acme Corp is an industrial supplier."},
			{Category: "services", Statement: "Acme sells anvils and rockets."},
			{Category: "track_record", Statement: "Acme closed three acquisitions."},
			{Category: "team", Entity: "Wile E. Coyote", Statement: "Wile E. Coyote leads product."},
			{Category: "market_position", Statement: "Acme leads the desert logistics market."},
		},
		WordCount: 900,
	}
}

func runCompany(t *testing.T, s *stubs, name string) RunResult {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(CompanyProfileWorkflow)
	s.register(env)

	env.ExecuteWorkflow(CompanyProfileWorkflow, SubjectInput{
		InstanceID: "inst-test",
		Name:       name,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res RunResult
	require.NoError(t, env.GetWorkflowResult(&res))
	return res
}

func TestCacheShortCircuitSkipsFunnel(t *testing.T) {
	s := newStubs()
	s.lookupRecord = knowledge.Record{
		SubjectID: "company/acme-corp",
		Coverage:  0.8,
		Narrative: "Acme Corp is an industrial supplier with a long track record.",
	}

	res := runCompany(t, s, "Acme Corp")

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, 0, s.searchCalls, "cached coverage above threshold must skip search")
	assert.Empty(t, s.crawlCalls)
	assert.InDelta(t, 0.8, res.Coverage, 1e-9)
	assert.Equal(t, 1, s.persistCalls)
	assert.Equal(t, 0, s.depositCalls, "nothing researched, nothing deposited")
	assert.Equal(t,
		[]string{StageKnowledgeCheck, StageSynthesizing, StageGenerating, StagePersisting},
		s.stages,
		"cache hits keep the full stage sequence minus Researching")
}

func TestAcmeFunnelScenario(t *testing.T) {
	s := newStubs()
	s.searchOut = activities.SearchOutput{
		Findings:   snippets(12),
		CostMicros: 2_000,
	}
	// One promoted candidate keeps failing; its retry budget is 2.
	s.crawlFailURL = "https://example.com/source-03"

	res := runCompany(t, s, "Acme Corp")

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "acme-corp", res.Slug)
	assert.Equal(t, 1, s.searchCalls)
	assert.Len(t, s.crawlCalls, 10, "exactly the crawl budget is promoted")
	assert.Equal(t, 2, s.crawlCalls[s.crawlFailURL], "failed candidate retried per budget")
	assert.Equal(t, 1, s.crawlCalls["https://example.com/source-01"])

	// 10 unique URLs survive the merge; the failed crawl stays visible as a
	// marker but coverage comes from the 9 usable findings.
	assert.Equal(t, 10, res.FindingCount)
	assert.InDelta(t, 1.0, res.Coverage, 1e-9)
	assert.False(t, res.Partial)
	assert.Equal(t, 1, s.depositCalls)
	assert.Equal(t, "rec-1", res.RecordID)
}

func TestCostCeilingYieldsPartialNotFailure(t *testing.T) {
	s := newStubs()
	s.cfg.CostCeilingMicros = 1_500
	s.searchOut = activities.SearchOutput{
		Findings:   snippets(12),
		CostMicros: 2_000, // exceeds the ceiling on its own
	}

	res := runCompany(t, s, "Acme Corp")

	assert.Equal(t, StatusCompleted, res.Status)
	assert.True(t, res.Partial)
	assert.Empty(t, s.crawlCalls, "ceiling reached before crawling")
	assert.Equal(t, 1, s.persistCalls, "partial results still persist")
}

func TestSearchRetryExhaustionFails(t *testing.T) {
	s := newStubs()
	s.searchErr = fmt.Errorf("search provider unavailable")

	res := runCompany(t, s, "Acme Corp")

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "transient", res.FailureClass)
	assert.Equal(t, StageResearching, res.Stage)
	assert.Equal(t, 3, s.searchCalls, "search retried exactly its budget")
	assert.Equal(t, 0, s.persistCalls)
}

func TestValidationFailsImmediately(t *testing.T) {
	s := newStubs()

	res := runCompany(t, s, "   ")

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "validation", res.FailureClass)
	assert.Equal(t, StageCreated, res.Stage)
	assert.Equal(t, 0, s.searchCalls)
	assert.Equal(t, 0, s.persistCalls)
}

func TestPolicyDenyFailsWithPolicyClass(t *testing.T) {
	s := newStubs()
	s.searchOut = activities.SearchOutput{Findings: snippets(5), CostMicros: 1_000}
	s.decision = policy.Decision{Allow: false, Reasons: []string{"coverage below floor"}}

	res := runCompany(t, s, "Acme Corp")

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "policy", res.FailureClass)
	assert.Contains(t, res.FailureReason, "coverage below floor")
	assert.Equal(t, 0, s.persistCalls)
}

func TestEscalationFillsFieldGap(t *testing.T) {
	s := newStubs()
	s.cfg.EscalationEnabled = true
	// Score floor above every snippet: nothing is promoted, no facts arrive,
	// and every required field stays missing, forcing the gap query.
	s.cfg.MinSnippetScore = 0.99
	s.searchOut = activities.SearchOutput{Findings: snippets(5), CostMicros: 1_000}
	s.escalateOut = activities.EscalateOutput{
		Findings: []research.Finding{{
			URL:   "https://deepsearch.example.com/acme",
			Tier:  research.TierCrawledFull,
			Score: 0.99,
			Rank:  1,
			Facts: []research.Fact{
				{Category: "overview", Statement: "Acme overview."},
				{Category: "team", Entity: "Road Runner", Statement: "Road Runner advises."},
			},
		}},
		CostMicros: 5_000,
	}

	res := runCompany(t, s, "Acme Corp")

	assert.Equal(t, StatusCompleted, res.Status)
	assert.InDelta(t, 0.4, res.Coverage, 1e-9, "two of five required fields covered")
	assert.NotContains(t, res.Degraded, "escalation")
}

func TestEscalationUnavailableDegrades(t *testing.T) {
	s := newStubs()
	s.cfg.EscalationEnabled = true
	s.cfg.MinSnippetScore = 0.99
	s.searchOut = activities.SearchOutput{Findings: snippets(3), CostMicros: 1_000}
	s.escalateOut = activities.EscalateOutput{Degraded: true}

	res := runCompany(t, s, "Acme Corp")

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Contains(t, res.Degraded, "escalation")
}

func TestArticleAttachesMediaAsset(t *testing.T) {
	s := newStubs()
	s.searchOut = activities.SearchOutput{Findings: snippets(6), CostMicros: 1_000}

	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(ArticleWorkflow)
	s.register(env)

	env.ExecuteWorkflow(ArticleWorkflow, SubjectInput{
		InstanceID: "inst-article",
		Name:       "Acme Rocket Launch",
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res RunResult
	require.NoError(t, env.GetWorkflowResult(&res))

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, string(subject.KindArticle), res.Kind)
	assert.Equal(t, "https://cdn.example.com/asset.png", res.AssetURL)
	require.NotNil(t, s.lastPersist.Article)
	assert.Equal(t, "https://cdn.example.com/asset.png", s.lastPersist.Article.MediaURL)
	assert.Equal(t, "acme-rocket-launch", s.lastPersist.Article.Slug)
}
