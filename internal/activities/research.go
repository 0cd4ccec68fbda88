package activities

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/draftline-ai/orchestrator/internal/constants"
	"github.com/draftline-ai/orchestrator/internal/metrics"
	"github.com/draftline-ai/orchestrator/internal/research"
)

// BroadSearch runs the paged search stage and scores the raw results into
// snippet findings. Ledger-cached: a redelivered task returns the recorded
// findings and cost instead of re-querying the provider.
func (p *Pool) BroadSearch(ctx context.Context, in SearchInput) (SearchOutput, error) {
	var out SearchOutput
	key, ok := p.fromLedger(ctx, in.InstanceID, constants.BroadSearchActivity, in, &out)
	if ok {
		return out, nil
	}

	resp, err := p.Search.Search(ctx, in.Subject.Name, in.Pages, in.PerPage)
	if err != nil {
		return SearchOutput{}, fmt.Errorf("broad search %q: %w", in.Subject.Name, err)
	}

	scorer := research.NewScorer(in.RankDecay, in.Subject.Name, time.Now())
	out = SearchOutput{
		Findings:     research.SnippetFindings(in.Subject.Kind, resp.Results, scorer),
		PagesFetched: resp.PagesFetched,
		PagesCached:  resp.PagesCached,
		CostMicros:   resp.CostMicros,
	}

	activity.GetLogger(ctx).Info("Broad search complete",
		"subject_id", in.Subject.ID,
		"results", len(resp.Results),
		"findings", len(out.Findings),
		"pages_fetched", resp.PagesFetched,
		"pages_cached", resp.PagesCached,
	)
	metrics.FunnelFindings.WithLabelValues(string(research.TierSearchSnippet)).
		Observe(float64(len(out.Findings)))

	p.toLedger(ctx, key, out)
	return out, nil
}

// CrawlCandidate fetches full content for one promoted candidate through the
// fallback chain. Chain failure is an ordinary error so the activity retry
// policy drives the per-candidate retry budget; the workflow turns final
// exhaustion into a crawl-failed marker finding.
func (p *Pool) CrawlCandidate(ctx context.Context, in CrawlInput) (CrawlOutput, error) {
	var out CrawlOutput
	key, ok := p.fromLedger(ctx, in.InstanceID, constants.CrawlCandidateActivity, in, &out)
	if ok {
		return out, nil
	}

	res, err := p.Crawler.Fetch(ctx, in.Candidate.URL)
	if err != nil {
		return CrawlOutput{}, err
	}

	finding := research.CrawledFinding(in.Kind, in.Candidate, res)
	out = CrawlOutput{Finding: finding, CostMicros: res.CostMicros}

	activity.GetLogger(ctx).Debug("Candidate crawled",
		"url", in.Candidate.URL,
		"crawler", res.Crawler,
		"word_count", res.WordCount,
	)

	p.toLedger(ctx, key, out)
	return out, nil
}

// EscalateResearch asks the deep-search provider to fill the remaining
// coverage gap. An unconfigured provider is a degraded outcome, not an
// error; provider failures are errors so the retry policy applies.
func (p *Pool) EscalateResearch(ctx context.Context, in EscalateInput) (EscalateOutput, error) {
	if !p.Escalator.Available() {
		activity.GetLogger(ctx).Info("Escalation provider not configured, continuing degraded",
			"missing", in.Missing,
		)
		return EscalateOutput{Degraded: true}, nil
	}

	var out EscalateOutput
	key, ok := p.fromLedger(ctx, in.InstanceID, constants.EscalateResearchActivity, in, &out)
	if ok {
		return out, nil
	}

	findings, err := p.Escalator.FillGaps(ctx, in.Kind, in.SubjectName, in.Missing)
	if err != nil {
		return EscalateOutput{}, fmt.Errorf("escalate research %q: %w", in.SubjectName, err)
	}

	for _, f := range findings {
		out.CostMicros += f.CostMicros
	}
	out.Findings = findings

	activity.GetLogger(ctx).Info("Escalation complete",
		"subject", in.SubjectName,
		"missing", in.Missing,
		"findings", len(findings),
	)

	p.toLedger(ctx, key, out)
	return out, nil
}
