package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/draftline-ai/orchestrator/internal/circuitbreaker"
	"github.com/draftline-ai/orchestrator/internal/interceptors"
	"github.com/draftline-ai/orchestrator/internal/pricing"
	"github.com/draftline-ai/orchestrator/internal/subject"
)

// EscalatorConfig configures the optional deep-search provider. An empty URL
// leaves escalation unconfigured, which the funnel treats as a degraded
// condition rather than an error.
type EscalatorConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Escalator queries the higher-cost provider for the coverage gap only,
// never for fields cheaper stages already answered.
type Escalator struct {
	cfg     EscalatorConfig
	http    *circuitbreaker.HTTPWrapper
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewEscalator builds the escalation client. limiter may be nil.
func NewEscalator(cfg EscalatorConfig, limiter *rate.Limiter, logger *zap.Logger) *Escalator {
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	return &Escalator{
		cfg: cfg,
		http: circuitbreaker.NewHTTPWrapper(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: interceptors.NewProviderRoundTripper("deepsearch", nil),
		}, "deepsearch", logger),
		limiter: limiter,
		logger:  logger,
	}
}

// Available reports whether a provider endpoint is configured.
func (e *Escalator) Available() bool {
	return e != nil && e.cfg.URL != ""
}

// FillGaps asks the provider for evidence on the missing fields. Results
// come back as crawled-full findings attributed to the deepsearch provider,
// each carrying its per-result cost.
func (e *Escalator) FillGaps(ctx context.Context, kind subject.Kind, subjectName string, missing []string) ([]Finding, error) {
	if !e.Available() {
		return nil, fmt.Errorf("escalation provider not configured")
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(map[string]interface{}{
		"query":  subjectName,
		"fields": missing,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("escalation provider returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Results []struct {
			URL       string  `json:"url"`
			Title     string  `json:"title"`
			Content   string  `json:"content"`
			Relevance float64 `json:"relevance"`
			Facts     []Fact  `json:"facts"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode escalation response: %w", err)
	}

	perResult := pricing.DeepsearchResultCost()
	findings := make([]Finding, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		if r.URL == "" {
			continue
		}
		facts := r.Facts
		if len(facts) == 0 && r.Content != "" {
			facts = []Fact{{
				Category:  CategorizeText(kind, r.Content),
				Statement: excerpt(r.Content, maxStatementLen),
			}}
		}
		for i := range facts {
			facts[i].Statement = excerpt(facts[i].Statement, maxStatementLen)
		}
		score := r.Relevance
		if score <= 0 || score > 1 {
			score = 0.90
		}
		findings = append(findings, Finding{
			URL:        r.URL,
			Title:      r.Title,
			Tier:       TierCrawledFull,
			Score:      score,
			Facts:      facts,
			Crawler:    "deepsearch",
			WordCount:  len(strings.Fields(r.Content)),
			CostMicros: perResult,
		})
	}

	e.logger.Info("Escalation produced findings",
		zap.String("subject", subjectName),
		zap.Strings("missing_fields", missing),
		zap.Int("findings", len(findings)),
	)
	return findings, nil
}
