// Package llm is the typed client for the content generation service. The
// service is opaque: the orchestrator guarantees only that it is invoked with
// the fully merged, deduplicated context and that its drafts flow unmodified
// to the policy gate and the store.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/draftline-ai/orchestrator/internal/interceptors"
	"github.com/draftline-ai/orchestrator/internal/metrics"
	"github.com/draftline-ai/orchestrator/internal/pricing"
	"github.com/draftline-ai/orchestrator/internal/subject"
)

// Section is one named block of a draft.
type Section struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Draft is the generated content for one subject. Completeness is the
// service's own estimate of how many required fields it could fill from the
// supplied context; the policy gate reads it.
type Draft struct {
	Kind         subject.Kind      `json:"kind"`
	Title        string            `json:"title"`
	Summary      string            `json:"summary,omitempty"`
	Sections     []Section         `json:"sections"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Completeness float64           `json:"completeness"`
	Model        string            `json:"model,omitempty"`
	TokensUsed   int               `json:"tokens_used"`
}

// WordCount counts words across all sections.
func (d Draft) WordCount() int {
	n := 0
	for _, s := range d.Sections {
		inWord := false
		for _, r := range s.Content {
			if r == ' ' || r == '\n' || r == '\t' {
				inWord = false
			} else if !inWord {
				inWord = true
				n++
			}
		}
	}
	return n
}

// Request carries everything the generation service needs for one draft.
type Request struct {
	Kind           subject.Kind `json:"kind"`
	SubjectName    string       `json:"subject_name"`
	Context        string       `json:"context"`
	RequiredFields []string     `json:"required_fields"`
	Partial        bool         `json:"partial"`
}

// Config configures the generation service client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client calls the generation service.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds the client. limiter may be nil.
func NewClient(cfg Config, limiter *rate.Limiter) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Minute
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: interceptors.NewProviderRoundTripper("llm", nil),
		},
		limiter: limiter,
	}
}

// Generate requests a draft. The returned cost is derived from the token
// usage the service reports and the configured per-model rate.
func (c *Client) Generate(ctx context.Context, req Request) (Draft, int64, error) {
	if c.cfg.URL == "" {
		return Draft{}, 0, fmt.Errorf("generation service not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Draft{}, 0, err
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Draft{}, 0, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/generate", bytes.NewReader(body))
	if err != nil {
		return Draft{}, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Draft{}, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Draft{}, 0, fmt.Errorf("generation service returned status %d", resp.StatusCode)
	}

	var draft Draft
	if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
		return Draft{}, 0, fmt.Errorf("decode draft: %w", err)
	}
	if len(draft.Sections) == 0 {
		return Draft{}, 0, fmt.Errorf("generation service returned an empty draft")
	}
	draft.Kind = req.Kind

	metrics.DraftTokensUsed.Observe(float64(draft.TokensUsed))
	metrics.DraftCompleteness.Observe(draft.Completeness)
	return draft, pricing.LLMTokenCost(draft.Model, draft.TokensUsed), nil
}
