// Package media is the typed client for the media generation service, used
// by the article workflow only. Like the generation service, it is opaque;
// the orchestrator supplies a spec and consumes an asset URL.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/draftline-ai/orchestrator/internal/interceptors"
	"github.com/draftline-ai/orchestrator/internal/pricing"
)

// AssetSpec describes the asset to render for an article.
type AssetSpec struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	Style   string `json:"style,omitempty"`
}

// Config configures the media service client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client calls the media generation service.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds the client. limiter may be nil.
func NewClient(cfg Config, limiter *rate.Limiter) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: interceptors.NewProviderRoundTripper("media", nil),
		},
		limiter: limiter,
	}
}

// Configured reports whether a service endpoint is set.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.URL != ""
}

// GenerateAsset renders one asset and returns its URL and cost.
func (c *Client) GenerateAsset(ctx context.Context, spec AssetSpec) (string, int64, error) {
	if !c.Configured() {
		return "", 0, fmt.Errorf("media service not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", 0, err
		}
	}

	body, err := json.Marshal(spec)
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/assets", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("media service returned status %d", resp.StatusCode)
	}

	var decoded struct {
		AssetURL string `json:"asset_url"`
		Error    string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", 0, fmt.Errorf("decode media response: %w", err)
	}
	if decoded.AssetURL == "" {
		reason := decoded.Error
		if reason == "" {
			reason = "no asset returned"
		}
		return "", 0, fmt.Errorf("media service: %s", reason)
	}
	return decoded.AssetURL, pricing.MediaAssetCost(), nil
}
