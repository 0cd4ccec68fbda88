package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/draftline-ai/orchestrator/internal/interceptors"
)

// ClientConfig configures the knowledge-graph service client.
type ClientConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client is the typed HTTP client for the external knowledge-graph service.
// Records live under /records/{subject_id}; a 404 is a miss, not an error.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds the client. limiter may be nil.
func NewClient(cfg ClientConfig, limiter *rate.Limiter) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: interceptors.NewProviderRoundTripper("knowledge", nil),
		},
		limiter: limiter,
	}
}

// Configured reports whether a service endpoint is set. An unconfigured
// client behaves as a permanently missing backend.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.URL != ""
}

// Fetch retrieves the record for a subject. The boolean reports whether a
// record exists; backend errors are returned for the gateway to degrade on.
func (c *Client) Fetch(ctx context.Context, subjectID string) (Record, bool, error) {
	if !c.Configured() {
		return Record{}, false, fmt.Errorf("knowledge service not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Record{}, false, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.recordURL(subjectID), nil)
	if err != nil {
		return Record{}, false, err
	}
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Record{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Record{}, false, nil
	default:
		return Record{}, false, fmt.Errorf("knowledge service returned status %d", resp.StatusCode)
	}

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return Record{}, false, fmt.Errorf("decode knowledge record: %w", err)
	}
	rec.SubjectID = subjectID
	return rec, true, nil
}

// Write stores a record for a subject.
func (c *Client) Write(ctx context.Context, subjectID string, rec Record) error {
	if !c.Configured() {
		return fmt.Errorf("knowledge service not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal knowledge record: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.recordURL(subjectID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("knowledge service returned status %d", resp.StatusCode)
	}
	return nil
}

// Healthy probes the service for the health manager.
func (c *Client) Healthy(ctx context.Context) error {
	if !c.Configured() {
		return fmt.Errorf("knowledge service not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("knowledge service returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) recordURL(subjectID string) string {
	return c.cfg.URL + "/records/" + url.PathEscape(subjectID)
}

func (c *Client) auth(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}
