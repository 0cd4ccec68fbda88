// Package interceptors carries the outbound HTTP round-tripper shared by all
// provider clients (search, crawl, knowledge, LLM, media). It stamps requests
// with the workflow instance so provider-side logs correlate with histories,
// records per-provider call metrics, and propagates the active trace.
package interceptors

import (
	"net/http"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/draftline-ai/orchestrator/internal/metrics"
	"github.com/draftline-ai/orchestrator/internal/tracing"
)

// ProviderRoundTripper decorates outbound requests for one named provider.
type ProviderRoundTripper struct {
	provider string
	base     http.RoundTripper
}

// NewProviderRoundTripper wraps base (http.DefaultTransport when nil) for the
// given provider label.
func NewProviderRoundTripper(provider string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &ProviderRoundTripper{provider: provider, base: base}
}

// RoundTrip implements http.RoundTripper.
func (p *ProviderRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Stamp the workflow instance when running inside an activity. GetInfo
	// panics outside activity contexts (plain tests, draftctl), so recover
	// and send the request unstamped.
	func() {
		defer func() {
			_ = recover()
		}()
		info := activity.GetInfo(req.Context())
		if info.WorkflowExecution.ID != "" {
			req.Header.Set("X-Instance-ID", info.WorkflowExecution.ID)
			req.Header.Set("X-Run-ID", info.WorkflowExecution.RunID)
		}
	}()

	tracing.InjectTraceparent(req.Context(), req)

	start := time.Now()
	resp, err := p.base.RoundTrip(req)

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case resp.StatusCode >= 500:
		status = "5xx"
	case resp.StatusCode >= 400:
		status = "4xx"
	}
	metrics.RecordProviderCall(p.provider, status, time.Since(start).Seconds())

	return resp, err
}
