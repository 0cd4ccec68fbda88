package circuitbreaker

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPWrapper guards one provider endpoint. 5xx responses count as breaker
// failures; 4xx do not trip it since they indicate caller problems, not
// provider outage.
type HTTPWrapper struct {
	client *http.Client
	cb     *Breaker
	name   string
}

// NewHTTPWrapper wraps an http.Client for the named provider.
func NewHTTPWrapper(client *http.Client, name string, logger *zap.Logger) *HTTPWrapper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPWrapper{
		client: client,
		cb:     New(name, DefaultConfig(), logger),
		name:   name,
	}
}

// Do executes the request through the breaker.
func (hw *HTTPWrapper) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := hw.cb.Execute(req.Context(), func() error {
		var inner error
		resp, inner = hw.client.Do(req)
		if inner != nil {
			return inner
		}
		if resp.StatusCode >= 500 {
			return &statusError{code: resp.StatusCode}
		}
		return nil
	})

	// A 5xx trips breaker accounting but the caller still gets the response.
	if _, ok := err.(*statusError); ok {
		return resp, nil
	}
	return resp, err
}

// IsOpen reports whether the breaker is rejecting calls.
func (hw *HTTPWrapper) IsOpen() bool {
	return hw.cb.IsOpen()
}

type statusError struct{ code int }

func (e *statusError) Error() string { return http.StatusText(e.code) }
