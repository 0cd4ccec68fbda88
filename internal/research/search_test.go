package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/draftline-ai/orchestrator/internal/subject"
)

func searchPage(page, perPage int) map[string]interface{} {
	var results []map[string]interface{}
	for i := 1; i <= perPage; i++ {
		n := (page-1)*perPage + i
		results = append(results, map[string]interface{}{
			"title":    fmt.Sprintf("Result %d", n),
			"link":     fmt.Sprintf("https://site%02d.example/article", n),
			"snippet":  fmt.Sprintf("Snippet about Acme number %d", n),
			"source":   "Example Wire",
			"date":     "2 days ago",
			"position": i,
		})
	}
	return map[string]interface{}{"organic": results}
}

func newCacheClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestSearchPagesAndGlobalRank(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		page := int(req["page"].(float64))
		assert.Equal(t, "Acme Corp", req["q"])
		assert.Equal(t, "us", req["gl"])
		assert.Equal(t, "qdr:m", req["tbs"])

		json.NewEncoder(w).Encode(searchPage(page, 6))
	}))
	defer srv.Close()

	client := NewSearchClient(SearchConfig{
		URL:     srv.URL,
		APIKey:  "test-key",
		Recency: "month",
		Locale:  "us",
		Timeout: 5 * time.Second,
	}, nil, nil, zaptest.NewLogger(t))

	resp, err := client.Search(context.Background(), "Acme Corp", 2, 6)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, resp.PagesFetched)
	assert.Equal(t, 0, resp.PagesCached)
	assert.Len(t, resp.Results, 12)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, 7, resp.Results[6].Rank, "rank continues across pages")
	assert.Equal(t, 2, resp.Results[6].Page)
	assert.Positive(t, resp.CostMicros)
}

func TestSearchToleratesSinglePageFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if int(req["page"].(float64)) == 2 {
			http.Error(w, "upstream broke", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(searchPage(1, 5))
	}))
	defer srv.Close()

	client := NewSearchClient(SearchConfig{URL: srv.URL}, nil, nil, zaptest.NewLogger(t))

	resp, err := client.Search(context.Background(), "Acme Corp", 2, 5)
	require.NoError(t, err, "a single failed page must not fail the search")
	assert.Equal(t, 1, resp.PagesFetched)
	assert.Len(t, resp.Results, 5)
}

func TestSearchFailsWhenAllPagesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewSearchClient(SearchConfig{URL: srv.URL}, nil, nil, zaptest.NewLogger(t))

	_, err := client.Search(context.Background(), "Acme Corp", 2, 5)
	assert.Error(t, err)
}

func TestSearchBreakerFailsFastAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewSearchClient(SearchConfig{URL: srv.URL}, nil, nil, zaptest.NewLogger(t))

	// Five consecutive 5xx responses open the provider breaker.
	for i := 0; i < 5; i++ {
		_, err := client.Search(context.Background(), "Acme Corp", 1, 5)
		require.Error(t, err)
	}
	require.Equal(t, int32(5), atomic.LoadInt32(&hits))

	// The next call is rejected at the breaker, not sent to the provider.
	_, err := client.Search(context.Background(), "Acme Corp", 1, 5)
	assert.Error(t, err)
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits), "open breaker must not reach the provider")
}

func TestSearchCacheAvoidsRespending(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(searchPage(1, 4))
	}))
	defer srv.Close()

	client := NewSearchClient(SearchConfig{URL: srv.URL}, newCacheClient(t), nil, zaptest.NewLogger(t))

	first, err := client.Search(context.Background(), "Acme Corp", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, first.PagesFetched)
	assert.Positive(t, first.CostMicros)

	second, err := client.Search(context.Background(), "Acme Corp", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, second.PagesFetched)
	assert.Equal(t, 1, second.PagesCached)
	assert.Zero(t, second.CostMicros, "cached pages are free")
	assert.Equal(t, first.Results, second.Results)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "provider hit exactly once")
}

func TestSnippetFindings(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	scorer := NewScorer(0.90, "Acme Corp", now)

	results := []SearchResult{
		{URL: "https://news.example/acme-overview", Title: "Acme overview", Snippet: "Acme is a maker of widgets", Rank: 1},
		{URL: "https://twitter.com/acme/status/9", Title: "tweet", Snippet: "Acme!", Rank: 2},
		{URL: "https://jobs.example/acme-hires", Title: "Acme hires CEO", Snippet: "New chief executive appointed to lead the team", Rank: 3},
	}

	findings := SnippetFindings(subject.KindCompany, results, scorer)

	require.Len(t, findings, 2, "excluded host dropped")
	assert.Equal(t, TierSearchSnippet, findings[0].Tier)
	assert.Equal(t, 1, findings[0].Rank)
	require.Len(t, findings[1].Facts, 1)
	assert.Equal(t, "team", findings[1].Facts[0].Category)
	assert.Greater(t, findings[0].Score, findings[1].Score)
}
