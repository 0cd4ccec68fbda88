package research

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"

	"github.com/draftline-ai/orchestrator/internal/circuitbreaker"
	"github.com/draftline-ai/orchestrator/internal/interceptors"
	"github.com/draftline-ai/orchestrator/internal/metrics"
	"github.com/draftline-ai/orchestrator/internal/pricing"
	"github.com/draftline-ai/orchestrator/internal/subject"
)

const searchCachePrefix = "dl:search:"

// SearchResult is one raw provider result before scoring. Rank is the global
// 1-based position across all fetched pages.
type SearchResult struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Source   string `json:"source,omitempty"`
	Date     string `json:"date,omitempty"`
	Page     int    `json:"page"`
	Position int    `json:"position"`
	Rank     int    `json:"rank"`
}

// SearchResponse aggregates a paged search. CostMicros covers only pages
// actually fetched from the provider; cached pages are free.
type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	PagesFetched int            `json:"pages_fetched"`
	PagesCached  int            `json:"pages_cached"`
	CostMicros   int64          `json:"cost_micros"`
}

// SearchConfig configures the search provider client.
type SearchConfig struct {
	URL      string
	APIKey   string
	Recency  string // day, week, month, year; empty disables the hint
	Locale   string // provider gl code, e.g. "us"
	Timeout  time.Duration
	CacheTTL time.Duration
}

// SearchClient issues paged queries against a Serper-style POST endpoint.
// Page responses are cached in Redis so activity retries and repeat subjects
// never re-spend on a page already paid for.
type SearchClient struct {
	cfg     SearchConfig
	http    *circuitbreaker.HTTPWrapper
	cache   *redis.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSearchClient builds the client. cache may be nil (caching disabled);
// limiter may be nil (no provider-side throttle).
func NewSearchClient(cfg SearchConfig, cache *redis.Client, limiter *rate.Limiter, logger *zap.Logger) *SearchClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	return &SearchClient{
		cfg: cfg,
		http: circuitbreaker.NewHTTPWrapper(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: interceptors.NewProviderRoundTripper("search", nil),
		}, "search", logger),
		cache:   cache,
		limiter: limiter,
		logger:  logger,
	}
}

// Search fetches up to pages result pages for the query. Individual page
// failures are tolerated; the call errors only when every page fails.
func (c *SearchClient) Search(ctx context.Context, query string, pages, perPage int) (SearchResponse, error) {
	if pages < 1 {
		pages = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	var resp SearchResponse
	var lastErr error
	for page := 1; page <= pages; page++ {
		results, cached, err := c.fetchPage(ctx, query, page, perPage)
		if err != nil {
			lastErr = err
			c.logger.Warn("Search page failed, continuing",
				zap.String("query", query),
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}
		if cached {
			resp.PagesCached++
			metrics.SearchCacheHits.Inc()
		} else {
			resp.PagesFetched++
			resp.CostMicros += pricing.SearchPageCost()
			metrics.SearchPagesFetched.Inc()
		}
		for i := range results {
			results[i].Page = page
			results[i].Rank = (page-1)*perPage + results[i].Position
		}
		resp.Results = append(resp.Results, results...)
	}

	if resp.PagesFetched+resp.PagesCached == 0 {
		return resp, fmt.Errorf("search provider unavailable: %w", lastErr)
	}
	return resp, nil
}

func (c *SearchClient) fetchPage(ctx context.Context, query string, page, perPage int) ([]SearchResult, bool, error) {
	key := c.cacheKey(query, page, perPage)
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key).Bytes(); err == nil {
			var results []SearchResult
			if json.Unmarshal(data, &results) == nil {
				return results, true, nil
			}
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}

	payload := map[string]interface{}{
		"q":    query,
		"num":  perPage,
		"page": page,
	}
	if c.cfg.Locale != "" {
		payload["gl"] = c.cfg.Locale
	}
	if tbs := recencyHint(c.cfg.Recency); tbs != "" {
		payload["tbs"] = tbs
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-KEY", c.cfg.APIKey)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("search provider returned status %d", httpResp.StatusCode)
	}

	var decoded struct {
		Organic []providerResult `json:"organic"`
		News    []providerResult `json:"news"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return nil, false, fmt.Errorf("decode search response: %w", err)
	}

	raw := decoded.Organic
	if len(raw) == 0 {
		raw = decoded.News
	}
	results := make([]SearchResult, 0, len(raw))
	for i, r := range raw {
		pos := r.Position
		if pos == 0 {
			pos = i + 1
		}
		results = append(results, SearchResult{
			URL:      r.Link,
			Title:    r.Title,
			Snippet:  r.Snippet,
			Source:   r.Source,
			Date:     r.Date,
			Position: pos,
		})
	}

	if c.cache != nil {
		if data, err := json.Marshal(results); err == nil {
			if err := c.cache.Set(ctx, key, data, c.cfg.CacheTTL).Err(); err != nil {
				c.logger.Debug("Search cache write failed", zap.Error(err))
			}
		}
	}
	return results, false, nil
}

type providerResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Source   string `json:"source"`
	Date     string `json:"date"`
	Position int    `json:"position"`
}

func (c *SearchClient) cacheKey(query string, page, perPage int) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s|%s", query, page, perPage, c.cfg.Recency, c.cfg.Locale)))
	return searchCachePrefix + hex.EncodeToString(sum[:])
}

func recencyHint(recency string) string {
	switch recency {
	case "day":
		return "qdr:d"
	case "week":
		return "qdr:w"
	case "month":
		return "qdr:m"
	case "year":
		return "qdr:y"
	default:
		return ""
	}
}

// SnippetFindings converts scored provider results into snippet-tier
// findings. Excluded hosts are dropped here so they never reach the filter
// or consume crawl budget. Each finding carries one fact bucketing the
// snippet text into a coverage category.
func SnippetFindings(kind subject.Kind, results []SearchResult, scorer Scorer) []Finding {
	findings := make([]Finding, 0, len(results))
	for _, r := range results {
		if r.URL == "" || Excluded(r.URL) {
			continue
		}
		f := Finding{
			URL:       r.URL,
			Title:     r.Title,
			Tier:      TierSearchSnippet,
			Score:     scorer.Score(r),
			Rank:      r.Rank,
			Source:    r.Source,
			Published: r.Date,
		}
		if r.Snippet != "" {
			f.Facts = []Fact{{
				Category:  CategorizeText(kind, r.Title+" "+r.Snippet),
				Statement: r.Snippet,
			}}
		}
		findings = append(findings, f)
	}
	metrics.FunnelFindings.WithLabelValues(string(TierSearchSnippet)).Observe(float64(len(findings)))
	return findings
}
