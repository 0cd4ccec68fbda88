package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/draftline-ai/orchestrator/internal/circuitbreaker"
	"github.com/draftline-ai/orchestrator/internal/interceptors"
	"github.com/draftline-ai/orchestrator/internal/metrics"
	"github.com/draftline-ai/orchestrator/internal/pricing"
	"github.com/draftline-ai/orchestrator/internal/subject"
)

// Statements kept from crawled content are bounded so findings stay small
// enough for workflow history payloads.
const maxStatementLen = 500

// CrawlResult is a successful fetch-and-extract for one URL.
type CrawlResult struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	Facts      []Fact `json:"facts,omitempty"`
	Crawler    string `json:"crawler"`
	WordCount  int    `json:"word_count"`
	CostMicros int64  `json:"cost_micros"`
}

// Crawler is one rung of the fallback chain.
type Crawler interface {
	Name() string
	Fetch(ctx context.Context, url string) (CrawlResult, error)
}

// ChainConfig selects which rungs are available. The basic in-process
// fetcher is always last; service rungs join only when configured.
type ChainConfig struct {
	ServiceURL string
	PremiumURL string
	PremiumKey string
	Timeout    time.Duration
}

// Chain tries each crawler in order and returns the first success with
// attribution. Rung failures are expected and logged at debug; the chain
// errors only when every rung fails.
type Chain struct {
	rungs   []Crawler
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewChain builds the fallback chain: extraction service, then the premium
// extractor, then the basic fetcher.
func NewChain(cfg ChainConfig, limiter *rate.Limiter, logger *zap.Logger) *Chain {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	var rungs []Crawler
	if cfg.ServiceURL != "" {
		rungs = append(rungs, &serviceCrawler{
			url: cfg.ServiceURL,
			http: circuitbreaker.NewHTTPWrapper(&http.Client{
				Timeout:   cfg.Timeout,
				Transport: interceptors.NewProviderRoundTripper("crawl_service", nil),
			}, "crawl_service", logger),
		})
	}
	if cfg.PremiumURL != "" {
		rungs = append(rungs, &premiumCrawler{
			url: cfg.PremiumURL,
			key: cfg.PremiumKey,
			http: circuitbreaker.NewHTTPWrapper(&http.Client{
				Timeout:   cfg.Timeout,
				Transport: interceptors.NewProviderRoundTripper("crawl_premium", nil),
			}, "crawl_premium", logger),
		})
	}
	rungs = append(rungs, &basicCrawler{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: interceptors.NewProviderRoundTripper("crawl_basic", nil),
		},
	})
	return &Chain{rungs: rungs, limiter: limiter, logger: logger}
}

// Fetch walks the chain for one URL.
func (c *Chain) Fetch(ctx context.Context, url string) (CrawlResult, error) {
	var lastErr error
	for _, rung := range c.rungs {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return CrawlResult{}, err
			}
		}
		res, err := rung.Fetch(ctx, url)
		if err != nil {
			lastErr = err
			metrics.CrawlAttempts.WithLabelValues(rung.Name(), "error").Inc()
			c.logger.Debug("Crawler rung failed",
				zap.String("crawler", rung.Name()),
				zap.String("url", url),
				zap.Error(err),
			)
			continue
		}
		metrics.CrawlAttempts.WithLabelValues(rung.Name(), "ok").Inc()
		res.URL = url
		res.Crawler = rung.Name()
		return res, nil
	}
	return CrawlResult{}, fmt.Errorf("all crawlers failed for %s: %w", url, lastErr)
}

// CrawledFinding promotes a snippet finding using extracted content. The
// score keeps max(snippet score, content-derived score). When the crawler
// returned no structured facts the content is bucketed into one category so
// the finding still counts toward coverage.
func CrawledFinding(kind subject.Kind, snippet Finding, res CrawlResult) Finding {
	facts := res.Facts
	if len(facts) == 0 && res.Content != "" {
		facts = []Fact{{
			Category:  CategorizeText(kind, res.Content),
			Statement: excerpt(res.Content, maxStatementLen),
		}}
	}
	for i := range facts {
		facts[i].Statement = excerpt(facts[i].Statement, maxStatementLen)
	}
	title := res.Title
	if title == "" {
		title = snippet.Title
	}
	return Finding{
		URL:        snippet.URL,
		Title:      title,
		Tier:       TierCrawledFull,
		Score:      math.Max(snippet.Score, ContentScore(res.WordCount, len(facts))),
		Rank:       snippet.Rank,
		Facts:      facts,
		Crawler:    res.Crawler,
		WordCount:  res.WordCount,
		Source:     snippet.Source,
		Published:  snippet.Published,
		CostMicros: res.CostMicros,
	}
}

// serviceCrawler calls the primary extraction service, which returns
// structured facts alongside the text when its extractors recognize the
// page.
type serviceCrawler struct {
	url  string
	http *circuitbreaker.HTTPWrapper
}

func (s *serviceCrawler) Name() string { return "service" }

func (s *serviceCrawler) Fetch(ctx context.Context, url string) (CrawlResult, error) {
	body, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return CrawlResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.url, "/")+"/crawl", bytes.NewReader(body))
	if err != nil {
		return CrawlResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return CrawlResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return CrawlResult{}, fmt.Errorf("crawl service returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Success   bool   `json:"success"`
		Title     string `json:"title"`
		Content   string `json:"content"`
		WordCount int    `json:"word_count"`
		Facts     []Fact `json:"facts"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return CrawlResult{}, fmt.Errorf("decode crawl response: %w", err)
	}
	if !decoded.Success || decoded.Content == "" {
		reason := decoded.Error
		if reason == "" {
			reason = "empty extraction"
		}
		return CrawlResult{}, fmt.Errorf("crawl service: %s", reason)
	}
	wc := decoded.WordCount
	if wc == 0 {
		wc = len(strings.Fields(decoded.Content))
	}
	return CrawlResult{
		Title:     decoded.Title,
		Content:   decoded.Content,
		Facts:     decoded.Facts,
		WordCount: wc,
	}, nil
}

// premiumCrawler calls the paid extractor. It is only consulted when the
// primary service failed, and only its successes cost money.
type premiumCrawler struct {
	url  string
	key  string
	http *circuitbreaker.HTTPWrapper
}

func (p *premiumCrawler) Name() string { return "premium" }

func (p *premiumCrawler) Fetch(ctx context.Context, url string) (CrawlResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"url":             url,
		"formats":         []string{"markdown"},
		"onlyMainContent": true,
	})
	if err != nil {
		return CrawlResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return CrawlResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.key != "" {
		req.Header.Set("Authorization", "Bearer "+p.key)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return CrawlResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return CrawlResult{}, fmt.Errorf("premium crawler returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Success bool `json:"success"`
		Data    struct {
			Markdown string `json:"markdown"`
			Metadata struct {
				Title string `json:"title"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return CrawlResult{}, fmt.Errorf("decode premium response: %w", err)
	}
	if !decoded.Success || decoded.Data.Markdown == "" {
		return CrawlResult{}, fmt.Errorf("premium crawler returned no content")
	}
	return CrawlResult{
		Title:      decoded.Data.Metadata.Title,
		Content:    decoded.Data.Markdown,
		WordCount:  len(strings.Fields(decoded.Data.Markdown)),
		CostMicros: pricing.PremiumCrawlCost(),
	}, nil
}

// basicCrawler fetches the page directly and extracts readable text. Free,
// last resort, no structured facts. No breaker here: it hits arbitrary
// third-party sites, so consecutive failures say nothing about a single
// endpoint's health.
type basicCrawler struct {
	http *http.Client
}

func (b *basicCrawler) Name() string { return "basic" }

func (b *basicCrawler) Fetch(ctx context.Context, url string) (CrawlResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CrawlResult{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; draftline/1.0)")

	resp, err := b.http.Do(req)
	if err != nil {
		return CrawlResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return CrawlResult{}, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return CrawlResult{}, fmt.Errorf("unsupported content type %q", ct)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return CrawlResult{}, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, nav, footer, header, aside, noscript, form").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	sel := doc.Find("main")
	if sel.Length() == 0 {
		sel = doc.Find("article")
	}
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	text := strings.Join(strings.Fields(sel.Text()), " ")
	words := len(strings.Fields(text))
	if words < 50 {
		return CrawlResult{}, fmt.Errorf("extracted text too thin (%d words)", words)
	}
	return CrawlResult{
		Title:     title,
		Content:   text,
		WordCount: words,
	}, nil
}

func excerpt(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	cut := string(runes[:maxLen])
	if i := strings.LastIndexByte(cut, ' '); i > maxLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
