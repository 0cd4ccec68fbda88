// Package pricing holds the provider rate table used for research cost
// accounting. All amounts are USD micros so per-instance ledgers stay in
// integer arithmetic.
package pricing

import (
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	pmetrics "github.com/draftline-ai/orchestrator/internal/metrics"
)

// config mirrors the rates section of config/rates.yaml.
type config struct {
	Rates struct {
		SearchPageMicros       int64 `yaml:"search_page_micros"`
		PremiumCrawlMicros     int64 `yaml:"premium_crawl_micros"`
		DeepsearchResultMicros int64 `yaml:"deepsearch_result_micros"`
		MediaAssetMicros       int64 `yaml:"media_asset_micros"`
		LLM                    struct {
			DefaultPer1KMicros int64            `yaml:"default_per_1k_micros"`
			Models             map[string]int64 `yaml:"models_per_1k_micros"`
		} `yaml:"llm"`
	} `yaml:"rates"`
}

var (
	mu          sync.RWMutex
	loaded      *config
	initialized bool
)

// Compiled-in defaults: Serper-class search at $0.001/page, premium crawl at
// $0.01/page, deep search at $0.005/result, media at $0.025/asset.
const (
	defaultSearchPageMicros       = 1_000
	defaultPremiumCrawlMicros     = 10_000
	defaultDeepsearchResultMicros = 5_000
	defaultMediaAssetMicros       = 25_000
	defaultLLMPer1KMicros         = 3_000
)

var defaultPaths = []string{
	os.Getenv("PRICING_CONFIG_PATH"),
	"/app/config/rates.yaml",
	"./config/rates.yaml",
}

// findUpConfig searches parent directories for config/rates.yaml so tests in
// nested packages resolve the repo copy.
func findUpConfig() (string, bool) {
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for i := 0; i < 6; i++ {
		cand := filepath.Join(wd, "config", "rates.yaml")
		if _, err := os.Stat(cand); err == nil {
			return cand, true
		}
		wd = filepath.Dir(wd)
	}
	return "", false
}

// loadLocked loads the rate table. Must be called while holding mu.
func loadLocked() {
	var cfg config
	paths := defaultPaths
	if p, ok := findUpConfig(); ok {
		paths = append(paths, p)
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var tmp config
		if err := yaml.Unmarshal(data, &tmp); err != nil {
			continue
		}
		cfg = tmp
		break
	}
	loaded = &cfg
	initialized = true
}

func get() *config {
	mu.RLock()
	if initialized {
		defer mu.RUnlock()
		return loaded
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		loadLocked()
	}
	return loaded
}

// Reload re-reads the rate table from disk. Intended for tests and the
// config manager's change handler.
func Reload() {
	mu.Lock()
	defer mu.Unlock()
	loadLocked()
}

// SearchPageCost returns the cost of one search result page.
func SearchPageCost() int64 {
	if c := get(); c.Rates.SearchPageMicros > 0 {
		return c.Rates.SearchPageMicros
	}
	pmetrics.PricingFallbacks.WithLabelValues("search_page").Inc()
	return defaultSearchPageMicros
}

// PremiumCrawlCost returns the cost of one premium extractor fetch.
func PremiumCrawlCost() int64 {
	if c := get(); c.Rates.PremiumCrawlMicros > 0 {
		return c.Rates.PremiumCrawlMicros
	}
	pmetrics.PricingFallbacks.WithLabelValues("premium_crawl").Inc()
	return defaultPremiumCrawlMicros
}

// DeepsearchResultCost returns the cost of one escalation provider result.
func DeepsearchResultCost() int64 {
	if c := get(); c.Rates.DeepsearchResultMicros > 0 {
		return c.Rates.DeepsearchResultMicros
	}
	pmetrics.PricingFallbacks.WithLabelValues("deepsearch_result").Inc()
	return defaultDeepsearchResultMicros
}

// MediaAssetCost returns the cost of one generated media asset.
func MediaAssetCost() int64 {
	if c := get(); c.Rates.MediaAssetMicros > 0 {
		return c.Rates.MediaAssetMicros
	}
	pmetrics.PricingFallbacks.WithLabelValues("media_asset").Inc()
	return defaultMediaAssetMicros
}

// LLMTokenCost returns the generation cost for the given token count, using
// the per-model rate when configured and the default rate otherwise.
func LLMTokenCost(model string, tokens int) int64 {
	if tokens <= 0 {
		return 0
	}
	c := get()
	rate := c.Rates.LLM.Models[model]
	if rate <= 0 {
		rate = c.Rates.LLM.DefaultPer1KMicros
	}
	if rate <= 0 {
		pmetrics.PricingFallbacks.WithLabelValues("llm_model").Inc()
		rate = defaultLLMPer1KMicros
	}
	// Round up: partial thousands still bill a full unit of rate/1000.
	return (int64(tokens)*rate + 999) / 1000
}
