// Package ratecontrol holds the per-provider request throttle table. Limits
// live in config/rates.yaml next to the pricing table so provider tuning is
// one file; each entry becomes the rate.Limiter handed to that provider's
// client at startup.
package ratecontrol

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

type config struct {
	RateLimits struct {
		DefaultRPM int            `yaml:"default_rpm"`
		Providers  map[string]int `yaml:"providers_rpm"`
	} `yaml:"rate_limits"`
}

var (
	mu          sync.RWMutex
	loaded      *config
	initialized bool
)

// Built-in requests-per-minute limits, matched to the free tiers of the
// providers the research funnel talks to.
var builtInRPM = map[string]int{
	"search":     60,
	"crawl":      120,
	"premium":    30,
	"deepsearch": 12,
	"knowledge":  120,
	"llm":        30,
	"media":      10,
}

var defaultPaths = []string{
	os.Getenv("PRICING_CONFIG_PATH"),
	"/app/config/rates.yaml",
	"./config/rates.yaml",
}

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

// Reload re-reads the throttle table. Limiters already handed out keep their
// old rate; Reload only affects limiters built afterwards.
func Reload() {
	mu.Lock()
	defer mu.Unlock()
	loadLocked()
}

// RPMFor returns the requests-per-minute limit for a provider: configured
// override, then the built-in table, then the configured default. Zero means
// unthrottled.
func RPMFor(provider string) int {
	provider = strings.ToLower(strings.TrimSpace(provider))
	c := get()
	if c != nil {
		if rpm, ok := c.RateLimits.Providers[provider]; ok {
			return rpm
		}
	}
	if rpm, ok := builtInRPM[provider]; ok {
		return rpm
	}
	if c != nil {
		return c.RateLimits.DefaultRPM
	}
	return 0
}

// LimiterFor builds the token-bucket limiter for a provider, with a burst of
// one second's worth of requests (minimum 1). Unthrottled providers get nil,
// which the clients treat as no limiter.
func LimiterFor(provider string) *rate.Limiter {
	rpm := RPMFor(provider)
	if rpm <= 0 {
		return nil
	}
	burst := rpm / 60
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}
