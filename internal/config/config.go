package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// WorkerConfig holds worker runtime knobs.
type WorkerConfig struct {
	TaskQueue               string `mapstructure:"task_queue"`
	MaxConcurrentWorkflows  int    `mapstructure:"max_concurrent_workflows"`
	MaxConcurrentActivities int    `mapstructure:"max_concurrent_activities"`
	StopTimeoutS            int    `mapstructure:"stop_timeout_s"`
}

// FunnelConfig holds the research funnel tuning. These values are read by
// workflows through the GetFunnelConfig activity so a mid-run reload never
// changes the behavior of an instance that already started.
type FunnelConfig struct {
	CoverageThreshold float64 `mapstructure:"coverage_threshold" json:"coverage_threshold"`
	SearchPages       int     `mapstructure:"search_pages" json:"search_pages"`
	ResultsPerPage    int     `mapstructure:"results_per_page" json:"results_per_page"`
	MinSnippetScore   float64 `mapstructure:"min_snippet_score" json:"min_snippet_score"`
	CrawlBudget       int     `mapstructure:"crawl_budget" json:"crawl_budget"`
	CrawlRetries      int     `mapstructure:"crawl_retries" json:"crawl_retries"`
	RankDecay         float64 `mapstructure:"rank_decay" json:"rank_decay"`
	CostCeilingMicros int64   `mapstructure:"cost_ceiling_micros" json:"cost_ceiling_micros"`
	EscalationEnabled bool    `mapstructure:"escalation_enabled" json:"escalation_enabled"`
	Recency           string  `mapstructure:"recency" json:"recency"`
	Locale            string  `mapstructure:"locale" json:"locale"`
}

// ActivityConfig holds the per-activity defaults from the recognized options.
type ActivityConfig struct {
	DefaultTimeoutS int `mapstructure:"default_timeout_s"`
	DefaultRetries  int `mapstructure:"default_retries"`
}

// ObservabilityConfig mirrors the metrics/logging/tracing block.
type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	Tracing struct {
		Enabled  bool   `mapstructure:"enabled"`
		Endpoint string `mapstructure:"endpoint"`
	} `mapstructure:"tracing"`
}

// PolicyConfig holds the publish gate knobs.
type PolicyConfig struct {
	Path         string `mapstructure:"path"`
	Mode         string `mapstructure:"mode"` // off, dry-run, enforce
	AllowPartial bool   `mapstructure:"allow_partial"`
}

// Features is the full features.yaml document.
type Features struct {
	Worker        WorkerConfig        `mapstructure:"worker"`
	Funnel        FunnelConfig        `mapstructure:"funnel"`
	Activities    ActivityConfig      `mapstructure:"activities"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Policy        PolicyConfig        `mapstructure:"policy"`
}

// Defaults returns the compiled-in configuration used when features.yaml is
// absent or a field is zero.
func Defaults() Features {
	var f Features
	f.Worker.TaskQueue = "draftline-queue"
	f.Worker.MaxConcurrentWorkflows = 20
	f.Worker.MaxConcurrentActivities = 50
	f.Worker.StopTimeoutS = 30
	f.Funnel = FunnelConfig{
		CoverageThreshold: 0.75,
		SearchPages:       2,
		ResultsPerPage:    10,
		MinSnippetScore:   0.30,
		CrawlBudget:       10,
		CrawlRetries:      2,
		RankDecay:         0.90,
		CostCeilingMicros: 500_000,
		EscalationEnabled: true,
		Recency:           "month",
		Locale:            "us",
	}
	f.Activities.DefaultTimeoutS = 30
	f.Activities.DefaultRetries = 3
	f.Observability.Metrics.Enabled = true
	f.Observability.Metrics.Port = 2112
	f.Observability.Logging.Level = "info"
	f.Policy.Path = "./config/policies"
	f.Policy.Mode = "dry-run"
	f.Policy.AllowPartial = true
	return f
}

// Load reads features.yaml from CONFIG_PATH (default ./config/features.yaml),
// merges it over Defaults, and applies environment overrides.
func Load() (Features, error) {
	f := Defaults()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./config/features.yaml"
	}

	v := viper.New()
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine; a malformed one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if _, statErr := os.Stat(cfgPath); statErr == nil {
				return f, fmt.Errorf("read config %s: %w", cfgPath, err)
			}
		}
	} else {
		if err := v.Unmarshal(&f); err != nil {
			return f, fmt.Errorf("unmarshal config %s: %w", cfgPath, err)
		}
	}

	applyEnvOverrides(&f)
	return f, nil
}

func applyEnvOverrides(f *Features) {
	f.Worker.TaskQueue = GetEnvOrDefault("TASK_QUEUE", f.Worker.TaskQueue)
	f.Worker.MaxConcurrentWorkflows = GetEnvOrDefaultInt("WORKER_WF", f.Worker.MaxConcurrentWorkflows)
	f.Worker.MaxConcurrentActivities = GetEnvOrDefaultInt("WORKER_ACT", f.Worker.MaxConcurrentActivities)
	f.Observability.Metrics.Port = GetEnvOrDefaultInt("METRICS_PORT", f.Observability.Metrics.Port)
	f.Observability.Logging.Level = GetEnvOrDefault("LOG_LEVEL", f.Observability.Logging.Level)
	f.Policy.Path = GetEnvOrDefault("POLICY_PATH", f.Policy.Path)
	f.Policy.Mode = GetEnvOrDefault("POLICY_MODE", f.Policy.Mode)
	if v := os.Getenv("COST_CEILING_MICROS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			f.Funnel.CostCeilingMicros = n
		}
	}
	if v := os.Getenv("COVERAGE_THRESHOLD"); v != "" {
		if x, err := strconv.ParseFloat(v, 64); err == nil && x > 0 && x <= 1 {
			f.Funnel.CoverageThreshold = x
		}
	}
}

// StopTimeout returns the worker stop timeout as a duration.
func (w WorkerConfig) StopTimeout() time.Duration {
	if w.StopTimeoutS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(w.StopTimeoutS) * time.Second
}

// DefaultTimeout returns the default activity timeout as a duration.
func (a ActivityConfig) DefaultTimeout() time.Duration {
	if a.DefaultTimeoutS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.DefaultTimeoutS) * time.Second
}

// GetEnvOrDefault returns the environment value or the fallback.
func GetEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvOrDefaultInt returns the environment value parsed as int or the fallback.
func GetEnvOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
