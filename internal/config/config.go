package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/competitor-intel/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Embedding  EmbeddingConfig  `yaml:"embedding" mapstructure:"embedding"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Scorer     ScorerConfig     `yaml:"scorer" mapstructure:"scorer"`
	Worker     WorkerConfig     `yaml:"worker" mapstructure:"worker"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Cost       cost.Rates       `yaml:"cost" mapstructure:"cost"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings used by the extractor, the
// AI fallback search provider, and the enrichment AI-analysis step.
type AnthropicConfig struct {
	Key                 string  `yaml:"key" mapstructure:"key"`
	ExtractModel        string  `yaml:"extract_model" mapstructure:"extract_model"`
	AnalysisModel       string  `yaml:"analysis_model" mapstructure:"analysis_model"`
	Temperature         float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxBatchSize        int     `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	SmallBatchThreshold int     `yaml:"small_batch_threshold" mapstructure:"small_batch_threshold"`
}

// FirecrawlConfig holds Firecrawl API settings for the primary search
// provider and the enrichment engine's structured scrape/crawl steps.
type FirecrawlConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// PerplexityConfig holds Perplexity API settings for social/LinkedIn
// fallback lookups.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// EmbeddingConfig is optional. Only Threshold is read by the pipeline; no
// embedding client is built from Key, BaseURL or Model, so semantic dedup
// does not run and domain-normalization dedup alone is used.
type EmbeddingConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Model     string  `yaml:"model" mapstructure:"model"`
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// DiscoveryConfig configures the overall run shape: query and result counts.
type DiscoveryConfig struct {
	MaxQueries        int `yaml:"max_queries" mapstructure:"max_queries"`
	MaxResultsPerRun  int `yaml:"max_results_per_run" mapstructure:"max_results_per_run"`
	ResultsPerQuery   int `yaml:"results_per_query" mapstructure:"results_per_query"`
}

// ScorerConfig configures the deterministic relevance scorer.
type ScorerConfig struct {
	RelevanceThreshold int `yaml:"relevance_threshold" mapstructure:"relevance_threshold"`
}

// WorkerConfig configures the worker runtime: bounded concurrency, retry
// policy, and per-run wallclock budget.
type WorkerConfig struct {
	Concurrency       int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxAttempts       int `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffSeconds    int `yaml:"backoff_seconds" mapstructure:"backoff_seconds"`
	RunTimeoutMinutes int `yaml:"run_timeout_minutes" mapstructure:"run_timeout_minutes"`
	SocialProbeLimit  int `yaml:"social_probe_limit" mapstructure:"social_probe_limit"`
	SearchInterCallMs int `yaml:"search_inter_call_ms" mapstructure:"search_inter_call_ms"` // delay between the search and extraction phases
	QueryInterCallMs  int `yaml:"query_inter_call_ms" mapstructure:"query_inter_call_ms"`   // delay between successive provider calls within a search
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port         int      `yaml:"port" mapstructure:"port"`
	AllowOrigins []string `yaml:"allow_origins" mapstructure:"allow_origins"`
}

// TemporalConfig points the serve and worker commands at the same
// Temporal cluster so one enqueues discovery runs the other executes.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// MonitoringConfig configures pipeline health alerting: the periodic
// checker compares a MetricsSnapshot against these thresholds and posts an
// Alert to WebhookURL for each one crossed.
type MonitoringConfig struct {
	Enabled               bool    `yaml:"enabled" mapstructure:"enabled"`
	LookbackHours         int     `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	CheckIntervalMinutes  int     `yaml:"check_interval_minutes" mapstructure:"check_interval_minutes"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinRunsForFailureRate int     `yaml:"min_runs_for_failure_rate" mapstructure:"min_runs_for_failure_rate"`
	CostThresholdUSD      float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COMPINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("anthropic.extract_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.analysis_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("anthropic.max_batch_size", 100)
	v.SetDefault("anthropic.small_batch_threshold", 3)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("firecrawl.max_pages", 25)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("embedding.threshold", 0.85)
	v.SetDefault("discovery.max_queries", 8)
	v.SetDefault("discovery.max_results_per_run", 50)
	v.SetDefault("discovery.results_per_query", 10)
	v.SetDefault("scorer.relevance_threshold", 75)
	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.max_attempts", 2)
	v.SetDefault("worker.backoff_seconds", 5)
	v.SetDefault("worker.run_timeout_minutes", 10)
	v.SetDefault("worker.social_probe_limit", 3)
	v.SetDefault("worker.search_inter_call_ms", 500)
	v.SetDefault("worker.query_inter_call_ms", 1000)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.check_interval_minutes", 15)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_runs_for_failure_rate", 5)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Rates are a nested map keyed by model name, awkward to express as
	// individual viper defaults; fall back wholesale when the config file
	// left the section out.
	if len(cfg.Cost.Anthropic) == 0 {
		cfg.Cost = cost.DefaultRates()
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
