// Package config loads and validates importer configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Importer   ImporterConfig   `mapstructure:"importer"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Confidence ConfidenceConfig `mapstructure:"confidence"`
	Domains    DomainsConfig    `mapstructure:"domains"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	AI         AIConfig         `mapstructure:"ai"`
	Nutrition  NutritionConfig  `mapstructure:"nutrition"`
	DB         DBConfig         `mapstructure:"db"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ImporterConfig governs the worker pool and job retries.
type ImporterConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueDepth     int           `mapstructure:"queue_depth"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	JobTimeout     time.Duration `mapstructure:"job_timeout"`
}

// FetchConfig configures plain page retrieval, caching and robots.txt.
type FetchConfig struct {
	UserAgent       string        `mapstructure:"user_agent"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxBodyBytes    int           `mapstructure:"max_body_bytes"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheMaxEntries int           `mapstructure:"cache_max_entries"`
	RobotsTTL       time.Duration `mapstructure:"robots_ttl"`
	RespectRobots   bool          `mapstructure:"respect_robots"`
}

// RateLimitConfig sets the per-domain token buckets.
type RateLimitConfig struct {
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	MaxWait time.Duration `mapstructure:"max_wait"`
}

// BreakerConfig sets the per-domain circuit breakers.
type BreakerConfig struct {
	Threshold     int           `mapstructure:"threshold"`
	Window        time.Duration `mapstructure:"window"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	MaxCooldown   time.Duration `mapstructure:"max_cooldown"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	PoolSize      int           `mapstructure:"pool_size"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
	PromoteSPA    bool          `mapstructure:"promote_spa"`
}

// ExtractionConfig holds per-tier acceptance thresholds.
type ExtractionConfig struct {
	StructuredMin  float64 `mapstructure:"structured_min"`
	AdapterMin     float64 `mapstructure:"adapter_min"`
	AIMin          float64 `mapstructure:"ai_min"`
	AutoSaveMin    float64 `mapstructure:"auto_save_min"`
	AICeiling      float64 `mapstructure:"ai_ceiling"`
	AIMaxChars     int     `mapstructure:"ai_max_chars"`
	MinTextQuality float64 `mapstructure:"min_text_quality"`
}

// ConfidenceConfig weighs the aggregated confidence inputs.
type ConfidenceConfig struct {
	ExtractionWeight float64 `mapstructure:"extraction_weight"`
	DetectorWeight   float64 `mapstructure:"detector_weight"`
	DomainWeight     float64 `mapstructure:"domain_weight"`
}

// DomainsConfig points at the domain registry.
type DomainsConfig struct {
	RegistryFile   string  `mapstructure:"registry_file"`
	UnknownWeight  float64 `mapstructure:"unknown_weight"`
	UnknownCeiling float64 `mapstructure:"unknown_ceiling"`
}

// DedupConfig selects whose recipes count as duplicates.
type DedupConfig struct {
	Scope string `mapstructure:"scope"`
}

// AIConfig selects the AI extraction provider.
type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// NutritionConfig points at the nutrition engine.
type NutritionConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

// DBConfig controls access to the relational database. An empty DSN keeps
// jobs and recipes in memory.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// StorageConfig selects where review snapshots go.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for job event notifications. An empty topic
// logs events instead.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// AI providers.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendGCS    = "gcs"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IMPORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("importer.workers", 4)
	v.SetDefault("importer.queue_depth", 128)
	v.SetDefault("importer.max_attempts", 4)
	v.SetDefault("importer.backoff_initial", 500*time.Millisecond)
	v.SetDefault("importer.backoff_max", 30*time.Second)
	v.SetDefault("importer.job_timeout", 2*time.Minute)
	v.SetDefault("fetch.user_agent", "recipe-importer/1.0")
	v.SetDefault("fetch.timeout", 20*time.Second)
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("fetch.cache_ttl", 15*time.Minute)
	v.SetDefault("fetch.cache_max_entries", 1000)
	v.SetDefault("fetch.robots_ttl", 24*time.Hour)
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("ratelimit.rps", 1.0)
	v.SetDefault("ratelimit.burst", 2)
	v.SetDefault("ratelimit.max_wait", 5*time.Second)
	v.SetDefault("breaker.threshold", 5)
	v.SetDefault("breaker.window", time.Minute)
	v.SetDefault("breaker.cooldown", 30*time.Second)
	v.SetDefault("breaker.backoff_factor", 2.0)
	v.SetDefault("breaker.max_cooldown", 10*time.Minute)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.pool_size", 2)
	v.SetDefault("headless.render_timeout", 30*time.Second)
	v.SetDefault("headless.promote_spa", true)
	v.SetDefault("extraction.structured_min", 0.6)
	v.SetDefault("extraction.adapter_min", 0.5)
	v.SetDefault("extraction.ai_min", 0.4)
	v.SetDefault("extraction.auto_save_min", 0.75)
	v.SetDefault("extraction.ai_ceiling", 0.7)
	v.SetDefault("extraction.ai_max_chars", 12000)
	v.SetDefault("extraction.min_text_quality", 0.3)
	v.SetDefault("confidence.extraction_weight", 0.7)
	v.SetDefault("confidence.detector_weight", 0.1)
	v.SetDefault("confidence.domain_weight", 0.2)
	v.SetDefault("domains.registry_file", "")
	v.SetDefault("domains.unknown_weight", 0.6)
	v.SetDefault("domains.unknown_ceiling", 0.85)
	v.SetDefault("dedup.scope", "user")
	v.SetDefault("ai.provider", ProviderNone)
	v.SetDefault("ai.timeout", 30*time.Second)
	v.SetDefault("nutrition.endpoint", "")
	v.SetDefault("nutrition.timeout", 10*time.Second)
	v.SetDefault("nutrition.concurrency", 2)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.migrate", true)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Importer.Workers <= 0 {
		return fmt.Errorf("importer.workers must be > 0")
	}
	if c.Importer.QueueDepth <= 0 {
		return fmt.Errorf("importer.queue_depth must be > 0")
	}
	if c.Importer.MaxAttempts <= 0 {
		return fmt.Errorf("importer.max_attempts must be > 0")
	}
	if c.Importer.BackoffInitial <= 0 || c.Importer.BackoffMax < c.Importer.BackoffInitial {
		return fmt.Errorf("importer.backoff_initial must be > 0 and <= importer.backoff_max")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Breaker.Threshold <= 0 {
		return fmt.Errorf("breaker.threshold must be > 0")
	}
	if c.Headless.Enabled && c.Headless.PoolSize <= 0 {
		return fmt.Errorf("headless.pool_size must be > 0 when headless is enabled")
	}
	for name, v := range map[string]float64{
		"extraction.structured_min": c.Extraction.StructuredMin,
		"extraction.adapter_min":    c.Extraction.AdapterMin,
		"extraction.ai_min":         c.Extraction.AIMin,
		"extraction.auto_save_min":  c.Extraction.AutoSaveMin,
		"extraction.ai_ceiling":     c.Extraction.AICeiling,
		"domains.unknown_weight":    c.Domains.UnknownWeight,
		"domains.unknown_ceiling":   c.Domains.UnknownCeiling,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1]", name)
		}
	}
	sum := c.Confidence.ExtractionWeight + c.Confidence.DetectorWeight + c.Confidence.DomainWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("confidence weights must sum to 1, got %.3f", sum)
	}
	switch c.Dedup.Scope {
	case "user", "global":
	default:
		return fmt.Errorf("dedup.scope must be user or global")
	}
	switch c.AI.Provider {
	case ProviderNone, "":
	case ProviderGemini, ProviderClaude:
		if c.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key must be set for provider %s", c.AI.Provider)
		}
	default:
		return fmt.Errorf("ai.provider must be none, gemini or claude")
	}
	switch c.Storage.Backend {
	case BackendMemory, "":
	case BackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be memory or gcs")
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	return nil
}
