package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Importer.Workers != 4 || cfg.Importer.QueueDepth != 128 || cfg.Importer.MaxAttempts != 4 {
		t.Fatalf("unexpected importer defaults: %+v", cfg.Importer)
	}
	if cfg.Importer.BackoffInitial != 500*time.Millisecond || cfg.Importer.BackoffMax != 30*time.Second {
		t.Fatalf("unexpected backoff defaults: %+v", cfg.Importer)
	}
	if cfg.Breaker.Threshold != 5 || cfg.Breaker.Cooldown != 30*time.Second {
		t.Fatalf("unexpected breaker defaults: %+v", cfg.Breaker)
	}
	if cfg.Extraction.AICeiling != 0.7 || cfg.Extraction.AutoSaveMin != 0.75 {
		t.Fatalf("unexpected extraction defaults: %+v", cfg.Extraction)
	}
	if cfg.Dedup.Scope != "user" || cfg.AI.Provider != ProviderNone || cfg.Storage.Backend != BackendMemory {
		t.Fatalf("unexpected backend defaults: %+v", cfg)
	}
	if cfg.Fetch.MaxBodyBytes != 5<<20 {
		t.Fatalf("expected 5MiB body limit, got %d", cfg.Fetch.MaxBodyBytes)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
importer:
  workers: 6
  queue_depth: 32
  max_attempts: 5
  backoff_initial: 250ms
  backoff_max: 5s
fetch:
  user_agent: test-agent
  respect_robots: false
breaker:
  threshold: 3
  cooldown: 1m
headless:
  enabled: true
  pool_size: 3
dedup:
  scope: global
ai:
  provider: gemini
  api_key: key
  model: gemini-2.5-flash
storage:
  backend: gcs
  bucket: snapshots-bucket
pubsub:
  project_id: proj
  topic: import-events
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Importer.Workers != 6 || cfg.Importer.BackoffInitial != 250*time.Millisecond {
		t.Fatalf("expected importer overrides to apply: %+v", cfg.Importer)
	}
	if cfg.Fetch.RespectRobots || cfg.Fetch.UserAgent != "test-agent" {
		t.Fatalf("expected fetch overrides to apply: %+v", cfg.Fetch)
	}
	if cfg.Breaker.Threshold != 3 || cfg.Breaker.Cooldown != time.Minute {
		t.Fatalf("expected breaker overrides to apply: %+v", cfg.Breaker)
	}
	if cfg.Dedup.Scope != "global" || cfg.AI.Model != "gemini-2.5-flash" {
		t.Fatalf("expected dedup and ai overrides to apply")
	}
	if cfg.Storage.Bucket != "snapshots-bucket" || cfg.PubSub.Topic != "import-events" {
		t.Fatalf("expected storage and pubsub overrides to apply")
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
	if cfg.Storage.Prefix != "snapshots" {
		t.Fatalf("expected default prefix to survive, got %q", cfg.Storage.Prefix)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"no workers", func(c *Config) { c.Importer.Workers = 0 }, "importer.workers"},
		{"no queue", func(c *Config) { c.Importer.QueueDepth = 0 }, "importer.queue_depth"},
		{"no attempts", func(c *Config) { c.Importer.MaxAttempts = 0 }, "importer.max_attempts"},
		{"inverted backoff", func(c *Config) { c.Importer.BackoffMax = time.Millisecond }, "importer.backoff_initial"},
		{"fetch timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "fetch.timeout"},
		{"breaker threshold", func(c *Config) { c.Breaker.Threshold = 0 }, "breaker.threshold"},
		{"headless pool", func(c *Config) { c.Headless.Enabled = true; c.Headless.PoolSize = 0 }, "headless.pool_size"},
		{"ceiling out of range", func(c *Config) { c.Extraction.AICeiling = 1.5 }, "extraction.ai_ceiling"},
		{"weights", func(c *Config) { c.Confidence.DomainWeight = 0.5 }, "confidence weights"},
		{"dedup scope", func(c *Config) { c.Dedup.Scope = "team" }, "dedup.scope"},
		{"ai provider", func(c *Config) { c.AI.Provider = "other" }, "ai.provider"},
		{"ai key", func(c *Config) { c.AI.Provider = ProviderClaude }, "ai.api_key"},
		{"gcs bucket", func(c *Config) { c.Storage.Backend = BackendGCS }, "storage.bucket"},
		{"pubsub project", func(c *Config) { c.PubSub.Topic = "events" }, "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
