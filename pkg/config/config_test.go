package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
parser:
  chunk_size: 500
  progress_mode: bytes
  workers: 4
catalog:
  path: /etc/halog/catalog.yaml
analysis:
  confidence_level: 0.9
  seed: 7
  max_gap: 15m
  anomaly:
    contamination: 0.05
    statistics: [avg, max]
faults:
  database_a: /data/faults_a.txt
store:
  path: /data/halog.db
logging:
  level: debug
  format: json
`
	path := writeTempFile(t, "halog.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Parser.ChunkSize != 500 {
		t.Errorf("ChunkSize = %d, want 500", cfg.Parser.ChunkSize)
	}
	if cfg.Parser.ProgressMode != "bytes" {
		t.Errorf("ProgressMode = %q, want bytes", cfg.Parser.ProgressMode)
	}
	if cfg.Parser.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Parser.Workers)
	}
	if cfg.Catalog.Path != "/etc/halog/catalog.yaml" {
		t.Errorf("Catalog.Path = %q", cfg.Catalog.Path)
	}
	if cfg.Analysis.ConfidenceLevel != 0.9 {
		t.Errorf("ConfidenceLevel = %v, want 0.9", cfg.Analysis.ConfidenceLevel)
	}
	if cfg.Analysis.Seed != 7 {
		t.Errorf("Seed = %d, want 7", cfg.Analysis.Seed)
	}
	if cfg.Analysis.MaxGap != 15*time.Minute {
		t.Errorf("MaxGap = %v, want 15m", cfg.Analysis.MaxGap)
	}
	if cfg.Analysis.Anomaly.Contamination != 0.05 {
		t.Errorf("Contamination = %v, want 0.05", cfg.Analysis.Anomaly.Contamination)
	}
	if got := strings.Join(cfg.Analysis.Anomaly.Statistics, ","); got != "avg,max" {
		t.Errorf("Statistics = %q, want avg,max", got)
	}
	if cfg.Faults.DatabaseA != "/data/faults_a.txt" || cfg.Faults.DatabaseB != "" {
		t.Errorf("Faults = %+v", cfg.Faults)
	}
	if cfg.Store.Path != "/data/halog.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}

	// Unset keys keep their defaults.
	if cfg.Analysis.BootstrapResamples != DefaultBootstrapResamples {
		t.Errorf("BootstrapResamples = %d, want default", cfg.Analysis.BootstrapResamples)
	}
	if cfg.Analysis.Anomaly.Trees != DefaultTrees {
		t.Errorf("Trees = %d, want default", cfg.Analysis.Anomaly.Trees)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Parser.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.Parser.ChunkSize, DefaultChunkSize)
	}
	if cfg.Analysis.MaxGap != 0 {
		t.Errorf("MaxGap = %v, want 0", cfg.Analysis.MaxGap)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HALOG_PARSER_CHUNK_SIZE", "250")
	t.Setenv("HALOG_LOGGING_LEVEL", "warn")
	t.Setenv("HALOG_STORE_PATH", "/tmp/env.db")

	path := writeTempFile(t, "halog.yaml", "parser:\n  chunk_size: 500\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Parser.ChunkSize != 250 {
		t.Errorf("ChunkSize = %d, want 250 from environment", cfg.Parser.ChunkSize)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Store.Path != "/tmp/env.db" {
		t.Errorf("Store.Path = %q, want /tmp/env.db", cfg.Store.Path)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "invalid.yaml", `invalid: yaml: content: [`)
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	path := writeTempFile(t, "bad.yaml", "parser:\n  progress_mode: percent\n")
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Fatal("Load() expected validation error")
	}
	if !strings.Contains(err.Error(), "parser: invalid progress_mode") {
		t.Errorf("error = %v, want parser path prefix", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(DefaultConfig()) error = %v", err)
	}
	if cfg.Analysis.Seed != DefaultSeed {
		t.Errorf("Seed = %d, want %d", cfg.Analysis.Seed, DefaultSeed)
	}
	if len(cfg.Analysis.Anomaly.Statistics) != 1 || cfg.Analysis.Anomaly.Statistics[0] != "avg" {
		t.Errorf("Statistics = %v, want [avg]", cfg.Analysis.Anomaly.Statistics)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"chunk size", func(c *Config) { c.Parser.ChunkSize = 0 }, "parser: chunk_size"},
		{"workers", func(c *Config) { c.Parser.Workers = 0 }, "parser: workers"},
		{"confidence", func(c *Config) { c.Analysis.ConfidenceLevel = 1 }, "analysis: confidence_level"},
		{"resamples", func(c *Config) { c.Analysis.BootstrapResamples = 0 }, "analysis: bootstrap_resamples"},
		{"trend points", func(c *Config) { c.Analysis.TrendMinPoints = 2 }, "analysis: trend_min_points"},
		{"max gap", func(c *Config) { c.Analysis.MaxGap = -time.Second }, "analysis: max_gap"},
		{"contamination", func(c *Config) { c.Analysis.Anomaly.Contamination = 0.7 }, "analysis: anomaly: contamination"},
		{"min points", func(c *Config) { c.Analysis.Anomaly.MinPoints = 1 }, "analysis: anomaly: min_points"},
		{"no statistics", func(c *Config) { c.Analysis.Anomaly.Statistics = nil }, "anomaly: statistics"},
		{"bad statistic", func(c *Config) { c.Analysis.Anomaly.Statistics = []string{"median"} }, "statistics[0]"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging: invalid level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging: invalid format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestValidate_Webhook_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Webhooks = []WebhookConfig{{
		Name:    "ops",
		URL:     "https://example.com/hook",
		Trigger: WebhookTriggerAlways,
		Timeout: 5 * time.Second,
	}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Webhooks[0].Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Webhooks[0].Timeout)
	}
}

func TestValidate_Webhook_Errors(t *testing.T) {
	tests := []struct {
		name string
		wh   WebhookConfig
	}{
		{"missing url", WebhookConfig{}},
		{"bad scheme", WebhookConfig{URL: "ftp://example.com"}},
		{"no host", WebhookConfig{URL: "https://"}},
		{"bad trigger", WebhookConfig{URL: "https://example.com", Trigger: "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Webhooks = []WebhookConfig{tt.wh}
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.HasPrefix(err.Error(), "webhooks[0]") {
				t.Errorf("error = %v, want webhooks[0] prefix", err)
			}
		})
	}
}

func TestValidate_Webhook_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Webhooks = []WebhookConfig{{URL: "http://localhost:8080/hook"}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Webhooks[0].Trigger != WebhookTriggerOnIssues {
		t.Errorf("Trigger = %v, want %v", cfg.Webhooks[0].Trigger, WebhookTriggerOnIssues)
	}
	if cfg.Webhooks[0].Timeout != DefaultWebhookTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Webhooks[0].Timeout, DefaultWebhookTimeout)
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_TOKEN", "secret-value")

	tests := []struct {
		input string
		want  string
	}{
		{"${TEST_WEBHOOK_TOKEN}", "secret-value"},
		{"$TEST_WEBHOOK_TOKEN", "secret-value"},
		{"plain-value", "plain-value"},
		{"", ""},
		{"${NONEXISTENT_VAR}", ""},
	}

	for _, tt := range tests {
		got := expandEnvVar(tt.input)
		if got != tt.want {
			t.Errorf("expandEnvVar(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoad_WithWebhooks(t *testing.T) {
	t.Setenv("HOOK_TOKEN", "abc")
	content := `
webhooks:
  - name: test-webhook
    url: "https://example.com/webhook"
    token: "${HOOK_TOKEN}"
    trigger: on_issues
    timeout: 30s
  - url: "https://backup.example.com/webhook"
    trigger: always
`
	path := writeTempFile(t, "config-with-webhooks.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Webhooks) != 2 {
		t.Fatalf("Webhooks = %d, want 2", len(cfg.Webhooks))
	}
	if cfg.Webhooks[0].Name != "test-webhook" {
		t.Errorf("Webhook[0].Name = %q, want %q", cfg.Webhooks[0].Name, "test-webhook")
	}
	if cfg.Webhooks[0].Token != "abc" {
		t.Errorf("Webhook[0].Token = %q, want expanded value", cfg.Webhooks[0].Token)
	}
	if cfg.Webhooks[0].Timeout != 30*time.Second {
		t.Errorf("Webhook[0].Timeout = %v, want 30s", cfg.Webhooks[0].Timeout)
	}
	if cfg.Webhooks[1].Trigger != WebhookTriggerAlways {
		t.Errorf("Webhook[1].Trigger = %v, want %v", cfg.Webhooks[1].Trigger, WebhookTriggerAlways)
	}
	if cfg.Webhooks[1].Timeout != DefaultWebhookTimeout {
		t.Errorf("Webhook[1].Timeout = %v, want default", cfg.Webhooks[1].Timeout)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}
