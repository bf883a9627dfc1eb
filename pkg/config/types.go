// Package config provides configuration loading and validation for halog.
package config

import "time"

// Config is the root configuration structure loaded from YAML.
type Config struct {
	Parser   ParserConfig    `mapstructure:"parser"`
	Catalog  CatalogConfig   `mapstructure:"catalog"`
	Analysis AnalysisConfig  `mapstructure:"analysis"`
	Faults   FaultsConfig    `mapstructure:"faults"`
	Store    StoreConfig     `mapstructure:"store"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Webhooks []WebhookConfig `mapstructure:"webhooks"`
}

// ParserConfig tunes the file parser.
type ParserConfig struct {
	// ChunkSize is the number of lines between progress reports.
	ChunkSize int `mapstructure:"chunk_size"`

	// ProgressMode is "lines" (two passes, exact) or "bytes" (single pass).
	ProgressMode string `mapstructure:"progress_mode"`

	// Workers is the number of files parsed concurrently. Each worker owns
	// its own parser.
	Workers int `mapstructure:"workers"`
}

// CatalogConfig points at an optional catalog file replacing the embedded one.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// AnalysisConfig tunes the statistics engine.
type AnalysisConfig struct {
	ConfidenceLevel    float64       `mapstructure:"confidence_level"`
	BootstrapResamples int           `mapstructure:"bootstrap_resamples"`
	Seed               uint64        `mapstructure:"seed"`
	TrendMinPoints     int           `mapstructure:"trend_min_points"`
	MaxGap             time.Duration `mapstructure:"max_gap"`
	Anomaly            AnomalyConfig `mapstructure:"anomaly"`
}

// AnomalyConfig tunes the anomaly detectors.
type AnomalyConfig struct {
	MinPoints       int      `mapstructure:"min_points"`
	Contamination   float64  `mapstructure:"contamination"`
	ZScoreThreshold float64  `mapstructure:"zscore_threshold"`
	IQRMultiplier   float64  `mapstructure:"iqr_multiplier"`
	Trees           int      `mapstructure:"trees"`
	SampleSize      int      `mapstructure:"sample_size"`
	Statistics      []string `mapstructure:"statistics"`
}

// FaultsConfig names the two fault code databases. Either may be empty.
type FaultsConfig struct {
	DatabaseA string `mapstructure:"database_a"`
	DatabaseB string `mapstructure:"database_b"`
}

// StoreConfig points at the SQLite database. Empty disables persistence.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig selects the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is written after every parse run when set.
	Textfile string `mapstructure:"textfile"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when High severity anomalies are found (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every analysis.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending analysis reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `mapstructure:"name"`

	// URL is the webhook endpoint (required).
	URL string `mapstructure:"url"`

	// Token is an optional bearer token. ${VAR} and $VAR are expanded.
	Token string `mapstructure:"token"`

	// Trigger defaults to "on_issues".
	Trigger WebhookTrigger `mapstructure:"trigger"`

	// Timeout defaults to 10s.
	Timeout time.Duration `mapstructure:"timeout"`
}
