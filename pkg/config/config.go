package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads a configuration file, applies HALOG_ environment overrides and
// validates the result. An empty path yields the defaults plus environment.
func Load(_ context.Context, path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and fills webhook defaults.
func Validate(cfg *Config) error {
	if err := validateParser(&cfg.Parser); err != nil {
		return fmt.Errorf("parser: %w", err)
	}

	if err := validateAnalysis(&cfg.Analysis); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateParser(p *ParserConfig) error {
	if p.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be >= 1, got %d", p.ChunkSize)
	}

	switch p.ProgressMode {
	case "lines", "bytes":
	default:
		return fmt.Errorf("invalid progress_mode %q (must be lines or bytes)", p.ProgressMode)
	}

	if p.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", p.Workers)
	}

	return nil
}

func validateAnalysis(a *AnalysisConfig) error {
	if a.ConfidenceLevel <= 0 || a.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence_level must be in (0, 1), got %v", a.ConfidenceLevel)
	}

	if a.BootstrapResamples < 1 {
		return errors.New("bootstrap_resamples must be >= 1")
	}

	if a.TrendMinPoints < 3 {
		return fmt.Errorf("trend_min_points must be >= 3, got %d", a.TrendMinPoints)
	}

	if a.MaxGap < 0 {
		return errors.New("max_gap must not be negative")
	}

	if err := validateAnomaly(&a.Anomaly); err != nil {
		return fmt.Errorf("anomaly: %w", err)
	}

	return nil
}

func validateAnomaly(a *AnomalyConfig) error {
	if a.MinPoints < 2 {
		return fmt.Errorf("min_points must be >= 2, got %d", a.MinPoints)
	}

	if a.Contamination <= 0 || a.Contamination >= 0.5 {
		return fmt.Errorf("contamination must be in (0, 0.5), got %v", a.Contamination)
	}

	if a.ZScoreThreshold <= 0 {
		return errors.New("zscore_threshold must be positive")
	}

	if a.IQRMultiplier <= 0 {
		return errors.New("iqr_multiplier must be positive")
	}

	if a.Trees < 1 || a.SampleSize < 2 {
		return errors.New("trees must be >= 1 and sample_size >= 2")
	}

	if len(a.Statistics) == 0 {
		return errors.New("statistics: at least one statistic is required")
	}

	for i, s := range a.Statistics {
		switch s {
		case "min", "max", "avg":
		default:
			return fmt.Errorf("statistics[%d]: invalid statistic %q (must be min, max, or avg)", i, s)
		}
	}

	return nil
}

func validateLogging(l *LoggingConfig) error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level %q (must be debug, info, warn, or error)", l.Level)
	}

	switch l.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid format %q (must be json or console)", l.Format)
	}

	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	switch wh.Trigger {
	case "":
		wh.Trigger = WebhookTriggerOnIssues
	case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
	default:
		return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands a token given as ${VAR} or $VAR.
func expandEnvVar(s string) string {
	switch {
	case strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}"):
		return os.Getenv(s[2 : len(s)-1])
	case strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${"):
		return os.Getenv(s[1:])
	}
	return s
}
