package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration.
const (
	DefaultChunkSize          = 1000
	DefaultProgressMode       = "lines"
	DefaultWorkers            = 1
	DefaultConfidenceLevel    = 0.95
	DefaultBootstrapResamples = 1000
	DefaultSeed               = 42
	DefaultTrendMinPoints     = 5
	DefaultMinPoints          = 10
	DefaultContamination      = 0.1
	DefaultZScoreThreshold    = 3.0
	DefaultIQRMultiplier      = 1.5
	DefaultTrees              = 100
	DefaultSampleSize         = 256
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "console"
	DefaultWebhookTimeout     = 10 * time.Second
)

// EnvPrefix prefixes environment overrides: HALOG_PARSER_CHUNK_SIZE=500.
const EnvPrefix = "HALOG"

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Parser: ParserConfig{
			ChunkSize:    DefaultChunkSize,
			ProgressMode: DefaultProgressMode,
			Workers:      DefaultWorkers,
		},
		Analysis: AnalysisConfig{
			ConfidenceLevel:    DefaultConfidenceLevel,
			BootstrapResamples: DefaultBootstrapResamples,
			Seed:               DefaultSeed,
			TrendMinPoints:     DefaultTrendMinPoints,
			Anomaly: AnomalyConfig{
				MinPoints:       DefaultMinPoints,
				Contamination:   DefaultContamination,
				ZScoreThreshold: DefaultZScoreThreshold,
				IQRMultiplier:   DefaultIQRMultiplier,
				Trees:           DefaultTrees,
				SampleSize:      DefaultSampleSize,
				Statistics:      []string{"avg"},
			},
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// setDefaults registers every key with viper. AutomaticEnv only resolves
// keys viper already knows about, so each field needs a default here.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("parser.chunk_size", d.Parser.ChunkSize)
	v.SetDefault("parser.progress_mode", d.Parser.ProgressMode)
	v.SetDefault("parser.workers", d.Parser.Workers)
	v.SetDefault("catalog.path", "")

	v.SetDefault("analysis.confidence_level", d.Analysis.ConfidenceLevel)
	v.SetDefault("analysis.bootstrap_resamples", d.Analysis.BootstrapResamples)
	v.SetDefault("analysis.seed", d.Analysis.Seed)
	v.SetDefault("analysis.trend_min_points", d.Analysis.TrendMinPoints)
	v.SetDefault("analysis.max_gap", "0s")
	v.SetDefault("analysis.anomaly.min_points", d.Analysis.Anomaly.MinPoints)
	v.SetDefault("analysis.anomaly.contamination", d.Analysis.Anomaly.Contamination)
	v.SetDefault("analysis.anomaly.zscore_threshold", d.Analysis.Anomaly.ZScoreThreshold)
	v.SetDefault("analysis.anomaly.iqr_multiplier", d.Analysis.Anomaly.IQRMultiplier)
	v.SetDefault("analysis.anomaly.trees", d.Analysis.Anomaly.Trees)
	v.SetDefault("analysis.anomaly.sample_size", d.Analysis.Anomaly.SampleSize)
	v.SetDefault("analysis.anomaly.statistics", d.Analysis.Anomaly.Statistics)

	v.SetDefault("faults.database_a", "")
	v.SetDefault("faults.database_b", "")
	v.SetDefault("store.path", "")
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("metrics.textfile", "")
}
