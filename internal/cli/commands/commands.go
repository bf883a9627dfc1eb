// Package commands implements the halog subcommands.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ccollicutt/halog/pkg/analyzer"
	"github.com/ccollicutt/halog/pkg/catalog"
	"github.com/ccollicutt/halog/pkg/config"
	"github.com/ccollicutt/halog/pkg/parser"
)

// Exit codes.
const (
	ExitOK     = 0 // success, nothing to report
	ExitIssues = 1 // High severity anomalies, failed files or failed checks
	ExitError  = 2 // configuration or runtime error
)

// ExitCode is set by commands to indicate the result
var ExitCode = ExitOK

// AddGlobalFlags registers the flags every subcommand reads.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file (YAML); defaults apply when omitted")
	cmd.PersistentFlags().String("log-level", "", "Override logging.level (debug|info|warn|error)")
}

// env is what a command needs after startup.
type env struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
}

// setup loads the configuration named by --config and builds the logger.
func setup(cmd *cobra.Command) (*env, error) {
	path := stringFlag(cmd, "config")
	cfg, err := config.Load(commandContext(cmd), path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if lvl := stringFlag(cmd, "log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	logger, err := config.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return &env{cfg: cfg, configPath: path, logger: logger}, nil
}

func (e *env) close() {
	_ = e.logger.Sync()
}

// stringFlag reads a flag from cmd or any parent, "" when undefined.
func stringFlag(cmd *cobra.Command, name string) string {
	f := cmd.Flag(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadCatalog returns the configured override catalog or the embedded one.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path != "" {
		cat, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("loading catalog: %w", err)
		}
		return cat, nil
	}
	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("loading embedded catalog: %w", err)
	}
	return cat, nil
}

// parseFiles parses paths with up to cfg.Parser.Workers files in flight, one
// FileParser per file. A failing file does not stop the others; errs is
// indexed like paths.
func parseFiles(ctx context.Context, e *env, cat *catalog.Catalog, paths []string, progress bool) ([]*parser.Result, []error) {
	results := make([]*parser.Result, len(paths))
	errs := make([]error, len(paths))

	workers := e.cfg.Parser.Workers
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			opts := []parser.Option{
				parser.WithChunkSize(e.cfg.Parser.ChunkSize),
				parser.WithProgressMode(parser.ProgressMode(e.cfg.Parser.ProgressMode)),
				parser.WithLogger(e.logger),
			}
			if progress {
				log := e.logger.With(zap.String("file", path))
				opts = append(opts, parser.WithProgress(func(percent int, message string) {
					log.Info("progress", zap.Int("percent", percent), zap.String("message", message))
				}))
			}
			p, err := parser.New(cat, opts...)
			if err != nil {
				errs[i] = err
				return nil
			}
			res, err := p.Parse(ctx, path)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results, errs
}

// analyzerOptions maps the analysis section onto analyzer options.
func analyzerOptions(e *env, sources []string) ([]analyzer.Option, error) {
	a := e.cfg.Analysis
	anomaly := analyzer.AnomalyConfig{
		MinPoints:       a.Anomaly.MinPoints,
		Contamination:   a.Anomaly.Contamination,
		ZScoreThreshold: a.Anomaly.ZScoreThreshold,
		IQRMultiplier:   a.Anomaly.IQRMultiplier,
		Trees:           a.Anomaly.Trees,
		SampleSize:      a.Anomaly.SampleSize,
	}
	for _, s := range a.Anomaly.Statistics {
		stat, ok := parser.ParseStatistic(s)
		if !ok {
			return nil, fmt.Errorf("analysis.anomaly.statistics: unknown statistic %q", s)
		}
		anomaly.Statistics = append(anomaly.Statistics, stat)
	}

	return []analyzer.Option{
		analyzer.WithConfidenceLevel(a.ConfidenceLevel),
		analyzer.WithBootstrapResamples(a.BootstrapResamples),
		analyzer.WithSeed(a.Seed),
		analyzer.WithTrendMinPoints(a.TrendMinPoints),
		analyzer.WithMaxGap(a.MaxGap),
		analyzer.WithAnomalyConfig(anomaly),
		analyzer.WithSources(sources),
		analyzer.WithLogger(e.logger),
	}, nil
}

// timeLayouts are accepted by --since and --until.
var timeLayouts = []string{
	parser.TimestampLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// parseTime reads a --since/--until value as UTC. Empty yields the zero time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use \"YYYY-MM-DD HH:MM:SS\", RFC 3339 or YYYY-MM-DD)", s)
}
