package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/halog/pkg/analyzer"
	"github.com/ccollicutt/halog/pkg/catalog"
	"github.com/ccollicutt/halog/pkg/config"
	"github.com/ccollicutt/halog/pkg/metrics"
	"github.com/ccollicutt/halog/pkg/output"
	"github.com/ccollicutt/halog/pkg/parser"
	"github.com/ccollicutt/halog/pkg/store"
	"github.com/ccollicutt/halog/pkg/webhook"
)

// AnalyzeOptions holds command-line options for the analyze command.
type AnalyzeOptions struct {
	Output          string
	Store           string
	Device          string
	Parameter       string
	Since           string
	Until           string
	MetricsTextfile string
	Verbose         bool
	Quiet           bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [log-file|glob|dir]...",
		Short: "Compute statistics, trends and anomalies",
		Long: `Analyze parameter readings from log files, or from the SQLite store when
no files are given.

For every (parameter, statistic) group:
  - Descriptive statistics and a data-quality score
  - Confidence intervals for the mean and median
  - Linear and Mann-Kendall trend tests
  - Anomalies flagged by isolation forest, z-score and IQR detectors

Reading gaps are reported when analysis.max_gap is set.

Exit codes:
  0 - No High severity anomalies
  1 - High severity anomalies detected
  2 - Configuration or runtime error

Example:
  halog analyze TDS_1.log
  halog analyze --db halog.db --parameter magnetronFlow --since 2024-08-01
  halog analyze -o json --webhook-url https://example.com/hook logs/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|csv)")
	cmd.Flags().StringVar(&opts.Store, "db", "", "SQLite store to read when no files are given (default store.path)")
	cmd.Flags().StringVar(&opts.Device, "device", "", "Only analyze this device (e.g. SN#1)")
	cmd.Flags().StringVar(&opts.Parameter, "parameter", "", "Only analyze this canonical parameter")
	cmd.Flags().StringVar(&opts.Since, "since", "", "Only readings at or after this time")
	cmd.Flags().StringVar(&opts.Until, "until", "", "Only readings before this time")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file (default metrics.textfile)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show all anomalies and detailed statistics")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	ctx := commandContext(cmd)

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	formatter, err := createFormatter(opts)
	if err != nil {
		return err
	}

	cat, err := loadCatalog(e.cfg)
	if err != nil {
		return err
	}

	filter, err := storeFilter(opts)
	if err != nil {
		return err
	}

	var (
		table   *parser.Table
		sources []string
		stats   []parser.RunStats
	)
	recorder := metrics.New()

	if len(args) > 0 {
		files, err := parser.ExpandGlobs(args)
		if err != nil {
			return fmt.Errorf("expanding log files: %w", err)
		}
		table, stats, err = parseForAnalysis(ctx, e, cat, files, recorder)
		if err != nil {
			return err
		}
		table = filterTable(table, filter)
		sources = files
	} else {
		dbPath := firstNonEmpty(opts.Store, e.cfg.Store.Path)
		if dbPath == "" {
			return errors.New("no log files given and no store configured (use --db or store.path)")
		}
		st, err := store.New(ctx, dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		if table, err = st.LoadRecords(ctx, filter); err != nil {
			return fmt.Errorf("loading readings: %w", err)
		}
		sources = []string{dbPath}
	}

	aopts, err := analyzerOptions(e, sources)
	if err != nil {
		return err
	}
	result, err := analyzer.New(cat, aopts...).Analyze(ctx, table)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	recorder.ObserveAnalysis(result)

	report := output.NewReport(result, e.configPath, stats...)

	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if path := firstNonEmpty(opts.MetricsTextfile, e.cfg.Metrics.Textfile); path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			return err
		}
	}

	// Send webhooks (errors logged but don't fail analysis)
	sendWebhooks(ctx, e.logger, e.cfg, opts, report)

	// Set exit code based on results
	if report.HasIssues() {
		ExitCode = ExitIssues
	}

	return nil
}

// parseForAnalysis parses files and merges their tables. Failed files are
// logged and left out; it is an error only when none parsed.
func parseForAnalysis(ctx context.Context, e *env, cat *catalog.Catalog, files []string, recorder *metrics.Recorder) (*parser.Table, []parser.RunStats, error) {
	results, errs := parseFiles(ctx, e, cat, files, false)
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("parse interrupted: %w", err)
	}

	var (
		tables []*parser.Table
		stats  []parser.RunStats
	)
	for i, res := range results {
		if errs[i] != nil {
			e.logger.Warn("skipping file", zap.String("file", files[i]), zap.Error(errs[i]))
			continue
		}
		recorder.ObserveParse(res)
		tables = append(tables, res.Table)
		stats = append(stats, res.Stats)
	}
	if len(tables) == 0 {
		return nil, nil, errors.New("no log file could be parsed")
	}
	return parser.MergeTables(tables...), stats, nil
}

// storeFilter turns the selection flags into a store filter. The same
// filter is applied to parsed files.
func storeFilter(opts *AnalyzeOptions) (store.Filter, error) {
	since, err := parseTime(opts.Since)
	if err != nil {
		return store.Filter{}, fmt.Errorf("--since: %w", err)
	}
	until, err := parseTime(opts.Until)
	if err != nil {
		return store.Filter{}, fmt.Errorf("--until: %w", err)
	}
	if !since.IsZero() && !until.IsZero() && !until.After(since) {
		return store.Filter{}, fmt.Errorf("--until (%s) must be after --since (%s)", opts.Until, opts.Since)
	}
	return store.Filter{
		DeviceID:  opts.Device,
		Parameter: opts.Parameter,
		Since:     since,
		Until:     until,
	}, nil
}

func filterTable(table *parser.Table, f store.Filter) *parser.Table {
	table = table.Filter(f.DeviceID, f.Parameter)
	if f.Since.IsZero() && f.Until.IsZero() {
		return table
	}
	var kept []parser.Record
	for _, r := range table.Records() {
		if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !r.Timestamp.Before(f.Until) {
			continue
		}
		kept = append(kept, r)
	}
	return parser.NewTable(kept)
}

func createFormatter(opts *AnalyzeOptions) (output.Formatter, error) {
	formatOpts := output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	}
	return output.NewFormatter(opts.Output, formatOpts)
}

// sendWebhooks sends the report to all configured webhooks.
func sendWebhooks(ctx context.Context, logger *zap.Logger, cfg *config.Config, opts *AnalyzeOptions, report *output.Report) []*webhook.Response {
	webhooks := collectWebhooks(cfg, opts)
	if len(webhooks) == 0 {
		return nil
	}

	client := webhook.NewClient(
		webhook.WithLogger(logger),
		webhook.WithUserAgent("halog/"+Version),
	)
	return client.Notify(ctx, webhooks, report)
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AnalyzeOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)

	// Add config file webhooks
	webhooks = append(webhooks, cfg.Webhooks...)

	// Add CLI webhook if specified
	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
