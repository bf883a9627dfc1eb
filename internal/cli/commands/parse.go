package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ccollicutt/halog/pkg/metrics"
	"github.com/ccollicutt/halog/pkg/output"
	"github.com/ccollicutt/halog/pkg/parser"
	"github.com/ccollicutt/halog/pkg/store"
)

// ParseOptions holds command-line options for the parse command.
type ParseOptions struct {
	Output          string
	Store           string
	MetricsTextfile string
	Verbose         bool
	Quiet           bool
	Progress        bool
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <log-file|glob|dir>...",
		Short: "Parse log files into canonical parameter records",
		Long: `Parse machine log files into canonical (timestamp, device, parameter,
statistic, value) records.

Each line is searched for a timestamp, a device serial and one parameter
block ("<name> count=N, max=X, min=Y, avg=Z"). Lines that yield nothing are
counted by reason; a malformed line never aborts the run.

Output formats:
  text - per-file summary table
  json - summary (records included with --verbose)
  csv  - the merged record table

With --db the records are also written to a SQLite store. Re-importing the
same file adds nothing.

Exit codes:
  0 - All files parsed
  1 - Some files failed
  2 - Configuration or runtime error

Example:
  halog parse TDS_1.log
  halog parse --db halog.db 'logs/*.log'
  halog parse -o csv logs/ > readings.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|csv)")
	cmd.Flags().StringVar(&opts.Store, "db", "", "SQLite store to write records to (default store.path)")
	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file (default metrics.textfile)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Include skip reasons and records")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Log progress while parsing")

	return cmd
}

func runParse(cmd *cobra.Command, args []string, opts *ParseOptions) error {
	ctx := commandContext(cmd)

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{Verbose: opts.Verbose, Quiet: opts.Quiet})
	if err != nil {
		return err
	}

	cat, err := loadCatalog(e.cfg)
	if err != nil {
		return err
	}

	files, err := parser.ExpandGlobs(args)
	if err != nil {
		return fmt.Errorf("expanding log files: %w", err)
	}

	results, errs := parseFiles(ctx, e, cat, files, opts.Progress)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("parse interrupted: %w", err)
	}
	report := output.NewParseReport(files, results, errs)

	recorder := metrics.New()
	for _, res := range results {
		if res != nil {
			recorder.ObserveParse(res)
		}
	}

	dbPath := firstNonEmpty(opts.Store, e.cfg.Store.Path)
	if dbPath != "" {
		stored, err := storeResults(ctx, e.logger, dbPath, results)
		if err != nil {
			return err
		}
		report.Stored = stored
	}

	if err := formatter.FormatParse(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if path := firstNonEmpty(opts.MetricsTextfile, e.cfg.Metrics.Textfile); path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			return err
		}
	}

	e.logger.Info("parse complete",
		zap.Int("files", report.Totals.Files),
		zap.Int("failed", report.Totals.Failed),
		zap.Int("records", report.Totals.Records))

	switch {
	case report.Totals.Failed == len(files):
		return errors.New("no log file could be parsed")
	case report.Totals.Failed > 0:
		ExitCode = ExitIssues
	}
	return nil
}

// storeResults writes each successful result under its own run id and
// returns the number of new readings.
func storeResults(ctx context.Context, logger *zap.Logger, path string, results []*parser.Result) (int, error) {
	st, err := store.New(ctx, path)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	stored := 0
	for _, res := range results {
		if res == nil || res.Cancelled {
			continue
		}
		runID := uuid.NewString()
		n, err := st.InsertRecords(ctx, runID, res.Table.Records())
		if err != nil {
			return stored, fmt.Errorf("storing %s: %w", res.Path, err)
		}
		if err := st.InsertFileMetadata(ctx, store.FileMetadata{
			RunID:           runID,
			Filename:        res.Path,
			FileSize:        res.Stats.FileSize,
			RecordsImported: n,
			Stats:           res.Stats,
		}); err != nil {
			return stored, fmt.Errorf("storing metadata for %s: %w", res.Path, err)
		}
		logger.Debug("stored records", zap.String("file", res.Path), zap.String("run_id", runID), zap.Int("inserted", n))
		stored += n
	}
	return stored, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
