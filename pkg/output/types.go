// Package output provides formatting for parse summaries and analysis
// reports.
package output

import (
	"time"

	"github.com/ccollicutt/halog/pkg/analyzer"
	"github.com/ccollicutt/halog/pkg/parser"
)

// Report is the complete analysis output.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	Groups    []analyzer.GroupStats   `json:"groups"`
	Anomalies []analyzer.Anomaly      `json:"anomalies"`
	Trends    []analyzer.TrendSummary `json:"trends"`
	Gaps      []analyzer.Gap          `json:"gaps,omitempty"`

	// Metadata provides context about the analysis.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	Parameters     int `json:"parameters"`
	Groups         int `json:"groups"`
	Records        int `json:"records"`
	Anomalies      int `json:"anomalies"`
	HighSeverity   int `json:"high_severity"`
	PoorGroups     int `json:"poor_groups"`
	Gaps           int `json:"gaps"`
	LinesProcessed int `json:"lines_processed"`
}

// Metadata provides context about the analysis run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used, if any.
	ConfigFile string `json:"config_file,omitempty"`

	// Sources lists the log files or store that were analyzed.
	Sources []string `json:"sources"`

	Devices []string `json:"devices"`

	// AnalyzedAt is when the analysis finished.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration"`
}

// NewReport creates a Report from analysis results. stats are the parse
// runs that produced the analysed table, if any.
func NewReport(result *analyzer.AnalysisResult, configFile string, stats ...parser.RunStats) *Report {
	params := make(map[string]bool)
	for _, g := range result.Groups {
		params[g.Parameter] = true
	}

	report := &Report{
		Groups:    result.Groups,
		Anomalies: result.Anomalies,
		Trends:    result.Trends,
		Gaps:      result.Gaps,
		Metadata: Metadata{
			ConfigFile: configFile,
			Sources:    result.Metadata.Sources,
			Devices:    result.Metadata.Devices,
			AnalyzedAt: result.Metadata.EndTime,
			Duration:   result.Metadata.EndTime.Sub(result.Metadata.StartTime),
		},
		Summary: Summary{
			Parameters:   len(params),
			Groups:       len(result.Groups),
			Records:      result.Metadata.Records,
			Anomalies:    len(result.Anomalies),
			HighSeverity: len(result.HighSeverity()),
			PoorGroups:   len(result.PoorGroups()),
			Gaps:         len(result.Gaps),
		},
	}
	for _, s := range stats {
		report.Summary.LinesProcessed += s.LinesProcessed
	}

	return report
}

// HasIssues returns true if any High severity anomaly was detected.
func (r *Report) HasIssues() bool {
	return r.Summary.HighSeverity > 0
}

// ParseReport summarizes one or more parse runs.
type ParseReport struct {
	Files  []FileSummary `json:"files"`
	Totals Totals        `json:"totals"`

	// Table is the merged record table of every file.
	Table *parser.Table `json:"-"`

	// Stored is the number of new rows written to the store, or -1 when no
	// store was used.
	Stored int `json:"stored"`
}

// FileSummary is one file's parse outcome.
type FileSummary struct {
	Path      string          `json:"path"`
	Records   int             `json:"records"`
	Stats     parser.RunStats `json:"stats"`
	Cancelled bool            `json:"cancelled,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Totals aggregates every file.
type Totals struct {
	Files             int                       `json:"files"`
	Failed            int                       `json:"failed"`
	LinesProcessed    int                       `json:"lines_processed"`
	RecordsExtracted  int                       `json:"records_extracted"`
	Records           int                       `json:"records"`
	ErrorsEncountered int                       `json:"errors_encountered"`
	DuplicatesDropped int                       `json:"duplicates_dropped"`
	Skipped           map[parser.SkipReason]int `json:"skipped,omitempty"`
	Parameters        []string                  `json:"parameters"`
	Devices           []string                  `json:"devices"`
	First             time.Time                 `json:"first,omitempty"`
	Last              time.Time                 `json:"last,omitempty"`
}

// NewParseReport builds a ParseReport. errs is indexed like results; a
// failed file has a nil result.
func NewParseReport(paths []string, results []*parser.Result, errs []error) *ParseReport {
	report := &ParseReport{Stored: -1}
	tables := make([]*parser.Table, 0, len(results))

	for i, path := range paths {
		fs := FileSummary{Path: path}
		if errs[i] != nil {
			fs.Error = errs[i].Error()
			report.Totals.Failed++
			report.Files = append(report.Files, fs)
			continue
		}
		res := results[i]
		fs.Records = res.Table.Len()
		fs.Stats = res.Stats
		fs.Cancelled = res.Cancelled
		report.Files = append(report.Files, fs)
		tables = append(tables, res.Table)

		t := &report.Totals
		t.LinesProcessed += res.Stats.LinesProcessed
		t.RecordsExtracted += res.Stats.RecordsExtracted
		t.ErrorsEncountered += res.Stats.ErrorsEncountered
		t.DuplicatesDropped += res.Stats.DuplicatesDropped
		for reason, n := range res.Stats.Skipped {
			if t.Skipped == nil {
				t.Skipped = make(map[parser.SkipReason]int)
			}
			t.Skipped[reason] += n
		}
	}

	report.Table = parser.MergeTables(tables...)
	report.Totals.Files = len(paths)
	report.Totals.Records = report.Table.Len()
	report.Totals.Parameters = report.Table.Parameters()
	report.Totals.Devices = report.Table.Devices()
	report.Totals.First, report.Totals.Last = report.Table.TimeSpan()
	return report
}
