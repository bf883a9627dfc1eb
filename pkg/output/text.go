package output

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/ccollicutt/halog/pkg/analyzer"
	"github.com/ccollicutt/halog/pkg/parser"
)

// TextFormatter formats reports as human-readable text with tables.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	fmt.Fprintf(w, "halog: %d parameters, %d groups, %d anomalies (%d high severity)\n",
		report.Summary.Parameters,
		report.Summary.Groups,
		report.Summary.Anomalies,
		report.Summary.HighSeverity)
	return nil
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, "=== halog Analysis Report ===")
	fmt.Fprintln(w)

	if len(report.Groups) == 0 {
		fmt.Fprintln(w, "No parameter records to analyse")
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "[STATISTICS]")
		f.groupTable(report.Groups, w)
		fmt.Fprintln(w)
		f.qualityIssues(report.Groups, w)
	}

	if len(report.Trends) > 0 {
		fmt.Fprintln(w, "[TRENDS]")
		trendTable(report.Trends, w)
		fmt.Fprintln(w)
	}

	f.anomalies(report.Anomalies, w)

	if len(report.Gaps) > 0 {
		fmt.Fprintln(w, "[GAPS]")
		for _, g := range report.Gaps {
			fmt.Fprintf(w, "  - %s %s: %s\n", g.DeviceID, g.Parameter, g.Description)
			if f.opts.Verbose {
				fmt.Fprintf(w, "    From %s to %s (line %d)\n",
					g.Start.Format(parser.TimestampLayout), g.End.Format(parser.TimestampLayout), g.StartLine)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d parameters, %d groups, %d records, %d anomalies (%d high severity), %d poor groups\n",
		report.Summary.Parameters,
		report.Summary.Groups,
		report.Summary.Records,
		report.Summary.Anomalies,
		report.Summary.HighSeverity,
		report.Summary.PoorGroups)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Sources: %s\n", strings.Join(report.Metadata.Sources, ", "))
		fmt.Fprintf(w, "Devices: %s\n", strings.Join(report.Metadata.Devices, ", "))
		if report.Summary.LinesProcessed > 0 {
			fmt.Fprintf(w, "Lines processed: %d\n", report.Summary.LinesProcessed)
		}
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func (f *TextFormatter) groupTable(groups []analyzer.GroupStats, w io.Writer) {
	header := []string{"Parameter", "Stat", "Unit", "N", "Mean", "Std", "Min", "Max", "CV", "Quality"}
	if f.opts.Verbose {
		header = append(header, "Median", "IQR", "Skew", "Normal", "Mean CI")
	}
	table := newTable(w, header)
	for _, g := range groups {
		d := g.Descriptive
		row := []string{
			g.Parameter,
			string(g.Statistic),
			g.Unit,
			strconv.Itoa(d.Count),
			num(d.Mean),
			num(float64(d.Std)),
			num(d.Min),
			num(d.Max),
			num(float64(d.CV)),
			fmt.Sprintf("%.0f %s", g.Quality.Score, g.Quality.Grade),
		}
		if f.opts.Verbose {
			normal := "-"
			if d.IsNormal != nil {
				normal = strconv.FormatBool(*d.IsNormal)
			}
			ci := "-"
			if iv := g.Intervals.Mean; iv != nil {
				ci = fmt.Sprintf("[%s, %s]", num(iv.Lower), num(iv.Upper))
			}
			row = append(row, num(d.Median), num(d.IQR), num(float64(d.Skewness)), normal, ci)
		}
		table.Append(row)
	}
	table.Render()
}

func (f *TextFormatter) qualityIssues(groups []analyzer.GroupStats, w io.Writer) {
	printed := false
	for _, g := range groups {
		if len(g.Quality.Issues) == 0 || (!f.opts.Verbose && g.Quality.Grade != analyzer.GradePoor) {
			continue
		}
		if !printed {
			fmt.Fprintln(w, "[QUALITY]")
			printed = true
		}
		fmt.Fprintf(w, "  %s/%s (%s):\n", g.Parameter, g.Statistic, g.Quality.Grade)
		for _, issue := range g.Quality.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
	if printed {
		fmt.Fprintln(w)
	}
}

func trendTable(trends []analyzer.TrendSummary, w io.Writer) {
	table := newTable(w, []string{"Parameter", "Points", "Hours", "Slope", "R2", "P", "Direction", "Strength"})
	for _, t := range trends {
		table.Append([]string{
			t.Parameter,
			strconv.Itoa(t.DataPoints),
			fmt.Sprintf("%.2f", t.TimeSpanHours),
			num(t.Trend.Slope),
			num(t.Trend.R2),
			num(t.Trend.PValue),
			string(t.Trend.Direction),
			string(t.Trend.Strength),
		})
	}
	table.Render()
}

func (f *TextFormatter) anomalies(anomalies []analyzer.Anomaly, w io.Writer) {
	shown := anomalies
	title := "[ANOMALIES]"
	if !f.opts.Verbose {
		shown = nil
		for _, a := range anomalies {
			if a.Severity == analyzer.SeverityHigh {
				shown = append(shown, a)
			}
		}
		title = "[HIGH SEVERITY ANOMALIES]"
	}

	fmt.Fprintln(w, title)
	if len(shown) == 0 {
		fmt.Fprintln(w, "  No anomalies detected")
		fmt.Fprintln(w)
		return
	}

	table := newTable(w, []string{"Time", "Device", "Parameter", "Stat", "Value", "Methods", "Severity"})
	for _, a := range shown {
		methods := make([]string, len(a.Methods))
		for i, m := range a.Methods {
			methods[i] = string(m)
		}
		table.Append([]string{
			a.Timestamp.Format(parser.TimestampLayout),
			a.DeviceID,
			a.Parameter,
			string(a.Statistic),
			num(a.Value),
			strings.Join(methods, "+"),
			string(a.Severity),
		})
	}
	table.Render()
	fmt.Fprintln(w)
}

// FormatParse renders a parse summary as text.
func (f *TextFormatter) FormatParse(ctx context.Context, report *ParseReport, w io.Writer) error {
	t := report.Totals
	if f.opts.Quiet {
		fmt.Fprintf(w, "halog: %d files, %d records, %d lines, %d errors\n",
			t.Files, t.Records, t.LinesProcessed, t.ErrorsEncountered)
		return nil
	}

	fmt.Fprintln(w, "=== halog Parse Summary ===")
	fmt.Fprintln(w)

	table := newTable(w, []string{"File", "Lines", "Extracted", "Records", "Errors", "Duplicates", "Time", "Status"})
	for _, fs := range report.Files {
		status := "ok"
		switch {
		case fs.Error != "":
			status = "error: " + fs.Error
		case fs.Cancelled:
			status = "cancelled"
		}
		table.Append([]string{
			fs.Path,
			strconv.Itoa(fs.Stats.LinesProcessed),
			strconv.Itoa(fs.Stats.RecordsExtracted),
			strconv.Itoa(fs.Records),
			strconv.Itoa(fs.Stats.ErrorsEncountered),
			strconv.Itoa(fs.Stats.DuplicatesDropped),
			fs.Stats.ProcessingTime.Round(1e6).String(),
			status,
		})
	}
	table.Render()
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Imported %d records, %d lines skipped as errors\n", t.Records, t.ErrorsEncountered)
	if report.Stored >= 0 {
		fmt.Fprintf(w, "Stored: %d new readings\n", report.Stored)
	}
	if len(t.Parameters) > 0 {
		fmt.Fprintf(w, "Parameters: %s\n", strings.Join(t.Parameters, ", "))
		fmt.Fprintf(w, "Devices: %s\n", strings.Join(t.Devices, ", "))
		fmt.Fprintf(w, "Time range: %s to %s\n",
			t.First.Format(parser.TimestampLayout), t.Last.Format(parser.TimestampLayout))
	}

	if f.opts.Verbose && len(t.Skipped) > 0 {
		reasons := make([]string, 0, len(t.Skipped))
		for r := range t.Skipped {
			reasons = append(reasons, string(r))
		}
		sort.Strings(reasons)
		fmt.Fprintln(w, "Skipped lines:")
		for _, r := range reasons {
			fmt.Fprintf(w, "  %s: %d\n", r, t.Skipped[parser.SkipReason(r)])
		}
	}
	return nil
}

// num formats a value for tables; NaN prints as "-".
func num(v float64) string {
	switch {
	case math.IsNaN(v):
		return "-"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', 5, 64)
}
