package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ccollicutt/halog/pkg/parser"
)

// RecordColumns is the column order of exported record tables, matching
// the store's readings table.
var RecordColumns = []string{
	"timestamp", "device_id", "parameter", "statistic", "value", "count",
	"unit", "description", "quality", "raw_parameter_name", "line_number",
}

var groupColumns = []string{
	"parameter", "statistic", "unit", "count", "mean", "std", "min", "max",
	"median", "q25", "q75", "cv", "quality_score", "quality_grade",
}

// CSVFormatter writes records or group statistics as CSV.
type CSVFormatter struct{}

// NewCSVFormatter creates a CSV formatter.
func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

// Name returns the format name.
func (f *CSVFormatter) Name() string {
	return "csv"
}

// Format writes one row of statistics per group.
func (f *CSVFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(groupColumns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, g := range report.Groups {
		d := g.Descriptive
		row := []string{
			g.Parameter,
			string(g.Statistic),
			g.Unit,
			strconv.Itoa(d.Count),
			csvFloat(d.Mean),
			csvFloat(float64(d.Std)),
			csvFloat(d.Min),
			csvFloat(d.Max),
			csvFloat(d.Median),
			csvFloat(d.Q25),
			csvFloat(d.Q75),
			csvFloat(float64(d.CV)),
			csvFloat(g.Quality.Score),
			string(g.Quality.Grade),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatParse writes the merged record table.
func (f *CSVFormatter) FormatParse(ctx context.Context, report *ParseReport, w io.Writer) error {
	return WriteRecords(w, report.Table)
}

// WriteRecords writes table as CSV with RecordColumns.
func WriteRecords(w io.Writer, table *parser.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecordColumns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range table.Records() {
		row := []string{
			r.Timestamp.Format(parser.TimestampLayout),
			r.DeviceID,
			r.Parameter,
			string(r.Statistic),
			csvFloat(r.Value),
			strconv.Itoa(r.Count),
			r.Unit,
			r.Description,
			string(r.Quality),
			r.RawParameterName,
			strconv.Itoa(r.LineNumber),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvFloat keeps full precision; NaN becomes an empty cell.
func csvFloat(v float64) string {
	if v != v {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
