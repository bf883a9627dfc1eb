package output

import (
	"context"
	"encoding/json"
	"io"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the report as JSON.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if f.opts.Quiet {
		// Quiet mode: just summary
		return encoder.Encode(report.Summary)
	}

	return encoder.Encode(report)
}

// FormatParse renders the parse summary as JSON. Records are included
// only in verbose mode.
func (f *JSONFormatter) FormatParse(ctx context.Context, report *ParseReport, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	switch {
	case f.opts.Quiet:
		return encoder.Encode(report.Totals)
	case f.opts.Verbose:
		return encoder.Encode(struct {
			*ParseReport
			Records any `json:"records"`
		}{report, report.Table.Records()})
	}
	return encoder.Encode(report)
}
