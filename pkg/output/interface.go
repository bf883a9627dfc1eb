package output

import (
	"context"
	"fmt"
	"io"
)

// Formatter renders parse summaries and analysis reports in one format.
type Formatter interface {
	// Format renders the analysis report to the given writer.
	Format(ctx context.Context, report *Report, w io.Writer) error

	// FormatParse renders a parse summary to the given writer.
	FormatParse(ctx context.Context, report *ParseReport, w io.Writer) error

	// Name returns the format name (text, json, csv).
	Name() string
}

// FormatOptions controls formatter behavior.
type FormatOptions struct {
	// Verbose enables detailed output including every anomaly and the
	// descriptive statistics of each group.
	Verbose bool

	// Quiet enables minimal summary-only output.
	Quiet bool
}

// Formats lists the supported format names.
var Formats = []string{"text", "json", "csv"}

// NewFormatter returns the formatter for name.
func NewFormatter(name string, opts FormatOptions) (Formatter, error) {
	switch name {
	case "text":
		return NewTextFormatter(opts), nil
	case "json":
		return NewJSONFormatter(opts), nil
	case "csv":
		return NewCSVFormatter(), nil
	default:
		return nil, fmt.Errorf("invalid format %q (must be text, json, or csv)", name)
	}
}
