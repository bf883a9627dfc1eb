package commands

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/halog/pkg/detector"
	"github.com/ccollicutt/halog/pkg/parser"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>",
		Short: "Probe how much of a log file halog can read",
		Long: `Sample lines from a log file and report what the parser recognizes.

Reports:
  - Timestamp formats found (YYYY-MM-DD HH:MM:SS and MM/DD/YYYY HH:MM:SS)
  - Unsupported timestamp formats, when lines carry no readable timestamp
  - Device serials and canonical parameters with their raw spellings
  - Why the remaining lines yield no records

Optionally generates a starter config file with --write-config.

Example:
  halog detect TDS_1.log
  halog detect --sample 500 TDS_1.log
  halog detect -w halog.yaml TDS_1.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", detector.DefaultSampleSize, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show every device and skip reason, not just a summary")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]
	ctx := commandContext(cmd)

	// Check file exists
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s", logFile)
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	cat, err := loadCatalog(e.cfg)
	if err != nil {
		return err
	}

	d, err := detector.New(cat, detector.WithSampleSize(opts.SampleSize))
	if err != nil {
		return err
	}

	result, err := d.DetectFromFile(ctx, logFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	w := cmd.OutOrStdout()

	// Write config file if requested
	if opts.WriteConfig != "" {
		if err := writeStarterConfig(w, result, logFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(w, result, logFile)
	default:
		return outputDetectText(w, result, logFile, opts)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Log Format Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintf(w, "Lines with timestamps: %d\n", result.TimestampLines)
	fmt.Fprintf(w, "Lines with parameter blocks: %d\n", result.PayloadLines)
	fmt.Fprintf(w, "Lines producing records: %d (%.1f%%)\n", result.RecordLines, result.RecordRate()*100)
	fmt.Fprintln(w)

	if best := result.BestFormat(); best != nil {
		fmt.Fprintln(w, "Timestamp formats:")
		for _, f := range result.Formats {
			fmt.Fprintf(w, "  - %s: %.1f%% (%d lines)\n", f.Name, f.Confidence*100, f.MatchCount)
		}
		fmt.Fprintf(w, "Sample match:\n  %s\n", best.SampleLine)
		fmt.Fprintf(w, "Parsed as: %s\n", best.Timestamp)
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "No supported timestamp format detected.")
		fmt.Fprintln(w)
	}

	if result.AmbiguityNote != "" {
		fmt.Fprintf(w, "Note: %s\n", result.AmbiguityNote)
		fmt.Fprintln(w)
	}

	if len(result.Foreign) > 0 {
		fmt.Fprintln(w, "Unsupported timestamp formats:")
		for _, f := range result.Foreign {
			fmt.Fprintf(w, "  - %s (%d lines), e.g. %s\n", f.Format.Name, f.MatchCount, f.Format.Example)
			if opts.ShowAll {
				fmt.Fprintf(w, "    %s\n", f.SampleLine)
			}
		}
		fmt.Fprintln(w, "Tip: convert these timestamps to YYYY-MM-DD HH:MM:SS before parsing.")
		fmt.Fprintln(w)
	}

	if len(result.Devices) > 0 {
		devices := result.Devices
		if !opts.ShowAll && len(devices) > 5 {
			devices = devices[:5]
		}
		names := make([]string, len(devices))
		for i, d := range devices {
			names[i] = fmt.Sprintf("%s (%d)", d.DeviceID, d.Lines)
		}
		fmt.Fprintf(w, "Devices: %s\n", strings.Join(names, ", "))
		if len(devices) < len(result.Devices) {
			fmt.Fprintf(w, "  ... and %d more (use --all)\n", len(result.Devices)-len(devices))
		}
	}

	if len(result.Parameters) > 0 {
		fmt.Fprintln(w, "Parameters:")
		for _, p := range result.Parameters {
			fmt.Fprintf(w, "  - %s (%d lines) from %s\n", p.Parameter, p.Lines, strings.Join(quoteAll(p.RawNames), ", "))
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "No known parameters found.")
		fmt.Fprintln(w, "Tip: run 'halog catalog list' to see the recognized spellings.")
		fmt.Fprintln(w)
	}

	if len(result.Skipped) > 0 {
		reasons := skipReasons(result.Skipped)
		fmt.Fprintln(w, "Skipped lines:")
		for _, r := range reasons {
			if !opts.ShowAll && !r.IsError() && r != parser.SkipUnresolvedParameter {
				continue
			}
			fmt.Fprintf(w, "  %s: %d\n", r, result.Skipped[r])
		}
		if !opts.ShowAll {
			fmt.Fprintf(w, "  (%d lines without timestamp or parameter block, use --all)\n",
				result.Skipped[parser.SkipNoTimestamp]+result.Skipped[parser.SkipNoPayload])
		}
		fmt.Fprintln(w)
	}

	return nil
}

func skipReasons(m map[parser.SkipReason]int) []parser.SkipReason {
	out := make([]parser.SkipReason, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

// JSONFormat represents a timestamp format in JSON output.
type JSONFormat struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	SampleLine string  `json:"sample_line"`
	Timestamp  string  `json:"timestamp"`
}

// JSONForeign represents an unsupported timestamp format in JSON output.
type JSONForeign struct {
	Name       string `json:"name"`
	Example    string `json:"example"`
	MatchCount int    `json:"match_count"`
	SampleLine string `json:"sample_line"`
}

// JSONParameter represents a recognized parameter in JSON output.
type JSONParameter struct {
	Parameter string   `json:"parameter"`
	RawNames  []string `json:"raw_names"`
	Lines     int      `json:"lines"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File           string                    `json:"file"`
	SampledLines   int                       `json:"sampled_lines"`
	TimestampLines int                       `json:"timestamp_lines"`
	PayloadLines   int                       `json:"payload_lines"`
	RecordLines    int                       `json:"record_lines"`
	Formats        []JSONFormat              `json:"formats"`
	Foreign        []JSONForeign             `json:"foreign_formats,omitempty"`
	Devices        map[string]int            `json:"devices"`
	Parameters     []JSONParameter           `json:"parameters"`
	Skipped        map[parser.SkipReason]int `json:"skipped"`
	AmbiguityNote  string                    `json:"ambiguity_note,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string) error {
	out := JSONOutput{
		File:           logFile,
		SampledLines:   result.SampledLines,
		TimestampLines: result.TimestampLines,
		PayloadLines:   result.PayloadLines,
		RecordLines:    result.RecordLines,
		Formats:        make([]JSONFormat, 0, len(result.Formats)),
		Devices:        make(map[string]int, len(result.Devices)),
		Parameters:     make([]JSONParameter, 0, len(result.Parameters)),
		Skipped:        result.Skipped,
		AmbiguityNote:  result.AmbiguityNote,
	}
	for _, f := range result.Formats {
		out.Formats = append(out.Formats, JSONFormat{
			Name:       f.Name,
			Confidence: f.Confidence,
			MatchCount: f.MatchCount,
			SampleLine: f.SampleLine,
			Timestamp:  f.Timestamp,
		})
	}
	for _, f := range result.Foreign {
		out.Foreign = append(out.Foreign, JSONForeign{
			Name:       f.Format.Name,
			Example:    f.Format.Example,
			MatchCount: f.MatchCount,
			SampleLine: f.SampleLine,
		})
	}
	for _, d := range result.Devices {
		out.Devices[d.DeviceID] = d.Lines
	}
	for _, p := range result.Parameters {
		out.Parameters = append(out.Parameters, JSONParameter{
			Parameter: p.Parameter,
			RawNames:  p.RawNames,
			Lines:     p.Lines,
		})
	}
	return encodeJSON(w, out)
}

// writeStarterConfig generates a starter config file for the probed log.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, logFile, configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if !result.HasRecords() {
		return fmt.Errorf("cannot generate config: no parameter records found in %s", logFile)
	}

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(generateStarterConfig(logFile, result)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config with the default settings
// and the detected parameters noted for reference.
func generateStarterConfig(logFile string, result *detector.DetectionResult) string {
	params := make([]string, len(result.Parameters))
	for i, p := range result.Parameters {
		params[i] = "#   - " + p.Parameter
	}
	devices := make([]string, len(result.Devices))
	for i, d := range result.Devices {
		devices[i] = d.DeviceID
	}

	return fmt.Sprintf(`# halog configuration
# Generated by: halog detect %s
# Records from %.0f%% of sampled lines
# Devices: %s
# Parameters found:
%s

parser:
  chunk_size: 1000
  progress_mode: lines
  workers: 1

# catalog:
#   path: my-catalog.yaml

analysis:
  confidence_level: 0.95
  bootstrap_resamples: 1000
  seed: 42
  trend_min_points: 5
  # Report gaps between readings longer than this (0 disables)
  max_gap: 0s
  anomaly:
    min_points: 10
    contamination: 0.1
    zscore_threshold: 3
    iqr_multiplier: 1.5
    statistics:
      - avg

# faults:
#   database_a: faults_a.txt
#   database_b: faults_b.txt

store:
  path: halog.db

logging:
  level: info
  format: console

# webhooks:
#   - name: ops
#     url: https://example.com/hooks/halog
#     token: ${HALOG_WEBHOOK_TOKEN}
#     trigger: on_issues
`, logFile, result.RecordRate()*100, strings.Join(devices, ", "), strings.Join(params, "\n"))
}
