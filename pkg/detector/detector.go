// Package detector probes a sample of a log file and reports how much of it
// the parser can use: which timestamp formats appear, which devices and
// parameters are recognized, and why the remaining lines are skipped.
package detector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ccollicutt/halog/pkg/parser"
)

// DefaultSampleSize is the number of lines sampled from a file.
const DefaultSampleSize = 100

// DetectionResult holds the result of probing a log sample.
type DetectionResult struct {
	SampledLines   int                       // Non-empty lines sampled
	TimestampLines int                       // Lines with a recognized timestamp
	PayloadLines   int                       // Lines with a parameter block
	RecordLines    int                       // Lines that produced records
	Formats        []FormatMatch             // Recognized timestamp formats, most frequent first
	Foreign        []ForeignMatch            // Unsupported timestamp formats seen
	Devices        []DeviceCount             // Device ids, most frequent first
	Parameters     []ParameterMatch          // Resolved parameters, sorted by id
	Skipped        map[parser.SkipReason]int // Skip counts by reason
	AmbiguityNote  string                    // Warning about date ordering if applicable
}

// FormatMatch is a recognized timestamp format with its share of the sample.
type FormatMatch struct {
	Name       string
	Confidence float64 // 0.0 to 1.0 (share of sampled lines)
	MatchCount int
	SampleLine string
	Timestamp  string // Canonical timestamp of the sample line
}

// ForeignMatch is an unsupported timestamp format found in the sample.
type ForeignMatch struct {
	Format     *ForeignFormat
	MatchCount int
	SampleLine string
}

// DeviceCount is the number of timestamped lines naming a device.
type DeviceCount struct {
	DeviceID string
	Lines    int
}

// ParameterMatch is a canonical parameter and the spellings that produced it.
type ParameterMatch struct {
	Parameter string
	RawNames  []string
	Lines     int
}

// Detector probes log samples against the parser's extraction rules.
type Detector struct {
	extractor  *parser.Extractor
	timestamps *parser.TimestampExtractor
	builder    *parser.Builder
	foreign    []*ForeignFormat
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// New creates a Detector over the parameter catalog r.
func New(r parser.Resolver, opts ...Option) (*Detector, error) {
	ex, err := parser.NewExtractor(r)
	if err != nil {
		return nil, fmt.Errorf("building extractor: %w", err)
	}
	d := &Detector{
		extractor:  ex,
		timestamps: parser.NewTimestampExtractor(),
		builder:    parser.NewBuilder(r),
		foreign:    ForeignFormats(),
		sampleSize: DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// DetectFromFile probes the head of a log file.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	lines, err := d.sampleFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines), nil
}

// DetectFromLines probes the given lines. Blank lines are ignored.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{Skipped: make(map[parser.SkipReason]int)}

	formats := make(map[string]*FormatMatch)
	foreign := make(map[string]*ForeignMatch)
	devices := make(map[string]int)
	params := make(map[string]*ParameterMatch)

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		result.SampledLines++

		x := d.extractor.Extract(line)
		if x == nil {
			result.Skipped[parser.SkipNoTimestamp]++
			d.matchForeign(line, foreign)
			continue
		}
		result.TimestampLines++
		devices[x.DeviceID]++

		if ts, name, ok := d.timestamps.Extract(line); ok {
			fm := formats[name]
			if fm == nil {
				fm = &FormatMatch{Name: name, SampleLine: line, Timestamp: ts}
				formats[name] = fm
			}
			fm.MatchCount++
		}

		if x.Payload != nil {
			result.PayloadLines++
		}
		out := d.builder.Build(x, i+1)
		if out.Skipped() {
			result.Skipped[out.Skip]++
			continue
		}
		result.RecordLines++

		id := out.Records[0].Parameter
		pm := params[id]
		if pm == nil {
			pm = &ParameterMatch{Parameter: id}
			params[id] = pm
		}
		pm.Lines++
		if raw := x.Payload.RawName; !contains(pm.RawNames, raw) {
			pm.RawNames = append(pm.RawNames, raw)
		}
	}

	for _, fm := range formats {
		fm.Confidence = float64(fm.MatchCount) / float64(result.SampledLines)
		result.Formats = append(result.Formats, *fm)
	}
	sort.Slice(result.Formats, func(i, j int) bool {
		if result.Formats[i].MatchCount != result.Formats[j].MatchCount {
			return result.Formats[i].MatchCount > result.Formats[j].MatchCount
		}
		return result.Formats[i].Name < result.Formats[j].Name
	})

	for _, f := range d.foreign {
		if m, ok := foreign[f.Name]; ok {
			result.Foreign = append(result.Foreign, *m)
		}
	}
	sort.SliceStable(result.Foreign, func(i, j int) bool {
		return result.Foreign[i].MatchCount > result.Foreign[j].MatchCount
	})

	for id, n := range devices {
		result.Devices = append(result.Devices, DeviceCount{DeviceID: id, Lines: n})
	}
	sort.Slice(result.Devices, func(i, j int) bool {
		if result.Devices[i].Lines != result.Devices[j].Lines {
			return result.Devices[i].Lines > result.Devices[j].Lines
		}
		return result.Devices[i].DeviceID < result.Devices[j].DeviceID
	})

	for _, pm := range params {
		sort.Strings(pm.RawNames)
		result.Parameters = append(result.Parameters, *pm)
	}
	sort.Slice(result.Parameters, func(i, j int) bool {
		return result.Parameters[i].Parameter < result.Parameters[j].Parameter
	})

	if best := result.BestFormat(); best != nil && best.Name == "us" {
		result.AmbiguityNote = "Dates such as 03/04/2024 are read as month/day (MM/DD/YYYY). " +
			"Logs written with day/month ordering will be misdated."
	}

	return result
}

// matchForeign records the first unsupported format that matches line.
func (d *Detector) matchForeign(line string, seen map[string]*ForeignMatch) {
	for _, f := range d.foreign {
		if !f.Pattern.MatchString(line) {
			continue
		}
		m := seen[f.Name]
		if m == nil {
			m = &ForeignMatch{Format: f, SampleLine: line}
			seen[f.Name] = m
		}
		m.MatchCount++
		return
	}
}

// sampleFile reads up to sampleSize non-empty lines, decoding the way the
// parser does.
func (d *Detector) sampleFile(ctx context.Context, path string) ([]string, error) {
	// #nosec G304 - path is provided by user via CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	reader := parser.NewLineReader(file)
	for len(lines) < d.sampleSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, tooLong, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if !tooLong && strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return lines, nil
}

// BestFormat returns the most frequent recognized format, or nil.
func (r *DetectionResult) BestFormat() *FormatMatch {
	if len(r.Formats) == 0 {
		return nil
	}
	return &r.Formats[0]
}

// HasRecords returns true if at least one sampled line produced records.
func (r *DetectionResult) HasRecords() bool {
	return r.RecordLines > 0
}

// RecordRate is the share of sampled lines that produced records.
func (r *DetectionResult) RecordRate() float64 {
	if r.SampledLines == 0 {
		return 0
	}
	return float64(r.RecordLines) / float64(r.SampledLines)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
