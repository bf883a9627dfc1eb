package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var deviceFormats = []*regexp.Regexp{
	regexp.MustCompile(`(?i)SN#?\s*(\d+)`),
	regexp.MustCompile(`(?i)Serial[:\s]+(\d+)`),
	regexp.MustCompile(`(?i)Machine[:\s]+(\d+)`),
}

// Payload is the raw parameter block of a line. Numbers are kept as text so
// the builder can tell malformed values from valid ones.
type Payload struct {
	RawName string
	Count   string
	Max     string
	Min     string
	Avg     string
}

// ExtractedLine is what the extractor finds on one line.
type ExtractedLine struct {
	Timestamp string
	DeviceID  string
	Payload   *Payload
}

// Extractor pulls timestamp, device id and parameter block out of a line.
// It is immutable and can be shared.
type Extractor struct {
	timestamps *TimestampExtractor
	param      *regexp.Regexp
}

// NewExtractor compiles the parameter alternation from the resolver's
// patterns, longest first, so a longer spelling wins over its prefix.
func NewExtractor(r Resolver) (*Extractor, error) {
	patterns := r.Patterns()
	if len(patterns) == 0 {
		return nil, errors.New("no parameter patterns to match")
	}
	re, err := compileParamPattern(patterns)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		timestamps: NewTimestampExtractor(),
		param:      re,
	}, nil
}

func compileParamPattern(patterns []string) (*regexp.Regexp, error) {
	alts := make([]string, 0, len(patterns))
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		alt := patternToRegexp(p)
		if alt == "" || seen[alt] {
			continue
		}
		seen[alt] = true
		alts = append(alts, alt)
	}
	expr := `(?i)(` + strings.Join(alts, "|") + `)[:\s]*count\s*=\s*(\d+),?\s*max\s*=\s*([\d.\-]+),?\s*min\s*=\s*([\d.\-]+),?\s*avg\s*=\s*([\d.\-]+)`
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling parameter pattern: %w", err)
	}
	return re, nil
}

// patternToRegexp quotes a spelling and lets its spaces match any run of
// whitespace, including none.
func patternToRegexp(p string) string {
	fields := strings.Fields(p)
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	return strings.Join(fields, `\s*`)
}

// Extract returns nil for lines without a recognized timestamp. Lines with a
// timestamp but no parameter block come back with a nil Payload.
func (e *Extractor) Extract(line string) *ExtractedLine {
	ts, _, ok := e.timestamps.Extract(line)
	if !ok {
		return nil
	}
	out := &ExtractedLine{
		Timestamp: ts,
		DeviceID:  ExtractDevice(line),
	}
	if m := e.param.FindStringSubmatch(line); m != nil {
		out.Payload = &Payload{
			RawName: strings.TrimSpace(m[1]),
			Count:   m[2],
			Max:     m[3],
			Min:     m[4],
			Avg:     m[5],
		}
	}
	return out
}

// ExtractDevice returns the normalized SN#<n> device id, or UnknownDevice.
func ExtractDevice(line string) string {
	for _, re := range deviceFormats {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			// too many digits for an int; keep the digits as written
			return "SN#" + strings.TrimLeft(m[1], "0")
		}
		return fmt.Sprintf("SN#%d", n)
	}
	return UnknownDevice
}
