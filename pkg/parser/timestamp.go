package parser

import (
	"regexp"
	"time"
)

// TimestampFormat is one recognized date/time spelling. Pattern must capture
// the date and the time in groups 1 and 2; Layout parses "date time".
type TimestampFormat struct {
	Name    string
	Pattern *regexp.Regexp
	Layout  string
}

// DefaultTimestampFormats are tried in order; the first match wins.
var DefaultTimestampFormats = []TimestampFormat{
	{
		Name:    "iso",
		Pattern: regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[ \t]+(\d{2}:\d{2}:\d{2})`),
		Layout:  TimestampLayout,
	},
	{
		Name:    "us",
		Pattern: regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})[ \t]+(\d{1,2}:\d{2}:\d{2})`),
		Layout:  "1/2/2006 15:04:05",
	},
}

// TimestampExtractor finds the first recognized timestamp in a line and
// rewrites it to TimestampLayout.
type TimestampExtractor struct {
	formats []TimestampFormat
}

// NewTimestampExtractor creates an extractor over the given formats, or the
// defaults when none are passed.
func NewTimestampExtractor(formats ...TimestampFormat) *TimestampExtractor {
	if len(formats) == 0 {
		formats = DefaultTimestampFormats
	}
	return &TimestampExtractor{formats: formats}
}

// Extract returns the canonical timestamp text and the name of the format
// that matched. A match whose value does not parse (for example month 13)
// is returned unconverted so the cleanup pass can drop it.
func (e *TimestampExtractor) Extract(line string) (ts string, format string, ok bool) {
	for _, f := range e.formats {
		m := f.Pattern.FindStringSubmatch(line)
		if len(m) < 3 {
			continue
		}
		raw := m[1] + " " + m[2]
		parsed, err := time.Parse(f.Layout, raw)
		if err != nil {
			return raw, f.Name, true
		}
		return parsed.Format(TimestampLayout), f.Name, true
	}
	return "", "", false
}

// ParseTimestamp parses canonical timestamp text. Malformed text yields the
// zero time.
func ParseTimestamp(s string) time.Time {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
