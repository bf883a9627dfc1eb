package detector

import "regexp"

// ForeignFormat is a timestamp spelling halog does not read. Matching one
// tells the user why a file yields no records.
type ForeignFormat struct {
	Name    string
	Pattern *regexp.Regexp
	Example string
}

// ForeignFormats are checked against lines with no recognized timestamp.
// More specific patterns come first.
func ForeignFormats() []*ForeignFormat {
	formats := []struct {
		name, pattern, example string
	}{
		{"ISO 8601 (T separator)", `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`, "2024-01-15T10:30:00Z"},
		{"European date (DD.MM.YYYY)", `\d{2}\.\d{2}\.\d{4}\s+\d{2}:\d{2}:\d{2}`, "15.01.2024 10:30:00"},
		{"Date with short year (MM/DD/YY)", `\b\d{1,2}/\d{1,2}/\d{2}\s+\d{1,2}:\d{2}:\d{2}`, "01/15/24 10:30:00"},
		{"Syslog (BSD)", `^\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`, "Jan  5 09:30:00"},
		{"Apache/NGINX CLF", `\[\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2}\s+[+-]\d{4}\]`, "[15/Jun/2024:10:30:00 +0000]"},
		{"Unix timestamp (milliseconds)", `^\d{13}(?:\s|$)`, "1705315800000"},
		{"Unix timestamp (seconds)", `^\d{10}(?:\s|$)`, "1705315800"},
		{"Time only", `^\d{2}:\d{2}:\d{2}`, "10:30:00"},
	}

	out := make([]*ForeignFormat, len(formats))
	for i, f := range formats {
		out[i] = &ForeignFormat{
			Name:    f.name,
			Pattern: regexp.MustCompile(f.pattern),
			Example: f.example,
		}
	}
	return out
}
