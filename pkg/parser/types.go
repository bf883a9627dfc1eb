// Package parser turns raw linac cooling/control log lines into canonical,
// unit-aware time-series records.
package parser

import "time"

// TimestampLayout is the canonical layout every extracted timestamp is
// rewritten to.
const TimestampLayout = "2006-01-02 15:04:05"

// UnknownDevice is the device id used when a line names no device.
const UnknownDevice = "Unknown"

// Statistic is one of the three values reported per parameter window.
type Statistic string

const (
	StatMin Statistic = "min"
	StatMax Statistic = "max"
	StatAvg Statistic = "avg"
)

// Statistics lists the statistics in the order records are emitted.
var Statistics = []Statistic{StatMin, StatMax, StatAvg}

// ParseStatistic converts a string into a Statistic.
func ParseStatistic(s string) (Statistic, bool) {
	switch Statistic(s) {
	case StatMin, StatMax, StatAvg:
		return Statistic(s), true
	}
	return "", false
}

// Quality is the coarse per-record confidence grade.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityUnknown   Quality = "unknown"
)

// Record is one canonical reading: a single statistic of one parameter
// block on one log line.
type Record struct {
	Timestamp        time.Time `json:"timestamp"`
	DeviceID         string    `json:"device_id"`
	Parameter        string    `json:"parameter"`
	Statistic        Statistic `json:"statistic"`
	Value            float64   `json:"value"`
	Count            int       `json:"count"`
	Unit             string    `json:"unit"`
	Description      string    `json:"description"`
	Quality          Quality   `json:"quality"`
	RawParameterName string    `json:"raw_parameter_name"`
	LineNumber       int       `json:"line_number"`
}

// key identifies a record for de-duplication.
type key struct {
	ts        int64
	device    string
	parameter string
	statistic Statistic
}

func (r Record) key() key {
	return key{
		ts:        r.Timestamp.UnixNano(),
		device:    r.DeviceID,
		parameter: r.Parameter,
		statistic: r.Statistic,
	}
}

// SkipReason explains why a line contributed no records.
type SkipReason string

const (
	SkipNone                SkipReason = ""
	SkipNoTimestamp         SkipReason = "no_timestamp"
	SkipNoPayload           SkipReason = "no_payload"
	SkipUnresolvedParameter SkipReason = "unresolved_parameter"
	SkipMalformedNumber     SkipReason = "malformed_number"
	SkipInvalidValues       SkipReason = "invalid_values"
	SkipLineTooLong         SkipReason = "line_too_long"
)

// IsError reports whether the skip counts towards ErrorsEncountered.
// Lines without a timestamp or payload and unknown parameter names are
// ordinary noise in these logs.
func (r SkipReason) IsError() bool {
	return r == SkipMalformedNumber || r == SkipInvalidValues || r == SkipLineTooLong
}

// Outcome is the result of processing a single line: either three records
// or a skip reason.
type Outcome struct {
	Records []Record
	Skip    SkipReason
}

// Skipped reports whether the line produced no records.
func (o Outcome) Skipped() bool {
	return o.Skip != SkipNone
}

// RunStats are the counters of one parse run.
type RunStats struct {
	LinesProcessed    int                `json:"lines_processed"`
	RecordsExtracted  int                `json:"records_extracted"`
	ErrorsEncountered int                `json:"errors_encountered"`
	ProcessingTime    time.Duration      `json:"processing_time"`
	FileSize          int64              `json:"file_size"`
	Skipped           map[SkipReason]int `json:"skipped,omitempty"`
	DuplicatesDropped int                `json:"duplicates_dropped"`
}

func (s RunStats) clone() RunStats {
	out := s
	if s.Skipped != nil {
		out.Skipped = make(map[SkipReason]int, len(s.Skipped))
		for k, v := range s.Skipped {
			out.Skipped[k] = v
		}
	}
	return out
}

// Result is what a parse run hands back to the caller.
type Result struct {
	Path      string   `json:"path"`
	Table     *Table   `json:"-"`
	Stats     RunStats `json:"stats"`
	Cancelled bool     `json:"cancelled"`
}
