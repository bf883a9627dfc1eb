// Package analyzer computes descriptive statistics, confidence intervals,
// trend tests, group data-quality scores and multi-method anomalies over a
// canonical parameter table.
package analyzer

import (
	"encoding/json"
	"math"
	"time"

	"github.com/ccollicutt/halog/pkg/parser"
)

// Float is a float64 whose JSON form is null for NaN and a string for
// infinities, which encoding/json cannot represent.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte("null"), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

// Defined reports whether f is not NaN.
func (f Float) Defined() bool {
	return !math.IsNaN(float64(f))
}

// Descriptive holds the per-group summary statistics. Std is the sample
// standard deviation.
type Descriptive struct {
	Count             int     `json:"count"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Std               Float   `json:"std"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	Q25               float64 `json:"q25"`
	Q75               float64 `json:"q75"`
	IQR               float64 `json:"iqr"`
	CV                Float   `json:"cv"`
	OutlierCount      int     `json:"outlier_count"`
	OutlierPercentage float64 `json:"outlier_percentage"`
	Skewness          Float   `json:"skewness"`
	Kurtosis          Float   `json:"kurtosis"`
	NormalityStat     Float   `json:"normality_stat"`
	NormalityP        Float   `json:"normality_p_value"`
	IsNormal          *bool   `json:"is_normal"`
	Range             float64 `json:"range"`
	RelativeRange     Float   `json:"relative_range"`
	RollingStd        Float   `json:"rolling_std"`
	StabilityScore    float64 `json:"stability_score"`
}

// Interval is a two-sided confidence interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Intervals holds the mean and median intervals. Both are nil for fewer than
// two values.
type Intervals struct {
	Level  float64   `json:"confidence_level"`
	Mean   *Interval `json:"mean"`
	Median *Interval `json:"median"`
}

// Direction is the classified linear trend.
type Direction string

const (
	DirectionIncreasing     Direction = "increasing"
	DirectionDecreasing     Direction = "decreasing"
	DirectionStable         Direction = "stable"
	DirectionNotSignificant Direction = "no_significant_trend"
)

// Strength grades |r| of the linear fit.
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthWeak     Strength = "weak"
)

// MannKendall is the nonparametric monotonic trend test.
type MannKendall struct {
	S      float64 `json:"s"`
	Z      float64 `json:"z"`
	PValue float64 `json:"p_value"`
}

// Trend is the linear regression of value on sample index plus the
// Mann-Kendall confirmation.
type Trend struct {
	Slope       float64     `json:"slope"`
	Intercept   float64     `json:"intercept"`
	R           float64     `json:"r"`
	R2          float64     `json:"r2"`
	PValue      float64     `json:"p_value"`
	Direction   Direction   `json:"direction"`
	Strength    Strength    `json:"strength"`
	MannKendall MannKendall `json:"mann_kendall"`
}

// Grade is the group data-quality grade.
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeFair      Grade = "fair"
	GradePoor      Grade = "poor"
)

// Quality is the group data-quality score. Score starts at 100 and the
// penalties are additive, so it can go below zero.
type Quality struct {
	Score  float64  `json:"score"`
	Grade  Grade    `json:"grade"`
	Issues []string `json:"issues"`
}

// GroupStats is the full result for one (parameter, statistic) series.
type GroupStats struct {
	Parameter   string           `json:"parameter"`
	Statistic   parser.Statistic `json:"statistic"`
	Unit        string           `json:"unit"`
	Descriptive Descriptive      `json:"descriptive"`
	Intervals   Intervals        `json:"intervals"`
	Trend       *Trend           `json:"trend,omitempty"`
	Quality     Quality          `json:"quality"`
}

// Method names an anomaly detector.
type Method string

const (
	MethodIsolationForest Method = "IsolationForest"
	MethodZScore          Method = "Z-score"
	MethodIQR             Method = "IQR"
)

// Severity grades how many detectors agree on a point.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
)

// Anomaly is one flagged reading.
type Anomaly struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	DeviceID  string           `json:"device_id"`
	Parameter string           `json:"parameter"`
	Statistic parser.Statistic `json:"statistic"`
	Value     float64          `json:"value"`
	Score     int              `json:"score"`
	Methods   []Method         `json:"methods"`
	Severity  Severity         `json:"severity"`
}

// TrendSummary is the per-parameter trend over the avg series.
type TrendSummary struct {
	Parameter     string           `json:"parameter"`
	Statistic     parser.Statistic `json:"statistic"`
	DataPoints    int              `json:"data_points"`
	TimeSpanHours float64          `json:"time_span_hours"`
	Trend         Trend            `json:"trend"`
}

// AnalysisResult is the output of one Analyze call.
type AnalysisResult struct {
	Groups    []GroupStats   `json:"groups"`
	Anomalies []Anomaly      `json:"anomalies"`
	Trends    []TrendSummary `json:"trends"`
	Gaps      []Gap          `json:"gaps,omitempty"`
	Metadata  Metadata       `json:"metadata"`
}

// Metadata describes the analysis run.
type Metadata struct {
	Sources   []string  `json:"sources,omitempty"`
	Records   int       `json:"records"`
	Devices   []string  `json:"devices"`
	Groups    int       `json:"groups"`
	Anomalies int       `json:"anomalies"`
	High      int       `json:"high_severity"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// HighSeverity returns the anomalies flagged by at least two detectors.
func (r *AnalysisResult) HighSeverity() []Anomaly {
	var out []Anomaly
	for _, a := range r.Anomalies {
		if a.Severity == SeverityHigh {
			out = append(out, a)
		}
	}
	return out
}

// HasIssues reports whether any High severity anomaly was found.
func (r *AnalysisResult) HasIssues() bool {
	return len(r.HighSeverity()) > 0
}

// PoorGroups returns the groups graded poor.
func (r *AnalysisResult) PoorGroups() []GroupStats {
	var out []GroupStats
	for _, g := range r.Groups {
		if g.Quality.Grade == GradePoor {
			out = append(out, g)
		}
	}
	return out
}
