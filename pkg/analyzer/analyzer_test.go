package analyzer

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ccollicutt/halog/pkg/catalog"
	"github.com/ccollicutt/halog/pkg/parser"
)

var base = time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)

func reading(minute int, device, param string, stat parser.Statistic, value float64) parser.Record {
	return parser.Record{
		Timestamp:  base.Add(time.Duration(minute) * time.Minute),
		DeviceID:   device,
		Parameter:  param,
		Statistic:  stat,
		Value:      value,
		Unit:       "L/min",
		LineNumber: minute + 1,
	}
}

// flowTable has twenty avg readings with a spike at minute 10 and five min
// readings.
func flowTable(t *testing.T) *parser.Table {
	t.Helper()
	var records []parser.Record
	for i, v := range spiked(20, 10, 50) {
		records = append(records, reading(i, "SN#1", "magnetronFlow", parser.StatAvg, v-5))
	}
	for i := 0; i < 5; i++ {
		records = append(records, reading(i, "SN#1", "magnetronFlow", parser.StatMin, 4))
	}
	table, dropped := parser.Clean(records)
	if dropped != 0 {
		t.Fatalf("Clean() dropped %d records", dropped)
	}
	return table
}

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}
	return cat
}

func analyze(t *testing.T, a *Analyzer, table *parser.Table) *AnalysisResult {
	t.Helper()
	res, err := a.Analyze(context.Background(), table)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	return res
}

func TestAnalyze(t *testing.T) {
	res := analyze(t, New(defaultCatalog(t), WithSources([]string{"a.log"})), flowTable(t))

	if len(res.Groups) != 2 {
		t.Fatalf("Groups = %d, want 2", len(res.Groups))
	}
	minGroup, avgGroup := res.Groups[0], res.Groups[1]
	if minGroup.Statistic != parser.StatMin || avgGroup.Statistic != parser.StatAvg {
		t.Errorf("group order = %s, %s, want min, avg", minGroup.Statistic, avgGroup.Statistic)
	}
	if avgGroup.Unit != "L/min" {
		t.Errorf("Unit = %q, want L/min", avgGroup.Unit)
	}
	if avgGroup.Descriptive.Count != 20 {
		t.Errorf("Count = %d, want 20", avgGroup.Descriptive.Count)
	}
	if avgGroup.Trend == nil {
		t.Error("twenty points should carry a trend")
	}
	if minGroup.Trend != nil {
		t.Error("five points are too few for a trend")
	}
	if avgGroup.Intervals.Mean == nil || avgGroup.Intervals.Median == nil {
		t.Errorf("Intervals = %+v, want mean and median", avgGroup.Intervals)
	}
	if avgGroup.Intervals.Level != DefaultConfidenceLevel {
		t.Errorf("Level = %v, want %v", avgGroup.Intervals.Level, DefaultConfidenceLevel)
	}

	var spike *Anomaly
	ids := make(map[string]bool)
	for i, an := range res.Anomalies {
		if an.Statistic != parser.StatAvg {
			t.Errorf("anomaly on %s, only avg is scanned by default", an.Statistic)
		}
		if an.ID == "" || ids[an.ID] {
			t.Errorf("anomaly id %q is empty or repeated", an.ID)
		}
		ids[an.ID] = true
		if an.Value == 45 {
			spike = &res.Anomalies[i]
		}
	}
	if spike == nil {
		t.Fatal("spike not reported")
	}
	if spike.Severity != SeverityHigh {
		t.Errorf("spike Severity = %v, want high", spike.Severity)
	}
	if !slices.Contains(spike.Methods, MethodZScore) || !slices.Contains(spike.Methods, MethodIQR) {
		t.Errorf("spike Methods = %v, want z-score and IQR", spike.Methods)
	}
	if spike.Score != len(spike.Methods) {
		t.Errorf("Score = %d, want %d", spike.Score, len(spike.Methods))
	}

	if len(res.Trends) != 1 {
		t.Fatalf("Trends = %d, want 1", len(res.Trends))
	}
	if res.Trends[0].DataPoints != 20 {
		t.Errorf("DataPoints = %d, want 20", res.Trends[0].DataPoints)
	}
	assert.InDelta(t, 19.0/60, res.Trends[0].TimeSpanHours, 1e-9)

	md := res.Metadata
	if md.Records != 25 {
		t.Errorf("Records = %d, want 25", md.Records)
	}
	if !slices.Equal(md.Devices, []string{"SN#1"}) || !slices.Equal(md.Sources, []string{"a.log"}) {
		t.Errorf("devices=%v sources=%v", md.Devices, md.Sources)
	}
	if md.High != len(res.HighSeverity()) {
		t.Errorf("High = %d, want %d", md.High, len(res.HighSeverity()))
	}
	if !res.HasIssues() {
		t.Error("HasIssues() = false, want true")
	}
	if len(res.Gaps) != 0 {
		t.Errorf("Gaps = %v, gap detection is off by default", res.Gaps)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	table := flowTable(t)
	first := analyze(t, New(nil, WithSeed(9)), table)
	second := analyze(t, New(nil, WithSeed(9)), table)

	if len(first.Groups) != len(second.Groups) {
		t.Fatalf("group counts differ: %d vs %d", len(first.Groups), len(second.Groups))
	}
	for i := range first.Groups {
		// Descriptive holds NaN fields, which never compare equal.
		if !reflect.DeepEqual(first.Groups[i].Intervals, second.Groups[i].Intervals) {
			t.Errorf("group %d intervals differ", i)
		}
		if !reflect.DeepEqual(first.Groups[i].Quality, second.Groups[i].Quality) {
			t.Errorf("group %d quality differs", i)
		}
	}
	if len(first.Anomalies) != len(second.Anomalies) {
		t.Fatalf("anomaly counts differ: %d vs %d", len(first.Anomalies), len(second.Anomalies))
	}
	for i := range first.Anomalies {
		if !slices.Equal(first.Anomalies[i].Methods, second.Anomalies[i].Methods) {
			t.Errorf("anomaly %d methods differ", i)
		}
	}
}

func TestAnalyze_Empty(t *testing.T) {
	res := analyze(t, New(nil), parser.EmptyTable())
	if len(res.Groups) != 0 || len(res.Anomalies) != 0 || len(res.Trends) != 0 {
		t.Errorf("empty table gave %d groups, %d anomalies, %d trends", len(res.Groups), len(res.Anomalies), len(res.Trends))
	}
	if res.HasIssues() {
		t.Error("HasIssues() = true for empty table")
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(nil).Analyze(ctx, flowTable(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze() error = %v, want context.Canceled", err)
	}
}

func TestAnalyze_MinPoints(t *testing.T) {
	cfg := DefaultAnomalyConfig()
	cfg.MinPoints = 50

	res := analyze(t, New(nil, WithAnomalyConfig(cfg)), flowTable(t))
	if len(res.Anomalies) != 0 {
		t.Errorf("Anomalies = %d, want none below MinPoints", len(res.Anomalies))
	}
}

func TestAnalyze_QualityUsesCatalog(t *testing.T) {
	with := analyze(t, New(defaultCatalog(t)), flowTable(t))
	without := analyze(t, New(nil), flowTable(t))

	// The spike lies outside the catalog's expected range, which only
	// counts when an entry is known.
	if with.Groups[1].Quality.Score >= without.Groups[1].Quality.Score {
		t.Errorf("score with catalog = %v, want below %v", with.Groups[1].Quality.Score, without.Groups[1].Quality.Score)
	}
}

func TestAnalyze_Gaps(t *testing.T) {
	records := []parser.Record{
		reading(0, "SN#1", "pumpPressure", parser.StatAvg, 1),
		reading(1, "SN#1", "pumpPressure", parser.StatAvg, 1),
		reading(31, "SN#1", "pumpPressure", parser.StatAvg, 1),
	}
	table, _ := parser.Clean(records)

	res := analyze(t, New(nil, WithMaxGap(5*time.Minute)), table)
	if len(res.Gaps) != 1 {
		t.Fatalf("Gaps = %d, want 1", len(res.Gaps))
	}
	if res.Gaps[0].Duration != 30*time.Minute {
		t.Errorf("Duration = %v, want 30m", res.Gaps[0].Duration)
	}
}

func TestOptions_IgnoreInvalid(t *testing.T) {
	a := New(nil, WithConfidenceLevel(1.5), WithBootstrapResamples(0), WithTrendMinPoints(1), WithLogger(nil))
	if a.confidence != DefaultConfidenceLevel {
		t.Errorf("confidence = %v, want default", a.confidence)
	}
	if a.resamples != DefaultBootstrapResamples {
		t.Errorf("resamples = %d, want default", a.resamples)
	}
	if a.trendMinPoints != DefaultTrendMinPoints {
		t.Errorf("trendMinPoints = %d, want default", a.trendMinPoints)
	}
	if a.logger == nil {
		t.Error("logger = nil")
	}
}
