package output

import (
	"errors"
	"math"
	"time"

	"github.com/ccollicutt/halog/pkg/analyzer"
	"github.com/ccollicutt/halog/pkg/parser"
)

var start = time.Date(2024, 8, 1, 10, 0, 0, 0, time.UTC)

func createTestResult() *analyzer.AnalysisResult {
	return &analyzer.AnalysisResult{
		Groups: []analyzer.GroupStats{
			{
				Parameter: "magnetronFlow",
				Statistic: parser.StatAvg,
				Unit:      "L/min",
				Descriptive: analyzer.Descriptive{
					Count: 20, Mean: 7.2, Median: 5.2, Std: 8.9, Min: 5, Max: 45,
					CV: 1.23, Skewness: analyzer.Float(math.NaN()),
				},
				Intervals: analyzer.Intervals{Level: 0.95, Mean: &analyzer.Interval{Lower: 3, Upper: 11.4}},
				Quality: analyzer.Quality{
					Score:  50,
					Grade:  analyzer.GradePoor,
					Issues: []string{"Values outside acceptable range: 1", "High variability (CV=1.230)"},
				},
			},
			{
				Parameter:   "pumpPressure",
				Statistic:   parser.StatMin,
				Unit:        "PSI",
				Descriptive: analyzer.Descriptive{Count: 3, Mean: 180, Std: analyzer.Float(math.NaN()), CV: analyzer.Float(math.NaN())},
				Quality:     analyzer.Quality{Score: 100, Grade: analyzer.GradeExcellent, Issues: []string{}},
			},
		},
		Anomalies: []analyzer.Anomaly{
			{
				ID: "a1", Timestamp: start.Add(10 * time.Minute), DeviceID: "SN#1",
				Parameter: "magnetronFlow", Statistic: parser.StatAvg, Value: 45, Score: 3,
				Methods:  []analyzer.Method{analyzer.MethodIsolationForest, analyzer.MethodZScore, analyzer.MethodIQR},
				Severity: analyzer.SeverityHigh,
			},
			{
				ID: "a2", Timestamp: start.Add(3 * time.Minute), DeviceID: "SN#1",
				Parameter: "magnetronFlow", Statistic: parser.StatAvg, Value: 5.4, Score: 1,
				Methods:  []analyzer.Method{analyzer.MethodIsolationForest},
				Severity: analyzer.SeverityMedium,
			},
		},
		Trends: []analyzer.TrendSummary{{
			Parameter: "magnetronFlow", Statistic: parser.StatAvg, DataPoints: 20, TimeSpanHours: 0.32,
			Trend: analyzer.Trend{Slope: 0.01, R2: 0.02, PValue: 0.6, Direction: analyzer.DirectionNotSignificant, Strength: analyzer.StrengthWeak},
		}},
		Gaps: []analyzer.Gap{{
			DeviceID: "SN#1", Parameter: "pumpPressure", Start: start, End: start.Add(30 * time.Minute),
			Duration: 30 * time.Minute, MaxAllowed: 5 * time.Minute, StartLine: 4,
			Description: "Gap of 30m0s between readings (max allowed: 5m0s)",
		}},
		Metadata: analyzer.Metadata{
			Sources:   []string{"a.log"},
			Records:   23,
			Devices:   []string{"SN#1"},
			StartTime: start,
			EndTime:   start.Add(1500 * time.Millisecond),
		},
	}
}

func createTestReport() *Report {
	return NewReport(createTestResult(), "halog.yaml", parser.RunStats{LinesProcessed: 40}, parser.RunStats{LinesProcessed: 2})
}

func record(minute int, param string, stat parser.Statistic, value float64) parser.Record {
	return parser.Record{
		Timestamp:        start.Add(time.Duration(minute) * time.Minute),
		DeviceID:         "SN#1",
		Parameter:        param,
		Statistic:        stat,
		Value:            value,
		Count:            12,
		Unit:             "L/min",
		Description:      "Mag Flow",
		Quality:          parser.QualityGood,
		RawParameterName: "Mag, Flow",
		LineNumber:       minute + 1,
	}
}

func createParseReport() *ParseReport {
	a, _ := parser.Clean([]parser.Record{
		record(0, "magnetronFlow", parser.StatAvg, 5.5),
		record(2, "magnetronFlow", parser.StatAvg, 5.25),
	})
	b, _ := parser.Clean([]parser.Record{record(1, "pumpPressure", parser.StatMax, 181)})

	results := []*parser.Result{
		{Path: "a.log", Table: a, Stats: parser.RunStats{
			LinesProcessed: 10, RecordsExtracted: 3, ErrorsEncountered: 1, DuplicatesDropped: 1,
			Skipped: map[parser.SkipReason]int{parser.SkipNoPayload: 7, parser.SkipInvalidValues: 1},
		}},
		{Path: "b.log", Table: b, Stats: parser.RunStats{
			LinesProcessed: 5, RecordsExtracted: 3,
			Skipped: map[parser.SkipReason]int{parser.SkipNoPayload: 4},
		}},
		nil,
	}
	errs := []error{nil, nil, errors.New("open c.log: no such file or directory")}
	return NewParseReport([]string{"a.log", "b.log", "c.log"}, results, errs)
}
