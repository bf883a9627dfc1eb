package analyzer

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ccollicutt/halog/pkg/catalog"
	"github.com/ccollicutt/halog/pkg/parser"
)

// Defaults for a new Analyzer.
const (
	DefaultConfidenceLevel    = 0.95
	DefaultBootstrapResamples = 1000
	DefaultSeed               = 42
	DefaultTrendMinPoints     = 5
	// comprehensiveTrendMin is the size above which GroupStats carry a trend.
	comprehensiveTrendMin = 5
)

// EntryLookup is the part of the catalog the analyzer needs.
type EntryLookup interface {
	Get(id string) (catalog.Entry, bool)
}

// AnomalyConfig tunes anomaly detection.
type AnomalyConfig struct {
	MinPoints       int
	Contamination   float64
	ZScoreThreshold float64
	IQRMultiplier   float64
	Trees           int
	SampleSize      int
	Statistics      []parser.Statistic
}

// DefaultAnomalyConfig returns the standard detector settings.
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		MinPoints:       10,
		Contamination:   0.1,
		ZScoreThreshold: 3,
		IQRMultiplier:   1.5,
		Trees:           100,
		SampleSize:      256,
		Statistics:      []parser.Statistic{parser.StatAvg},
	}
}

// Analyzer runs the statistics, trend and anomaly passes over a table.
// It holds no per-run state and may be shared.
type Analyzer struct {
	entries        EntryLookup
	confidence     float64
	resamples      int
	seed           uint64
	trendMinPoints int
	anomaly        AnomalyConfig
	maxGap         time.Duration
	sources        []string
	logger         *zap.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithConfidenceLevel sets the two-sided interval level, e.g. 0.95.
func WithConfidenceLevel(level float64) Option {
	return func(a *Analyzer) {
		if level > 0 && level < 1 {
			a.confidence = level
		}
	}
}

// WithBootstrapResamples sets the number of bootstrap resamples.
func WithBootstrapResamples(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.resamples = n
		}
	}
}

// WithSeed seeds the bootstrap and the isolation forest.
func WithSeed(seed uint64) Option {
	return func(a *Analyzer) {
		a.seed = seed
	}
}

// WithTrendMinPoints sets the minimum avg series length for Trends.
func WithTrendMinPoints(n int) Option {
	return func(a *Analyzer) {
		if n >= 3 {
			a.trendMinPoints = n
		}
	}
}

// WithAnomalyConfig replaces the anomaly detector settings.
func WithAnomalyConfig(c AnomalyConfig) Option {
	return func(a *Analyzer) {
		a.anomaly = c
	}
}

// WithMaxGap enables gap detection between consecutive avg readings of one
// device and parameter. Zero disables it.
func WithMaxGap(d time.Duration) Option {
	return func(a *Analyzer) {
		if d >= 0 {
			a.maxGap = d
		}
	}
}

// WithSources records the input files in the result metadata.
func WithSources(sources []string) Option {
	return func(a *Analyzer) {
		a.sources = sources
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Analyzer. entries supplies expected ranges and CV
// thresholds; it may be nil.
func New(entries EntryLookup, opts ...Option) *Analyzer {
	a := &Analyzer{
		entries:        entries,
		confidence:     DefaultConfidenceLevel,
		resamples:      DefaultBootstrapResamples,
		seed:           DefaultSeed,
		trendMinPoints: DefaultTrendMinPoints,
		anomaly:        DefaultAnomalyConfig(),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs every pass over the table.
func (a *Analyzer) Analyze(ctx context.Context, table *parser.Table) (*AnalysisResult, error) {
	start := time.Now()

	groups, err := a.Statistics(ctx, table)
	if err != nil {
		return nil, err
	}
	anomalies, err := a.Anomalies(ctx, table)
	if err != nil {
		return nil, err
	}

	res := &AnalysisResult{
		Groups:    groups,
		Anomalies: anomalies,
		Trends:    a.Trends(table),
		Gaps:      DetectGaps(table, a.maxGap),
		Metadata: Metadata{
			Sources:   a.sources,
			Records:   table.Len(),
			Devices:   table.Devices(),
			Groups:    len(groups),
			Anomalies: len(anomalies),
			StartTime: start,
		},
	}
	res.Metadata.High = len(res.HighSeverity())
	res.Metadata.EndTime = time.Now()

	a.logger.Info("analysis complete",
		zap.Int("records", res.Metadata.Records),
		zap.Int("groups", res.Metadata.Groups),
		zap.Int("anomalies", res.Metadata.Anomalies),
		zap.Int("high_severity", res.Metadata.High),
		zap.Int("gaps", len(res.Gaps)))
	return res, nil
}

// Statistics computes GroupStats for every (parameter, statistic).
func (a *Analyzer) Statistics(ctx context.Context, table *parser.Table) ([]GroupStats, error) {
	groups := table.Groups()
	out := make([]GroupStats, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("computing statistics: %w", err)
		}
		out = append(out, a.groupStats(g))
	}
	return out, nil
}

func (a *Analyzer) groupStats(g parser.Group) GroupStats {
	values := g.Values()
	gs := GroupStats{
		Parameter:   g.Key.Parameter,
		Statistic:   g.Key.Statistic,
		Unit:        g.Records[0].Unit,
		Descriptive: Describe(values),
		Intervals: Intervals{
			Level:  a.confidence,
			Mean:   MeanInterval(values, a.confidence),
			Median: BootstrapMedianInterval(values, a.confidence, a.resamples, a.rngFor(g.Key)),
		},
	}
	if len(values) > comprehensiveTrendMin {
		gs.Trend = LinearTrend(values)
	}

	var entry *catalog.Entry
	if a.entries != nil {
		if e, ok := a.entries.Get(g.Key.Parameter); ok {
			entry = &e
		}
	}
	gs.Quality = AssessQuality(values, entry)
	return gs
}

// rngFor derives a per-group generator so results do not depend on the
// order groups are visited.
func (a *Analyzer) rngFor(k parser.GroupKey) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(k.Parameter))
	h.Write([]byte{0})
	h.Write([]byte(k.Statistic))
	return rand.New(rand.NewPCG(a.seed, h.Sum64()))
}

// detectors returns the three anomaly detectors in report order.
func (a *Analyzer) detectors(k parser.GroupKey) []Detector {
	return []Detector{
		IsolationForest{
			Trees:         a.anomaly.Trees,
			SampleSize:    a.anomaly.SampleSize,
			Contamination: a.anomaly.Contamination,
			Seed:          a.rngFor(k).Uint64(),
		},
		ZScoreDetector{Threshold: a.anomaly.ZScoreThreshold},
		IQRDetector{Multiplier: a.anomaly.IQRMultiplier},
	}
}

// Anomalies runs the detectors over each configured statistic of every
// parameter with enough points. Only points flagged by at least one detector
// are returned.
func (a *Analyzer) Anomalies(ctx context.Context, table *parser.Table) ([]Anomaly, error) {
	wanted := make(map[parser.Statistic]bool)
	for _, s := range a.anomaly.Statistics {
		wanted[s] = true
	}

	var out []Anomaly
	for _, g := range table.Groups() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("detecting anomalies: %w", err)
		}
		if !wanted[g.Key.Statistic] || len(g.Records) < a.anomaly.MinPoints {
			continue
		}

		values := g.Values()
		dets := a.detectors(g.Key)
		flags := make([][]bool, len(dets))
		for i, d := range dets {
			flags[i] = d.Detect(values)
		}

		for i, r := range g.Records {
			var methods []Method
			for j, d := range dets {
				if flags[j][i] {
					methods = append(methods, d.Method())
				}
			}
			if len(methods) == 0 {
				continue
			}
			sev := SeverityMedium
			if len(methods) >= 2 {
				sev = SeverityHigh
			}
			out = append(out, Anomaly{
				ID:        uuid.NewString(),
				Timestamp: r.Timestamp,
				DeviceID:  r.DeviceID,
				Parameter: r.Parameter,
				Statistic: r.Statistic,
				Value:     r.Value,
				Score:     len(methods),
				Methods:   methods,
				Severity:  sev,
			})
		}
		a.logger.Debug("anomaly pass", zap.String("parameter", g.Key.Parameter), zap.Int("points", len(values)))
	}
	return out, nil
}

// Trends summarizes the avg series of each parameter with at least
// trendMinPoints readings.
func (a *Analyzer) Trends(table *parser.Table) []TrendSummary {
	var out []TrendSummary
	for _, g := range table.Groups() {
		if g.Key.Statistic != parser.StatAvg || len(g.Records) < a.trendMinPoints {
			continue
		}
		t := LinearTrend(g.Values())
		if t == nil {
			continue
		}
		first := g.Records[0].Timestamp
		last := g.Records[len(g.Records)-1].Timestamp
		out = append(out, TrendSummary{
			Parameter:     g.Key.Parameter,
			Statistic:     g.Key.Statistic,
			DataPoints:    len(g.Records),
			TimeSpanHours: last.Sub(first).Hours(),
			Trend:         *t,
		})
	}
	return out
}
