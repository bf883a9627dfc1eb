// Package metrics records parse and analysis runs as Prometheus metrics and
// writes them in the node-exporter textfile format.
package metrics

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ccollicutt/halog/pkg/analyzer"
	"github.com/ccollicutt/halog/pkg/parser"
)

const namespace = "halog"

// Recorder holds one registry per process run. It is safe for concurrent
// use by parse workers.
type Recorder struct {
	registry *prometheus.Registry

	linesProcessed    *prometheus.CounterVec
	recordsExtracted  *prometheus.CounterVec
	errors            *prometheus.CounterVec
	skipped           *prometheus.CounterVec
	duplicatesDropped *prometheus.CounterVec
	processingSeconds *prometheus.GaugeVec
	cancelled         *prometheus.CounterVec
	anomalies         *prometheus.GaugeVec
	gaps              prometheus.Gauge
	lastRun           prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		linesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_processed_total",
			Help:      "Log lines read.",
		}, []string{"file"}),
		recordsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Records produced by the record builder before cleaning.",
		}, []string{"file"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_errors_total",
			Help:      "Lines skipped for malformed or invalid values.",
		}, []string{"file"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_skipped_total",
			Help:      "Lines that produced no records, by reason.",
		}, []string{"file", "reason"}),
		duplicatesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Records dropped as duplicates during cleaning.",
		}, []string{"file"}),
		processingSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processing_seconds",
			Help:      "Wall time of the last parse of the file.",
		}, []string{"file"}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_cancelled_total",
			Help:      "Parse runs stopped by cancellation.",
		}, []string{"file"}),
		anomalies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomalies",
			Help:      "Anomalies found by the last analysis, by severity.",
		}, []string{"severity"}),
		gaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_gaps",
			Help:      "Reading gaps found by the last analysis.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	r.registry.MustRegister(
		r.linesProcessed,
		r.recordsExtracted,
		r.errors,
		r.skipped,
		r.duplicatesDropped,
		r.processingSeconds,
		r.cancelled,
		r.anomalies,
		r.gaps,
		r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveParse records one parse result. Files are labelled by base name.
func (r *Recorder) ObserveParse(res *parser.Result) {
	file := filepath.Base(res.Path)
	s := res.Stats

	r.linesProcessed.WithLabelValues(file).Add(float64(s.LinesProcessed))
	r.recordsExtracted.WithLabelValues(file).Add(float64(s.RecordsExtracted))
	r.errors.WithLabelValues(file).Add(float64(s.ErrorsEncountered))
	r.duplicatesDropped.WithLabelValues(file).Add(float64(s.DuplicatesDropped))
	for reason, n := range s.Skipped {
		r.skipped.WithLabelValues(file, string(reason)).Add(float64(n))
	}
	r.processingSeconds.WithLabelValues(file).Set(s.ProcessingTime.Seconds())
	if res.Cancelled {
		r.cancelled.WithLabelValues(file).Inc()
	}
	r.lastRun.Set(float64(time.Now().Unix()))
}

// ObserveAnalysis records the anomaly and gap counts of an analysis.
func (r *Recorder) ObserveAnalysis(res *analyzer.AnalysisResult) {
	high := len(res.HighSeverity())
	r.anomalies.WithLabelValues(string(analyzer.SeverityHigh)).Set(float64(high))
	r.anomalies.WithLabelValues(string(analyzer.SeverityMedium)).Set(float64(len(res.Anomalies) - high))
	r.gaps.Set(float64(len(res.Gaps)))
	r.lastRun.Set(float64(time.Now().Unix()))
}

// WriteTextfile writes every metric to path atomically, for the
// node-exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
