package parser

import (
	"bytes"
	"errors"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// DefaultChunkSize is the number of lines processed between progress reports.
const DefaultChunkSize = 1000

// FileParser drives extraction and record building over one file at a time.
// It keeps per-run counters, so one instance must not parse concurrently;
// use one FileParser per goroutine. The Resolver may be shared.
type FileParser struct {
	extractor *Extractor
	builder   *Builder
	chunkSize int
	mode      ProgressMode
	progress  ProgressFunc
	cancel    CancelFunc
	logger    *zap.Logger

	stats RunStats
}

// Option configures a FileParser.
type Option func(*FileParser)

// WithChunkSize sets the lines per chunk. Values below 1 are ignored.
func WithChunkSize(n int) Option {
	return func(p *FileParser) {
		if n > 0 {
			p.chunkSize = n
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *FileParser) {
		p.progress = fn
	}
}

// WithProgressMode selects line-count or byte-offset progress.
func WithProgressMode(m ProgressMode) Option {
	return func(p *FileParser) {
		p.mode = m
	}
}

// WithCancel registers a predicate polled once per line.
func WithCancel(fn CancelFunc) Option {
	return func(p *FileParser) {
		p.cancel = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *FileParser) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a FileParser resolving names through r.
func New(r Resolver, opts ...Option) (*FileParser, error) {
	ex, err := NewExtractor(r)
	if err != nil {
		return nil, fmt.Errorf("creating extractor: %w", err)
	}
	p := &FileParser{
		extractor: ex,
		builder:   NewBuilder(r),
		chunkSize: DefaultChunkSize,
		mode:      ProgressLines,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ProcessLine extracts and builds a single line.
func (p *FileParser) ProcessLine(line string, lineNumber int) Outcome {
	return p.builder.Build(p.extractor.Extract(line), lineNumber)
}

// Stats returns a snapshot of the counters of the last run.
func (p *FileParser) Stats() RunStats {
	return p.stats.clone()
}

// Parse reads path and returns its cleaned table. A file that cannot be
// opened or read fails the whole run with an empty table. Lines over
// MaxLineSize are skipped as line_too_long. Cancellation,
// through the CancelFunc or ctx, also yields an empty table with Cancelled
// set; only ctx cancellation returns an error.
func (p *FileParser) Parse(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	p.stats = RunStats{Skipped: make(map[SkipReason]int)}
	res := &Result{Path: path, Table: EmptyTable()}
	log := p.logger.With(zap.String("file", path))

	fail := func(err error) (*Result, error) {
		p.stats.ProcessingTime = time.Since(start)
		res.Stats = p.Stats()
		log.Error("parse failed", zap.Error(err))
		return res, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail(fmt.Errorf("opening log file %s: %w", path, err))
	}
	p.stats.FileSize = info.Size()

	totalLines := 0
	if p.progress != nil && p.mode != ProgressBytes {
		if totalLines, err = countLines(path); err != nil {
			return fail(err)
		}
	}

	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return fail(fmt.Errorf("opening log file %s: %w", path, err))
	}
	defer f.Close()

	lines := NewLineReader(f)

	var records []Record
	chunk := make([]rawLine, 0, p.chunkSize)
	lineNumber := 0

	for {
		chunk = chunk[:0]
		for len(chunk) < p.chunkSize {
			text, tooLong, err := lines.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fail(fmt.Errorf("reading %s: %w", path, err))
			}
			chunk = append(chunk, rawLine{text: text, tooLong: tooLong})
		}
		if len(chunk) == 0 {
			break
		}

		for _, line := range chunk {
			if err := ctx.Err(); err != nil {
				return p.cancelled(res, start, log), err
			}
			if p.cancel != nil && p.cancel() {
				return p.cancelled(res, start, log), nil
			}
			lineNumber++
			p.stats.LinesProcessed++

			var out Outcome
			if line.tooLong {
				out = Outcome{Skip: SkipLineTooLong}
			} else {
				out = p.ProcessLine(line.text, lineNumber)
			}
			if out.Skipped() {
				p.stats.Skipped[out.Skip]++
				if out.Skip.IsError() {
					p.stats.ErrorsEncountered++
					log.Debug("line rejected", zap.Int("line", lineNumber), zap.String("reason", string(out.Skip)))
				}
				continue
			}
			records = append(records, out.Records...)
			p.stats.RecordsExtracted += len(out.Records)
		}

		p.report(lineNumber, totalLines, lines.Consumed())
	}

	table, dropped := Clean(records)
	p.stats.DuplicatesDropped = dropped
	p.stats.ProcessingTime = time.Since(start)
	res.Table = table
	res.Stats = p.Stats()

	if p.progress != nil {
		p.progress(100, "parsing complete")
	}
	log.Info("parsed file",
		zap.Int("lines", p.stats.LinesProcessed),
		zap.Int("records", table.Len()),
		zap.Int("errors", p.stats.ErrorsEncountered),
		zap.Duration("elapsed", p.stats.ProcessingTime))
	return res, nil
}

func (p *FileParser) cancelled(res *Result, start time.Time, log *zap.Logger) *Result {
	p.stats.ProcessingTime = time.Since(start)
	res.Table = EmptyTable()
	res.Cancelled = true
	res.Stats = p.Stats()
	log.Info("parse cancelled", zap.Int("lines", p.stats.LinesProcessed))
	return res
}

func (p *FileParser) report(lines, totalLines int, bytesRead int64) {
	if p.progress == nil {
		return
	}
	var pct int
	switch {
	case p.mode == ProgressBytes && p.stats.FileSize > 0:
		pct = int(bytesRead * 100 / p.stats.FileSize)
	case totalLines > 0:
		pct = lines * 100 / totalLines
	}
	if pct > 100 {
		pct = 100
	}
	p.progress(pct, fmt.Sprintf("processed %d lines", lines))
}

// countLines is the first pass used for line-based progress.
func countLines(path string) (int, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return 0, fmt.Errorf("opening log file %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	count := 0
	last := byte('\n')
	for {
		n, err := f.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("counting lines in %s: %w", path, err)
		}
	}
	if last != '\n' {
		count++
	}
	return count, nil
}

type rawLine struct {
	text    string
	tooLong bool
}
