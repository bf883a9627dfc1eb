package parser

import "github.com/ccollicutt/halog/pkg/catalog"

// Resolver is the view of the parameter catalog the parser needs.
// *catalog.Catalog satisfies it and is safe to share between parsers.
type Resolver interface {
	Resolve(raw string) (string, bool)
	Get(id string) (catalog.Entry, bool)
	Patterns() []string
}

// ProgressFunc receives progress at chunk boundaries. percent is in [0, 100].
type ProgressFunc func(percent int, message string)

// CancelFunc is polled once per input line; returning true stops the run.
type CancelFunc func() bool

// ProgressMode selects how percentage complete is estimated.
type ProgressMode string

const (
	// ProgressLines counts lines up front, which costs a second read.
	ProgressLines ProgressMode = "lines"

	// ProgressBytes estimates from bytes consumed against the file size.
	ProgressBytes ProgressMode = "bytes"
)
