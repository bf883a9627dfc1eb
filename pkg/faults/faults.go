// Package faults loads the two linac fault code databases and answers
// per-database lookups and description searches.
package faults

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Source names one of the two fault databases.
type Source string

const (
	SourceA Source = "A"
	SourceB Source = "B"
)

// Sources lists the databases in load order.
var Sources = []Source{SourceA, SourceB}

// UnknownType is recorded for lines without a type column.
const UnknownType = "Unknown"

// Entry is one fault code as found in one database.
type Entry struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Source      Source `json:"source"`
	LineNumber  int    `json:"line_number"`
}

// Hit is the lookup result for one database.
type Hit struct {
	Source Source `json:"source"`
	Found  bool   `json:"found"`
	Entry  *Entry `json:"entry,omitempty"`
}

// LookupResult reports every database, found or not.
type LookupResult struct {
	Code string `json:"code"`
	Hits []Hit  `json:"hits"`
}

// Found reports whether any database knows the code.
func (r LookupResult) Found() bool {
	for _, h := range r.Hits {
		if h.Found {
			return true
		}
	}
	return false
}

// In returns the hit for one database.
func (r LookupResult) In(src Source) Hit {
	for _, h := range r.Hits {
		if h.Source == src {
			return h
		}
	}
	return Hit{Source: src}
}

// Stats summarizes the loaded databases.
type Stats struct {
	TotalCodes    map[Source]int    `json:"total_codes"`
	UniqueCodes   int               `json:"unique_codes"`
	Types         int               `json:"types"`
	TypeBreakdown map[string]int    `json:"type_breakdown"`
	Encodings     map[Source]string `json:"encodings"`
}

// Registry holds one map per database so a code present in both keeps both
// entries. It is safe for concurrent reads once loaded.
type Registry struct {
	mu        sync.RWMutex
	dbs       map[Source]map[string]Entry
	encodings map[Source]string

	tryEncodings []Encoding
	logger       *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithEncodings replaces the encoding preference order.
func WithEncodings(encs ...Encoding) Option {
	return func(r *Registry) {
		if len(encs) > 0 {
			r.tryEncodings = encs
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		dbs:          make(map[Source]map[string]Entry),
		encodings:    make(map[Source]string),
		tryEncodings: DefaultEncodings,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load loads both databases. An empty path skips that database. A failure
// in one does not prevent the other from loading; all failures are joined.
func (r *Registry) Load(pathA, pathB string) error {
	var errs []error
	for _, db := range []struct {
		src  Source
		path string
	}{{SourceA, pathA}, {SourceB, pathB}} {
		if db.path == "" {
			continue
		}
		if err := r.LoadFile(db.src, db.path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadFile replaces one database with the contents of path.
func (r *Registry) LoadFile(src Source, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided database path is expected
	if err != nil {
		r.logger.Error("fault database unreadable", zap.String("source", string(src)), zap.Error(err))
		return fmt.Errorf("reading fault database %s: %w", src, err)
	}
	if err := r.LoadBytes(src, data); err != nil {
		r.logger.Error("fault database not loaded", zap.String("source", string(src)), zap.Error(err))
		return fmt.Errorf("loading fault database %s from %s: %w", src, path, err)
	}
	return nil
}

// LoadBytes parses a tab-delimited database and replaces src with it.
func (r *Registry) LoadBytes(src Source, data []byte) error {
	text, enc, err := decode(data, r.tryEncodings)
	if err != nil {
		return err
	}
	entries := parseDatabase(src, text)

	r.mu.Lock()
	r.dbs[src] = entries
	r.encodings[src] = enc
	r.mu.Unlock()

	r.logger.Info("fault database loaded",
		zap.String("source", string(src)),
		zap.String("encoding", enc),
		zap.Int("codes", len(entries)))
	return nil
}

func parseDatabase(src Source, text string) map[string]Entry {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	start := 0
	if len(lines) > 0 && strings.Contains(lines[0], "ID") && strings.Contains(lines[0], "Description") {
		start = 1
	}

	out := make(map[string]Entry)
	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		code := strings.TrimSpace(parts[0])
		if code == "" {
			continue
		}
		typ := UnknownType
		if len(parts) > 2 {
			if t := strings.TrimSpace(parts[2]); t != "" {
				typ = t
			}
		}
		out[code] = Entry{
			Code:        code,
			Description: strings.TrimSpace(parts[1]),
			Type:        typ,
			Source:      src,
			LineNumber:  i + 1,
		}
	}
	return out
}

// Loaded reports whether src has been loaded.
func (r *Registry) Loaded(src Source) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.dbs[src]
	return ok
}

// Lookup reports, for each database, whether it knows code.
func (r *Registry) Lookup(code string) LookupResult {
	code = strings.TrimSpace(code)
	res := LookupResult{Code: code, Hits: make([]Hit, 0, len(Sources))}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, src := range Sources {
		h := Hit{Source: src}
		if e, ok := r.dbs[src][code]; ok {
			h.Found = true
			h.Entry = &e
		}
		res.Hits = append(res.Hits, h)
	}
	return res
}

// SearchByDescription returns entries from both databases whose description
// contains term, case-insensitively, ordered by code and then source.
func (r *Registry) SearchByDescription(term string) []Entry {
	term = strings.ToLower(strings.TrimSpace(term))

	r.mu.RLock()
	var out []Entry
	for _, src := range Sources {
		for _, e := range r.dbs[src] {
			if strings.Contains(strings.ToLower(e.Description), term) {
				out = append(out, e)
			}
		}
	}
	r.mu.RUnlock()

	sortEntries(out)
	return out
}

// All returns a sorted snapshot of one database.
func (r *Registry) All(src Source) []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.dbs[src]))
	for _, e := range r.dbs[src] {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sortEntries(out)
	return out
}

// Types returns the sorted distinct fault types across both databases.
func (r *Registry) Types() []string {
	r.mu.RLock()
	seen := make(map[string]bool)
	for _, db := range r.dbs {
		for _, e := range db {
			seen[e.Type] = true
		}
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Stats counts codes per database and types across both.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		TotalCodes:    make(map[Source]int),
		TypeBreakdown: make(map[string]int),
		Encodings:     make(map[Source]string),
	}
	union := make(map[string]bool)
	for src, db := range r.dbs {
		s.TotalCodes[src] = len(db)
		s.Encodings[src] = r.encodings[src]
		for code, e := range db {
			union[code] = true
			s.TypeBreakdown[e.Type]++
		}
	}
	s.UniqueCodes = len(union)
	s.Types = len(s.TypeBreakdown)
	return s
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Code != es[j].Code {
			return es[i].Code < es[j].Code
		}
		return es[i].Source < es[j].Source
	})
}
