// Package catalog maps the many raw parameter spellings found in linac
// cooling/control logs onto canonical parameter identifiers.
//
// A Catalog is immutable once built and safe to share across goroutines.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"
)

// ToleranceFactor widens the critical range on each side, in multiples of
// the critical span, to form the hard validation window.
const ToleranceFactor = 2.0

// DefaultCVThreshold is the coefficient-of-variation limit used by group
// quality scoring when an entry does not set its own.
const DefaultCVThreshold = 0.10

var (
	// ErrDuplicatePattern is returned when two canonical ids claim the same
	// normalized pattern.
	ErrDuplicatePattern = errors.New("duplicate normalized pattern")

	// ErrInvalidEntry is returned for entries that fail structural checks.
	ErrInvalidEntry = errors.New("invalid catalog entry")

	// ErrUnknownParameter is returned by Lookup for ids not in the catalog.
	ErrUnknownParameter = errors.New("unknown parameter")
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Range is a closed numeric interval.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range, bounds included.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Span returns Max - Min.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// Covers reports whether other lies entirely within r.
func (r Range) Covers(other Range) bool {
	return other.Min >= r.Min && other.Max <= r.Max
}

// UnmarshalYAML decodes a range written as a two element sequence.
func (r *Range) UnmarshalYAML(node *yaml.Node) error {
	var pair []float64
	if err := node.Decode(&pair); err != nil {
		return fmt.Errorf("range must be a [min, max] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("range must have exactly 2 values, got %d", len(pair))
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

// MarshalYAML encodes the range as a two element sequence.
func (r Range) MarshalYAML() (interface{}, error) {
	return []float64{r.Min, r.Max}, nil
}

// Entry describes one canonical parameter.
type Entry struct {
	ID            string   `yaml:"id" json:"id"`
	Group         string   `yaml:"group,omitempty" json:"group,omitempty"`
	Patterns      []string `yaml:"patterns" json:"patterns"`
	Unit          string   `yaml:"unit" json:"unit"`
	Description   string   `yaml:"description" json:"description"`
	ExpectedRange Range    `yaml:"expected_range" json:"expected_range"`
	CriticalRange Range    `yaml:"critical_range" json:"critical_range"`
	CVThreshold   float64  `yaml:"cv_threshold,omitempty" json:"cv_threshold,omitempty"`
}

// ValidationWindow returns the critical range widened by ToleranceFactor
// critical spans on each side.
func (e Entry) ValidationWindow() Range {
	span := e.CriticalRange.Span()
	return Range{
		Min: e.CriticalRange.Min - span*ToleranceFactor,
		Max: e.CriticalRange.Max + span*ToleranceFactor,
	}
}

// EffectiveCVThreshold returns the entry's CV threshold or the default.
func (e Entry) EffectiveCVThreshold() float64 {
	if e.CVThreshold > 0 {
		return e.CVThreshold
	}
	return DefaultCVThreshold
}

// file is the on-disk layout of a catalog YAML document.
type file struct {
	Parameters []Entry `yaml:"parameters"`
}

// Catalog resolves raw names to canonical entries.
type Catalog struct {
	entries map[string]Entry
	ids     []string
	index   map[string]string // normalized pattern -> canonical id
}

// Normalize lowercases a raw name and strips whitespace and colons.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) || r == ':' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// New builds a catalog and its reverse index. The canonical id of every entry
// is registered as one of its own patterns. Any problem reported by Check
// makes New fail; collisions are never resolved silently.
func New(entries []Entry) (*Catalog, error) {
	if problems := Check(entries); len(problems) > 0 {
		errs := make([]error, len(problems))
		for i, p := range problems {
			errs[i] = p
		}
		return nil, fmt.Errorf("building catalog: %w", errors.Join(errs...))
	}

	c := &Catalog{
		entries: make(map[string]Entry, len(entries)),
		ids:     make([]string, 0, len(entries)),
		index:   make(map[string]string),
	}
	for _, e := range entries {
		e.Patterns = append([]string(nil), e.Patterns...)
		c.entries[e.ID] = e
		c.ids = append(c.ids, e.ID)
		for _, p := range allPatterns(e) {
			c.index[Normalize(p)] = e.ID
		}
	}
	sort.Strings(c.ids)
	return c, nil
}

// Parse decodes catalog entries from YAML.
func Parse(data []byte) ([]Entry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(f.Parameters) == 0 {
		return nil, errors.New("parsing catalog: no parameters defined")
	}
	return f.Parameters, nil
}

// Load reads, parses and builds a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided catalog path is expected
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(entries)
}

var defaultCatalog = sync.OnceValues(func() (*Catalog, error) {
	entries, err := Parse(embeddedCatalog)
	if err != nil {
		return nil, err
	}
	return New(entries)
})

// Default returns the built-in catalog. It is constructed once.
func Default() (*Catalog, error) {
	return defaultCatalog()
}

// DefaultEntries returns a fresh copy of the built-in catalog entries.
func DefaultEntries() ([]Entry, error) {
	return Parse(embeddedCatalog)
}

// Resolve maps a raw parameter name to its canonical id.
func (c *Catalog) Resolve(raw string) (string, bool) {
	id, ok := c.index[Normalize(raw)]
	return id, ok
}

// Get returns the entry for a canonical id.
func (c *Catalog) Get(id string) (Entry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Lookup is Get with an error for unknown ids.
func (c *Catalog) Lookup(id string) (Entry, error) {
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownParameter, id)
	}
	return e, nil
}

// Len returns the number of canonical parameters.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// Entries returns all entries sorted by canonical id.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.entries[id])
	}
	return out
}

// Patterns returns every raw spelling known to the catalog, including the
// canonical ids themselves, deduplicated and sorted longest first.
func (c *Catalog) Patterns() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range c.ids {
		for _, p := range allPatterns(c.entries[id]) {
			key := strings.ToLower(p)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// ParameterInfo summarizes one supported parameter.
type ParameterInfo struct {
	ID            string `json:"id"`
	Unit          string `json:"unit"`
	Description   string `json:"description"`
	ExpectedRange Range  `json:"expected_range"`
}

// SupportedParameters lists unit, description and expected range per id.
func (c *Catalog) SupportedParameters() []ParameterInfo {
	out := make([]ParameterInfo, 0, len(c.ids))
	for _, e := range c.Entries() {
		out = append(out, ParameterInfo{
			ID:            e.ID,
			Unit:          e.Unit,
			Description:   e.Description,
			ExpectedRange: e.ExpectedRange,
		})
	}
	return out
}

func allPatterns(e Entry) []string {
	out := make([]string, 0, len(e.Patterns)+1)
	out = append(out, e.ID)
	out = append(out, e.Patterns...)
	return out
}
