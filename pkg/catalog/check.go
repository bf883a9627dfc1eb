package catalog

import (
	"fmt"
	"sort"
)

// Problem describes one defect found in a set of catalog entries.
type Problem struct {
	ID      string
	Pattern string
	Err     error
	Detail  string
}

func (p Problem) Error() string {
	if p.Pattern != "" {
		return fmt.Sprintf("%s: pattern %q: %s", p.ID, p.Pattern, p.Detail)
	}
	return fmt.Sprintf("%s: %s", p.ID, p.Detail)
}

func (p Problem) Unwrap() error {
	return p.Err
}

// Check validates entries without building a catalog. It reports duplicate
// or empty ids, empty patterns, malformed ranges, expected ranges that are
// not contained in the critical range, and normalized patterns claimed by
// more than one id.
func Check(entries []Entry) []Problem {
	var problems []Problem
	add := func(id, pattern string, err error, format string, args ...interface{}) {
		problems = append(problems, Problem{ID: id, Pattern: pattern, Err: err, Detail: fmt.Sprintf(format, args...)})
	}

	ids := make(map[string]bool, len(entries))
	owners := make(map[string]string)

	for i, e := range entries {
		id := e.ID
		if id == "" {
			add(fmt.Sprintf("parameters[%d]", i), "", ErrInvalidEntry, "id is required")
			continue
		}
		if ids[id] {
			add(id, "", ErrInvalidEntry, "id defined more than once")
			continue
		}
		ids[id] = true

		if e.CriticalRange.Min > e.CriticalRange.Max {
			add(id, "", ErrInvalidEntry, "critical_range min %g exceeds max %g", e.CriticalRange.Min, e.CriticalRange.Max)
		}
		if e.ExpectedRange.Min > e.ExpectedRange.Max {
			add(id, "", ErrInvalidEntry, "expected_range min %g exceeds max %g", e.ExpectedRange.Min, e.ExpectedRange.Max)
		}
		if !e.CriticalRange.Covers(e.ExpectedRange) {
			add(id, "", ErrInvalidEntry, "expected_range [%g, %g] not within critical_range [%g, %g]",
				e.ExpectedRange.Min, e.ExpectedRange.Max, e.CriticalRange.Min, e.CriticalRange.Max)
		}
		if e.CVThreshold < 0 {
			add(id, "", ErrInvalidEntry, "cv_threshold must not be negative")
		}

		for _, p := range allPatterns(e) {
			norm := Normalize(p)
			if norm == "" {
				add(id, p, ErrInvalidEntry, "pattern is empty after normalization")
				continue
			}
			owner, taken := owners[norm]
			switch {
			case !taken:
				owners[norm] = id
			case owner != id:
				add(id, p, ErrDuplicatePattern, "normalized form %q already maps to %s", norm, owner)
			}
		}
	}

	sort.SliceStable(problems, func(i, j int) bool {
		return problems[i].ID < problems[j].ID
	})
	return problems
}
