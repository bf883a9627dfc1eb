package parser

import (
	"sort"
	"time"
)

// Table is the canonical, cleaned record set of one or more parse runs.
// Records are sorted by timestamp and unique on
// (timestamp, device, parameter, statistic) within a run.
type Table struct {
	records []Record
}

// NewTable wraps already-clean records without copying.
func NewTable(records []Record) *Table {
	return &Table{records: records}
}

// EmptyTable returns a table with no records.
func EmptyTable() *Table {
	return &Table{}
}

// Clean drops rows with a zero timestamp, sorts the rest by timestamp
// (stable, so input order breaks ties) and keeps the first of each duplicate
// tuple. It returns the table and the number of duplicates removed.
func Clean(records []Record) (*Table, int) {
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Timestamp.IsZero() {
			continue
		}
		kept = append(kept, r)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})

	seen := make(map[key]bool, len(kept))
	out := kept[:0]
	dropped := 0
	for _, r := range kept {
		k := r.key()
		if seen[k] {
			dropped++
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return &Table{records: out}, dropped
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Records returns the underlying records. Callers must not modify them.
func (t *Table) Records() []Record {
	if t == nil {
		return nil
	}
	return t.records
}

// TimeSpan returns the first and last timestamps.
func (t *Table) TimeSpan() (first, last time.Time) {
	if t.Len() == 0 {
		return time.Time{}, time.Time{}
	}
	return t.records[0].Timestamp, t.records[len(t.records)-1].Timestamp
}

// GroupKey identifies one analysed series.
type GroupKey struct {
	Parameter string    `json:"parameter"`
	Statistic Statistic `json:"statistic"`
}

// Group is the time-ordered series of one (parameter, statistic).
type Group struct {
	Key     GroupKey
	Records []Record
}

// Values returns the group's values in time order.
func (g Group) Values() []float64 {
	out := make([]float64, len(g.Records))
	for i, r := range g.Records {
		out[i] = r.Value
	}
	return out
}

// Groups splits the table by (parameter, statistic), ordered by parameter
// and then min, max, avg.
func (t *Table) Groups() []Group {
	index := make(map[GroupKey]int)
	var groups []Group
	for _, r := range t.Records() {
		k := GroupKey{Parameter: r.Parameter, Statistic: r.Statistic}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	order := map[Statistic]int{StatMin: 0, StatMax: 1, StatAvg: 2}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		if a.Parameter != b.Parameter {
			return a.Parameter < b.Parameter
		}
		return order[a.Statistic] < order[b.Statistic]
	})
	return groups
}

// Parameters returns the sorted distinct parameter ids.
func (t *Table) Parameters() []string {
	return t.distinct(func(r Record) string { return r.Parameter })
}

// Devices returns the sorted distinct device ids.
func (t *Table) Devices() []string {
	return t.distinct(func(r Record) string { return r.DeviceID })
}

func (t *Table) distinct(field func(Record) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Records() {
		v := field(r)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Filter returns the records matching device and parameter. Empty strings
// match everything.
func (t *Table) Filter(device, parameter string) *Table {
	var out []Record
	for _, r := range t.Records() {
		if device != "" && r.DeviceID != device {
			continue
		}
		if parameter != "" && r.Parameter != parameter {
			continue
		}
		out = append(out, r)
	}
	return &Table{records: out}
}
