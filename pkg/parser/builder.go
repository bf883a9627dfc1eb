package parser

import (
	"strconv"

	"github.com/ccollicutt/halog/pkg/catalog"
)

// Triple is a validated-or-not numeric parameter block.
type Triple struct {
	Count int
	Min   float64
	Max   float64
	Avg   float64
}

// Valid checks a triple against the hard plausibility rules for an entry:
// min <= avg <= max, both bounds inside the tolerance-widened critical window,
// and a spread of at most half the average when the average is positive.
func (t Triple) Valid(e catalog.Entry) bool {
	if t.Count < 0 {
		return false
	}
	if t.Min > t.Avg || t.Avg > t.Max {
		return false
	}
	w := e.ValidationWindow()
	if !w.Contains(t.Min) || !w.Contains(t.Max) {
		return false
	}
	if t.Avg > 0 && t.Max-t.Min > 0.5*t.Avg {
		return false
	}
	return true
}

// Builder resolves extracted lines to canonical records.
type Builder struct {
	resolver Resolver
}

// NewBuilder returns a Builder over the given resolver.
func NewBuilder(r Resolver) *Builder {
	return &Builder{resolver: r}
}

// Build turns one extracted line into three records or a skip reason.
func (b *Builder) Build(x *ExtractedLine, lineNumber int) Outcome {
	if x == nil {
		return Outcome{Skip: SkipNoTimestamp}
	}
	if x.Payload == nil {
		return Outcome{Skip: SkipNoPayload}
	}
	p := x.Payload

	id, ok := b.resolver.Resolve(p.RawName)
	if !ok {
		return Outcome{Skip: SkipUnresolvedParameter}
	}

	t, ok := parseTriple(p)
	if !ok {
		return Outcome{Skip: SkipMalformedNumber}
	}

	entry, found := b.resolver.Get(id)
	if found && !t.Valid(entry) {
		return Outcome{Skip: SkipInvalidValues}
	}

	ts := ParseTimestamp(x.Timestamp)
	values := map[Statistic]float64{StatMin: t.Min, StatMax: t.Max, StatAvg: t.Avg}
	records := make([]Record, 0, len(Statistics))
	for _, stat := range Statistics {
		v := values[stat]
		r := Record{
			Timestamp:        ts,
			DeviceID:         x.DeviceID,
			Parameter:        id,
			Statistic:        stat,
			Value:            v,
			Count:            t.Count,
			Quality:          QualityUnknown,
			RawParameterName: p.RawName,
			LineNumber:       lineNumber,
		}
		if found {
			r.Unit = entry.Unit
			r.Description = entry.Description
			r.Quality = Grade(entry, v, t.Count)
		}
		records = append(records, r)
	}
	return Outcome{Records: records}
}

// Grade assigns the per-record quality label.
func Grade(e catalog.Entry, value float64, count int) Quality {
	switch {
	case !e.ExpectedRange.Contains(value):
		return QualityPoor
	case count > 100:
		return QualityExcellent
	case count > 50:
		return QualityGood
	default:
		return QualityFair
	}
}

func parseTriple(p *Payload) (Triple, bool) {
	count, err := strconv.Atoi(p.Count)
	if err != nil {
		return Triple{}, false
	}
	var t Triple
	t.Count = count
	for _, f := range []struct {
		text string
		dst  *float64
	}{
		{p.Min, &t.Min},
		{p.Max, &t.Max},
		{p.Avg, &t.Avg},
	} {
		v, err := strconv.ParseFloat(f.text, 64)
		if err != nil {
			return Triple{}, false
		}
		*f.dst = v
	}
	return t, true
}
