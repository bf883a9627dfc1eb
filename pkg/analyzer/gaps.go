package analyzer

import (
	"fmt"
	"sort"
	"time"

	"github.com/ccollicutt/halog/pkg/parser"
)

// Gap is a stretch with no avg reading for one parameter on one device that
// exceeds the allowed interval.
type Gap struct {
	DeviceID    string        `json:"device_id"`
	Parameter   string        `json:"parameter"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
	Duration    time.Duration `json:"duration"`
	MaxAllowed  time.Duration `json:"max_allowed"`
	StartLine   int           `json:"start_line"`
	Description string        `json:"description"`
}

// DetectGaps reports consecutive avg readings of the same (device, parameter)
// further apart than maxGap. maxGap <= 0 disables the check.
func DetectGaps(table *parser.Table, maxGap time.Duration) []Gap {
	if maxGap <= 0 {
		return nil
	}

	type series struct{ device, parameter string }
	last := make(map[series]parser.Record)
	var gaps []Gap

	for _, r := range table.Records() {
		if r.Statistic != parser.StatAvg {
			continue
		}
		k := series{r.DeviceID, r.Parameter}
		prev, seen := last[k]
		last[k] = r
		if !seen {
			continue
		}
		gap := r.Timestamp.Sub(prev.Timestamp)
		if gap <= maxGap {
			continue
		}
		gaps = append(gaps, Gap{
			DeviceID:   r.DeviceID,
			Parameter:  r.Parameter,
			Start:      prev.Timestamp,
			End:        r.Timestamp,
			Duration:   gap,
			MaxAllowed: maxGap,
			StartLine:  prev.LineNumber,
			Description: fmt.Sprintf("Gap of %s between readings (max allowed: %s)",
				gap.Round(time.Second), maxGap),
		})
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].Parameter != gaps[j].Parameter {
			return gaps[i].Parameter < gaps[j].Parameter
		}
		return gaps[i].DeviceID < gaps[j].DeviceID
	})
	return gaps
}
