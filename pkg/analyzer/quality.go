package analyzer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ccollicutt/halog/pkg/catalog"
)

// Penalties applied by AssessQuality.
const (
	penaltyMissing     = 20.0
	maxPenaltyRange    = 30.0
	penaltyVariability = 15.0
	penaltyConstant    = 25.0
	maxPenaltyOutliers = 20.0
	missingRatioLimit  = 0.10
	extremeZScore      = 3.0
)

// AssessQuality scores one series. entry may be nil for parameters without
// a catalog entry, in which case range and variability checks are skipped.
// The score is not clamped.
func AssessQuality(values []float64, entry *catalog.Entry) Quality {
	q := Quality{Score: 100, Issues: []string{}}
	n := len(values)
	if n == 0 {
		q.Grade = gradeFor(q.Score)
		return q
	}
	x := finite(values)

	missing := float64(n-len(x)) / float64(n)
	if missing > missingRatioLimit {
		q.Score -= penaltyMissing
		q.Issues = append(q.Issues, fmt.Sprintf("High missing value ratio: %.1f%%", missing*100))
	}

	if entry != nil && len(x) > 0 {
		out := 0
		for _, v := range x {
			if !entry.ExpectedRange.Contains(v) {
				out++
			}
		}
		if out > 0 {
			q.Score -= math.Min(maxPenaltyRange, float64(out)/float64(n)*100)
			q.Issues = append(q.Issues, fmt.Sprintf("Values outside acceptable range: %d", out))
		}

		std := math.NaN()
		if len(x) >= 2 {
			std = stat.StdDev(x, nil)
		}
		cv := coefficientOfVariation(std, stat.Mean(x, nil))
		if cv > entry.EffectiveCVThreshold() {
			q.Score -= penaltyVariability
			q.Issues = append(q.Issues, fmt.Sprintf("High variability (CV=%.3f)", cv))
		}
	}

	if distinct(x) == 1 {
		q.Score -= penaltyConstant
		q.Issues = append(q.Issues, "All values are identical")
	}

	if n > 3 && len(x) > 0 {
		extreme := 0
		for _, z := range populationZScores(x) {
			if z > extremeZScore {
				extreme++
			}
		}
		if extreme > 0 {
			q.Score -= math.Min(maxPenaltyOutliers, float64(extreme)/float64(n)*100)
			q.Issues = append(q.Issues, fmt.Sprintf("Extreme outliers detected: %d", extreme))
		}
	}

	q.Grade = gradeFor(q.Score)
	return q
}

func gradeFor(score float64) Grade {
	switch {
	case score >= 90:
		return GradeExcellent
	case score >= 75:
		return GradeGood
	case score >= 60:
		return GradeFair
	default:
		return GradePoor
	}
}

func distinct(x []float64) int {
	seen := make(map[float64]struct{}, len(x))
	for _, v := range x {
		seen[v] = struct{}{}
	}
	return len(seen)
}
