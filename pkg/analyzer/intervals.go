package analyzer

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MeanInterval is the Student-t interval for the mean. It is nil for fewer
// than two values.
func MeanInterval(values []float64, level float64) *Interval {
	x := finite(values)
	n := len(x)
	if n < 2 {
		return nil
	}
	mean := stat.Mean(x, nil)
	sem := stat.StdDev(x, nil) / math.Sqrt(float64(n))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	margin := t.Quantile((1+level)/2) * sem
	return &Interval{Lower: mean - margin, Upper: mean + margin}
}

// BootstrapMedianInterval resamples values with replacement and takes
// percentiles of the resampled medians. It is nil for fewer than two values.
func BootstrapMedianInterval(values []float64, level float64, resamples int, rng *rand.Rand) *Interval {
	x := finite(values)
	n := len(x)
	if n < 2 || resamples < 1 {
		return nil
	}
	medians := make([]float64, resamples)
	sample := make([]float64, n)
	for b := range medians {
		for i := range sample {
			sample[i] = x[rng.IntN(n)]
		}
		medians[b] = Quantile(sortedCopy(sample), 0.5)
	}
	sorted := sortedCopy(medians)
	return &Interval{
		Lower: Quantile(sorted, (1-level)/2),
		Upper: Quantile(sorted, (1+level)/2),
	}
}
