package analyzer

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// significance is the p-value below which a trend has a direction.
const significance = 0.05

// LinearTrend regresses values on their index and classifies the fit. It
// needs at least three values and returns nil otherwise.
func LinearTrend(values []float64) *Trend {
	y := finite(values)
	n := len(y)
	if n < 3 {
		return nil
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	t := &Trend{Slope: beta, Intercept: alpha, PValue: 1}

	if stat.Variance(y, nil) > 0 {
		r := stat.Correlation(x, y, nil)
		t.R = r
		t.R2 = r * r
		t.PValue = regressionPValue(r, n)
	}

	switch {
	case t.PValue >= significance:
		t.Direction = DirectionNotSignificant
	case t.Slope > 0:
		t.Direction = DirectionIncreasing
	case t.Slope < 0:
		t.Direction = DirectionDecreasing
	default:
		t.Direction = DirectionStable
	}

	switch r := math.Abs(t.R); {
	case r > 0.7:
		t.Strength = StrengthStrong
	case r > 0.3:
		t.Strength = StrengthModerate
	default:
		t.Strength = StrengthWeak
	}

	t.MannKendall = MannKendallTest(y)
	return t
}

// regressionPValue is the two-sided p-value of the slope, from
// t = r * sqrt((n-2) / (1-r^2)) with n-2 degrees of freedom.
func regressionPValue(r float64, n int) float64 {
	df := float64(n - 2)
	if df <= 0 {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	tStat := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - dist.CDF(math.Abs(tStat)))
}

// MannKendallTest computes S over all pairs and a continuity-corrected
// normal approximation. Ties are not corrected for.
func MannKendallTest(values []float64) MannKendall {
	n := len(values)
	if n < 3 {
		return MannKendall{S: math.NaN(), Z: math.NaN(), PValue: math.NaN()}
	}
	var s float64
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			switch d := values[j] - values[i]; {
			case d > 0:
				s++
			case d < 0:
				s--
			}
		}
	}
	fn := float64(n)
	variance := fn * (fn - 1) * (2*fn + 5) / 18

	var z float64
	switch {
	case s > 0:
		z = (s - 1) / math.Sqrt(variance)
	case s < 0:
		z = (s + 1) / math.Sqrt(variance)
	}
	p := 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))
	return MannKendall{S: s, Z: z, PValue: p}
}
