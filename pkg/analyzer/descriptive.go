package analyzer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Quantile returns the p-quantile of sorted using linear interpolation
// between closest ranks (Hyndman-Fan type 7). gonum's stat.Quantile offers
// only the empirical and type 4 estimators.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1 || p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}
	h := p * float64(n-1)
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

func sortedCopy(values []float64) []float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	return s
}

// finite drops NaN values.
func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Describe computes the summary statistics of one series. Skewness needs
// three values and kurtosis four; with fewer they are NaN.
func Describe(values []float64) Descriptive {
	x := finite(values)
	n := len(x)
	d := Descriptive{
		Count:         n,
		Std:           Float(math.NaN()),
		CV:            Float(math.NaN()),
		Skewness:      Float(math.NaN()),
		Kurtosis:      Float(math.NaN()),
		NormalityStat: Float(math.NaN()),
		NormalityP:    Float(math.NaN()),
		RelativeRange: Float(math.NaN()),
		RollingStd:    Float(math.NaN()),
	}
	if n == 0 {
		d.Mean, d.Median, d.Min, d.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		d.Q25, d.Q75, d.IQR, d.Range = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return d
	}

	sorted := sortedCopy(x)
	d.Mean = stat.Mean(x, nil)
	d.Median = Quantile(sorted, 0.5)
	d.Min, d.Max = sorted[0], sorted[n-1]
	d.Q25, d.Q75 = Quantile(sorted, 0.25), Quantile(sorted, 0.75)
	d.IQR = d.Q75 - d.Q25
	d.Range = d.Max - d.Min

	if n >= 2 {
		d.Std = Float(stat.StdDev(x, nil))
	}
	d.CV = Float(coefficientOfVariation(float64(d.Std), d.Mean))

	lower, upper := d.Q25-1.5*d.IQR, d.Q75+1.5*d.IQR
	for _, v := range x {
		if v < lower || v > upper {
			d.OutlierCount++
		}
	}
	d.OutlierPercentage = float64(d.OutlierCount) / float64(n) * 100

	if n >= 3 {
		d.Skewness = Float(stat.Skew(x, nil))
		jb, p := jarqueBera(x)
		d.NormalityStat, d.NormalityP = Float(jb), Float(p)
		if !math.IsNaN(p) {
			normal := p > 0.05
			d.IsNormal = &normal
		}
	}
	if n >= 4 {
		d.Kurtosis = Float(stat.ExKurtosis(x, nil))
	}

	if d.Mean != 0 {
		d.RelativeRange = Float(d.Range / d.Mean)
	} else {
		d.RelativeRange = Float(math.Inf(1))
	}
	d.RollingStd = Float(RollingStd(x, min(10, n/2)))

	if cv := float64(d.CV); !math.IsInf(cv, 0) && !math.IsNaN(cv) {
		d.StabilityScore = 1 / (1 + cv)
	}
	return d
}

// coefficientOfVariation is std/|mean|, +Inf for a zero mean.
func coefficientOfVariation(std, mean float64) float64 {
	if mean == 0 {
		return math.Inf(1)
	}
	return std / math.Abs(mean)
}

// RollingStd is the mean of the sample standard deviations of every full
// window. It is NaN when window < 2 or longer than the series.
func RollingStd(values []float64, window int) float64 {
	if window < 2 || window > len(values) {
		return math.NaN()
	}
	var sum float64
	count := 0
	for i := 0; i+window <= len(values); i++ {
		sum += stat.StdDev(values[i:i+window], nil)
		count++
	}
	return sum / float64(count)
}

// jarqueBera tests normality from the population skewness and excess
// kurtosis; the statistic is chi-square with two degrees of freedom.
func jarqueBera(x []float64) (float64, float64) {
	n := float64(len(x))
	mean := stat.Mean(x, nil)
	var m2, m3, m4 float64
	for _, v := range x {
		d := v - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= n
	m3 /= n
	m4 /= n
	if m2 == 0 {
		return math.NaN(), math.NaN()
	}
	skew := m3 / math.Pow(m2, 1.5)
	kurt := m4/(m2*m2) - 3
	jb := n / 6 * (skew*skew + kurt*kurt/4)
	chi := distuv.ChiSquared{K: 2}
	return jb, 1 - chi.CDF(jb)
}

// populationZScores returns |x - mean| / population std. A constant series
// yields all NaN.
func populationZScores(x []float64) []float64 {
	mean := stat.Mean(x, nil)
	var ss float64
	for _, v := range x {
		ss += (v - mean) * (v - mean)
	}
	sd := math.Sqrt(ss / float64(len(x)))
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Abs(v-mean) / sd
	}
	if sd == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
	}
	return out
}
