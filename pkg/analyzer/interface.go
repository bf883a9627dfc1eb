package analyzer

// Detector flags outlying points of one series. Implementations must not
// modify values and must return one flag per value.
type Detector interface {
	// Method names the detector in anomaly reports.
	Method() Method

	// Detect returns true for every point the detector considers anomalous.
	Detect(values []float64) []bool
}

// ZScoreDetector flags points more than Threshold population standard
// deviations from the mean.
type ZScoreDetector struct {
	Threshold float64
}

// Method implements Detector.
func (d ZScoreDetector) Method() Method { return MethodZScore }

// Detect implements Detector.
func (d ZScoreDetector) Detect(values []float64) []bool {
	flags := make([]bool, len(values))
	if len(values) == 0 {
		return flags
	}
	for i, z := range populationZScores(values) {
		flags[i] = z > d.Threshold
	}
	return flags
}

// IQRDetector flags points outside Q1 - k*IQR and Q3 + k*IQR.
type IQRDetector struct {
	Multiplier float64
}

// Method implements Detector.
func (d IQRDetector) Method() Method { return MethodIQR }

// Detect implements Detector.
func (d IQRDetector) Detect(values []float64) []bool {
	flags := make([]bool, len(values))
	if len(values) == 0 {
		return flags
	}
	sorted := sortedCopy(values)
	q1, q3 := Quantile(sorted, 0.25), Quantile(sorted, 0.75)
	iqr := q3 - q1
	lo, hi := q1-d.Multiplier*iqr, q3+d.Multiplier*iqr
	for i, v := range values {
		flags[i] = v < lo || v > hi
	}
	return flags
}
