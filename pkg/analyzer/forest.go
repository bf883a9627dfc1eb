package analyzer

import (
	"math"
	"math/rand/v2"
)

const eulerGamma = 0.5772156649015329

// IsolationForest is a one-dimensional isolation forest. Points that are
// isolated by few random splits score close to 1. The highest scoring
// Contamination share of the series is flagged.
type IsolationForest struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          uint64
}

// Method implements Detector.
func (f IsolationForest) Method() Method { return MethodIsolationForest }

// Detect implements Detector.
func (f IsolationForest) Detect(values []float64) []bool {
	flags := make([]bool, len(values))
	if len(values) < 2 || f.Contamination <= 0 {
		return flags
	}
	scores := f.Scores(values)
	threshold := Quantile(sortedCopy(scores), 1-f.Contamination)
	for i, s := range scores {
		flags[i] = s > threshold
	}
	return flags
}

// Scores returns the anomaly score in (0, 1] of every value.
func (f IsolationForest) Scores(values []float64) []float64 {
	n := len(values)
	psi := f.SampleSize
	if psi <= 0 || psi > n {
		psi = n
	}
	trees := f.Trees
	if trees <= 0 {
		trees = 100
	}
	rng := rand.New(rand.NewPCG(f.Seed, f.Seed^0x9e3779b97f4a7c15))
	limit := int(math.Ceil(math.Log2(float64(psi))))

	forest := make([]*isoNode, trees)
	sample := make([]float64, psi)
	for t := range forest {
		for i, j := range rng.Perm(n)[:psi] {
			sample[i] = values[j]
		}
		forest[t] = grow(sample, 0, limit, rng)
	}

	norm := averagePathLength(psi)
	scores := make([]float64, n)
	for i, v := range values {
		var total float64
		for _, tree := range forest {
			total += tree.pathLength(v, 0)
		}
		mean := total / float64(trees)
		if norm == 0 {
			scores[i] = 0.5
			continue
		}
		scores[i] = math.Pow(2, -mean/norm)
	}
	return scores
}

type isoNode struct {
	split       float64
	left, right *isoNode
	size        int
}

func grow(x []float64, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(x) <= 1 {
		return &isoNode{size: len(x)}
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return &isoNode{size: len(x)}
	}
	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range x {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	return &isoNode{
		split: split,
		left:  grow(left, depth+1, limit, rng),
		right: grow(right, depth+1, limit, rng),
	}
}

func (n *isoNode) pathLength(v float64, depth int) float64 {
	if n.left == nil {
		return float64(depth) + averagePathLength(n.size)
	}
	if v < n.split {
		return n.left.pathLength(v, depth+1)
	}
	return n.right.pathLength(v, depth+1)
}

// averagePathLength is c(n), the mean path length of an unsuccessful
// binary search tree lookup over n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	harmonic := math.Log(fn-1) + eulerGamma
	return 2*harmonic - 2*(fn-1)/fn
}
