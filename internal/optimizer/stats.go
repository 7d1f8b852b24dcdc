package optimizer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// signal measures how strongly one numeric field relates to outcome.
type signal struct {
	correlation float64
	winRateDiff float64
	variance    float64
	n           int
}

func measure(xs, outcomes []float64) signal {
	s := signal{n: len(xs)}
	if len(xs) < 2 {
		return s
	}
	s.correlation = finite(stat.Correlation(xs, outcomes, nil))
	s.variance = finite(stat.Variance(xs, nil))
	s.winRateDiff = winRateSpread(xs, outcomes)
	return s
}

// winRateSpread compares the win rate of the upper half of samples, ordered
// by field value, with the lower half. Constant fields carry no spread.
func winRateSpread(xs, outcomes []float64) float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })
	if xs[idx[0]] == xs[idx[len(idx)-1]] {
		return 0
	}
	half := len(idx) / 2
	rate := func(part []int) float64 {
		if len(part) == 0 {
			return 0
		}
		wins := 0
		for _, i := range part {
			if outcomes[i] > 0 {
				wins++
			}
		}
		return float64(wins) / float64(len(part))
	}
	return math.Abs(rate(idx[half:]) - rate(idx[:half]))
}

func meanAbs(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += math.Abs(v)
	}
	return sum / float64(len(vals))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
