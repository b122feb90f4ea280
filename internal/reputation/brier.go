// Package reputation scores forecast accuracy. It converts a market's final
// probability vector and the realized outcome into a Brier score, maps the
// score to a bounded reputation delta, and folds deltas into a running
// average. All functions are pure.
package reputation

import "math"

// maxBrier is the worst possible Brier score for a one-hot outcome.
const maxBrier = 2.0

// BrierScore returns sum((p_i - o_i)^2) where o is the one-hot vector of the
// realized outcome. Range [0, 2]; 0 is a perfect call.
func BrierScore(probabilities []float64, outcome int) float64 {
	var sum float64
	for i, p := range probabilities {
		o := 0.0
		if i == outcome {
			o = 1.0
		}
		d := p - o
		sum += d * d
	}
	return sum
}

// DeltaFromBrier maps a Brier score to a reputation delta in [-5, +5]. A
// single prediction, however good or bad, moves reputation by at most 5
// points per event.
func DeltaFromBrier(brier float64) float64 {
	normalized := math.Max(0, math.Min(1, 1-brier/maxBrier))
	return normalized*10 - 5
}

// UpdateAverage folds delta into a running mean where every historical
// prediction carries equal weight.
func UpdateAverage(oldAvg float64, oldCount int64, delta float64) (newAvg float64, newCount int64) {
	newCount = oldCount + 1
	newAvg = (oldAvg*float64(oldCount) + delta) / float64(newCount)
	return newAvg, newCount
}
