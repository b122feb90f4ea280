package reputation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrierScore_Boundaries(t *testing.T) {
	assert.InDelta(t, 0.0, BrierScore([]float64{1, 0}, 0), 1e-12)  // perfect call
	assert.InDelta(t, 0.5, BrierScore([]float64{0.5, 0.5}, 0), 1e-12)
	assert.InDelta(t, 2.0, BrierScore([]float64{0, 1}, 0), 1e-12)  // maximally wrong
}

func TestBrierScore_MultiOutcome(t *testing.T) {
	// (0.2-0)^2 + (0.5-1)^2 + (0.3-0)^2 = 0.04 + 0.25 + 0.09
	assert.InDelta(t, 0.38, BrierScore([]float64{0.2, 0.5, 0.3}, 1), 1e-12)
}

func TestDeltaFromBrier_Bounded(t *testing.T) {
	assert.InDelta(t, 5.0, DeltaFromBrier(0), 1e-12)
	assert.InDelta(t, -5.0, DeltaFromBrier(2), 1e-12)
	assert.InDelta(t, 0.0, DeltaFromBrier(1), 1e-12)

	// Out-of-range scores are clamped, keeping the delta within [-5, 5].
	assert.InDelta(t, 5.0, DeltaFromBrier(-1), 1e-12)
	assert.InDelta(t, -5.0, DeltaFromBrier(3), 1e-12)
}

func TestUpdateAverage(t *testing.T) {
	avg, count := UpdateAverage(0, 0, 4)
	assert.InDelta(t, 4.0, avg, 1e-12)
	assert.Equal(t, int64(1), count)

	avg, count = UpdateAverage(avg, count, -2)
	assert.InDelta(t, 1.0, avg, 1e-12)
	assert.Equal(t, int64(2), count)

	// All historical predictions carry equal weight.
	avg, count = UpdateAverage(1.0, 2, 4)
	assert.InDelta(t, 2.0, avg, 1e-12)
	assert.Equal(t, int64(3), count)
}
