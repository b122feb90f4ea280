package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresightlabs/foresight/internal/domain"
)

func TestParimutuelPrices_SumToOne(t *testing.T) {
	pools := [][]float64{
		{10, 5},
		{0, 0},
		{1, 2, 3, 4},
		{0.001, 1000},
		{0, 7, 0},
	}
	for _, pool := range pools {
		probs, err := Parimutuel{}.Prices(pool)
		require.NoError(t, err)
		var sum float64
		for _, p := range probs {
			sum += p
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestParimutuelPrices_KnownPool(t *testing.T) {
	probs, err := Parimutuel{}.Prices([]float64{10, 5})
	require.NoError(t, err)
	assert.InDelta(t, 0.667, probs[0], 0.001)
	assert.InDelta(t, 0.333, probs[1], 0.001)
}

func TestParimutuelPrices_EmptyPoolUniform(t *testing.T) {
	probs, err := Parimutuel{}.Prices([]float64{0, 0, 0})
	require.NoError(t, err)
	for _, p := range probs {
		assert.InDelta(t, 1.0/3.0, p, 1e-9)
	}
}

func TestParimutuelPayoutPerPoint(t *testing.T) {
	payouts, err := Parimutuel{}.PayoutPerPoint([]float64{10, 5})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, payouts[0], 1e-9)
	assert.InDelta(t, 3.0, payouts[1], 1e-9)
}

func TestParimutuelPayoutPerPoint_NoCompetingStake(t *testing.T) {
	payouts, err := Parimutuel{}.PayoutPerPoint([]float64{10, 0})
	require.NoError(t, err)
	// No stake on the second outcome: very large multiplier.
	assert.InDelta(t, 10/eps, payouts[1], 1)
}

func TestParimutuelQuote(t *testing.T) {
	q, err := Parimutuel{}.Quote([]float64{10, 5}, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, q.Cost)
	assert.Equal(t, 5.0, q.Shares)
	assert.Equal(t, []float64{15, 5}, q.NewPool)
	assert.Greater(t, q.PriceImpact, 0.0)
}

func TestParimutuelQuote_Invalid(t *testing.T) {
	_, err := Parimutuel{}.Quote([]float64{10, 5}, 2, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = Parimutuel{}.Quote([]float64{10, 5}, 0, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = Parimutuel{}.Quote([]float64{-1, 5}, 0, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
