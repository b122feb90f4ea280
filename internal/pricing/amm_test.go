package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresightlabs/foresight/internal/domain"
)

func TestCPMMPrices_SumToOne(t *testing.T) {
	pools := [][]float64{
		{100, 100},
		{30, 70},
		{0.5, 99.5},
	}
	for _, pool := range pools {
		probs, err := CPMM{}.Prices(pool)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)
	}
}

func TestCPMMQuote_PreservesInvariant(t *testing.T) {
	pool := []float64{100, 100}
	k := pool[0] * pool[1]

	for _, amount := range []float64{0.5, 5, 50, 500} {
		q, err := CPMM{}.Quote(pool, 0, amount)
		require.NoError(t, err)
		assert.InDelta(t, k, q.NewPool[0]*q.NewPool[1], 1e-6)
		// Shares out never exceed the opposing pre-trade reserve.
		assert.Less(t, q.Shares, pool[1])
		assert.Greater(t, q.Shares, 0.0)
	}
}

func TestCPMMQuote_SymmetricSides(t *testing.T) {
	pool := []float64{80, 120}

	yes, err := CPMM{}.Quote(pool, 0, 10)
	require.NoError(t, err)
	no, err := CPMM{}.Quote([]float64{120, 80}, 1, 10)
	require.NoError(t, err)

	assert.InDelta(t, yes.Shares, no.Shares, 1e-9)
	assert.InDelta(t, yes.PriceImpact, no.PriceImpact, 1e-9)
}

func TestCPMMQuote_PriceImpactGrowsWithSize(t *testing.T) {
	pool := []float64{100, 100}

	small, err := CPMM{}.Quote(pool, 0, 1)
	require.NoError(t, err)
	large, err := CPMM{}.Quote(pool, 0, 50)
	require.NoError(t, err)

	assert.Greater(t, large.PriceImpact, small.PriceImpact)
}

func TestCPMMValidate_ZeroReserveIsDegenerate(t *testing.T) {
	_, err := CPMM{}.Prices([]float64{0, 100})
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = CPMM{}.Quote([]float64{100, 0}, 0, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCPMMValidate_RequiresTwoReserves(t *testing.T) {
	_, err := CPMM{}.Prices([]float64{1, 2, 3})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestCPMMSlippageBound_Default(t *testing.T) {
	assert.Equal(t, DefaultSlippageBound, CPMM{}.SlippageBound())
	assert.Equal(t, 0.02, CPMM{Bound: 0.02}.SlippageBound())
}
