package pricing

import (
	"fmt"

	"github.com/foresightlabs/foresight/internal/domain"
)

// CPMM is a binary constant-product market maker: yesPool x noPool = k, with
// k fixed at bet time from the pre-trade reserves. Markets must be seeded
// with nonzero liquidity on both sides at creation; a zero reserve is a
// degenerate state, not an empty market.
type CPMM struct {
	// Bound caps the fractional price impact of one trade. Zero disables.
	Bound float64
}

// Prices returns each outcome's share of the combined reserves.
func (c CPMM) Prices(pool []float64) ([]float64, error) {
	if err := c.validate(pool); err != nil {
		return nil, err
	}
	total := pool[0] + pool[1]
	return []float64{pool[0] / total, pool[1] / total}, nil
}

// Quote buys shares of the given outcome with amount points. The points are
// added to the bought outcome's reserve and the opposing reserve shrinks to
// preserve k; the shares received are the opposing reserve's reduction.
func (c CPMM) Quote(pool []float64, outcome int, amount float64) (Quote, error) {
	if err := c.validate(pool); err != nil {
		return Quote{}, err
	}
	if err := validateRequest(pool, outcome, amount); err != nil {
		return Quote{}, err
	}

	other := 1 - outcome
	k := pool[0] * pool[1]

	newPool := make([]float64, 2)
	copy(newPool, pool)
	newPool[outcome] += amount
	newPool[other] = k / newPool[outcome]
	shares := pool[other] - newPool[other]

	before, _ := c.Prices(pool)
	after, _ := c.Prices(newPool)

	return Quote{
		Cost:        amount,
		Shares:      shares,
		PriceImpact: impact(before[outcome], after[outcome]),
		NewPool:     newPool,
	}, nil
}

// SlippageBound returns the configured price-impact cap, defaulting to 0.5%.
func (c CPMM) SlippageBound() float64 {
	if c.Bound > 0 {
		return c.Bound
	}
	return DefaultSlippageBound
}

// validate rejects non-binary pools and any reserve at or below zero.
func (CPMM) validate(pool []float64) error {
	if len(pool) != 2 {
		return fmt.Errorf("pricing: cpmm pool must have 2 reserves, got %d: %w",
			len(pool), domain.ErrInvalidState)
	}
	for i, p := range pool {
		if p <= 0 {
			return fmt.Errorf("pricing: cpmm reserve[%d]=%v must be positive: %w",
				i, p, domain.ErrInvalidState)
		}
	}
	return nil
}
