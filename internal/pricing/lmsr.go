package pricing

import (
	"fmt"
	"math"

	"github.com/foresightlabs/foresight/internal/domain"
)

// LMSR implements Hanson's log market scoring rule. The cost function is
// C(q) = b * ln(sum exp(q_i/b)); buying qty of outcome i costs
// C(q + qty*e_i) - C(q). The gradient of C is the price vector and IS the
// probability vector, used directly everywhere prices are needed.
type LMSR struct {
	// B is the liquidity parameter: higher b moves prices slower and raises
	// the market maker's worst-case subsidy (b * ln n).
	B float64
	// Bound caps the fractional price impact of one trade. Zero disables.
	Bound float64
}

// Cost evaluates C(q) using the log-sum-exp trick for numerical stability.
func (l LMSR) Cost(q []float64) float64 {
	maxQ := q[0]
	for _, qi := range q[1:] {
		if qi > maxQ {
			maxQ = qi
		}
	}
	var sum float64
	for _, qi := range q {
		sum += math.Exp((qi - maxQ) / l.B)
	}
	return maxQ + l.B*math.Log(sum)
}

// Prices returns the softmax of q/b, the instantaneous probability vector.
func (l LMSR) Prices(pool []float64) ([]float64, error) {
	if err := l.validate(pool); err != nil {
		return nil, err
	}
	maxQ := pool[0]
	for _, qi := range pool[1:] {
		if qi > maxQ {
			maxQ = qi
		}
	}
	exps := make([]float64, len(pool))
	var denom float64
	for i, qi := range pool {
		exps[i] = math.Exp((qi - maxQ) / l.B)
		denom += exps[i]
	}
	for i := range exps {
		exps[i] /= denom
	}
	return exps, nil
}

// Quote buys amount shares of the given outcome; the cost is the difference
// of the cost function before and after.
func (l LMSR) Quote(pool []float64, outcome int, amount float64) (Quote, error) {
	if err := l.validate(pool); err != nil {
		return Quote{}, err
	}
	if err := validateRequest(pool, outcome, amount); err != nil {
		return Quote{}, err
	}

	newPool := make([]float64, len(pool))
	copy(newPool, pool)
	newPool[outcome] += amount

	cost := l.Cost(newPool) - l.Cost(pool)

	before, _ := l.Prices(pool)
	after, _ := l.Prices(newPool)

	return Quote{
		Cost:        cost,
		Shares:      amount,
		PriceImpact: impact(before[outcome], after[outcome]),
		NewPool:     newPool,
	}, nil
}

// SlippageBound returns the configured price-impact cap, defaulting to 0.5%.
func (l LMSR) SlippageBound() float64 {
	if l.Bound > 0 {
		return l.Bound
	}
	return DefaultSlippageBound
}

// MaxQuantityForBudget returns the largest share quantity of the given
// outcome purchasable without the cost exceeding budget. Because C is convex
// the cost delta is monotonically increasing in the quantity, so a bisection
// on qty converges to the same answer as incremental linear stepping while
// being faster and more precise.
func (l LMSR) MaxQuantityForBudget(pool []float64, outcome int, budget float64) (float64, error) {
	if err := l.validate(pool); err != nil {
		return 0, err
	}
	if outcome < 0 || outcome >= len(pool) {
		return 0, fmt.Errorf("pricing: outcome %d out of range [0,%d): %w",
			outcome, len(pool), domain.ErrInvalidRequest)
	}
	if budget <= 0 {
		return 0, nil
	}

	costFor := func(qty float64) float64 {
		newPool := make([]float64, len(pool))
		copy(newPool, pool)
		newPool[outcome] += qty
		return l.Cost(newPool) - l.Cost(pool)
	}

	// Grow an upper bracket by doubling until the budget is exceeded. The
	// cost delta approaches qty as qty grows, so this terminates quickly.
	hi := 1.0
	for costFor(hi) < budget {
		hi *= 2
		if hi > 1e12 {
			return hi, nil
		}
	}

	lo := 0.0
	for i := 0; i < 100 && hi-lo > 1e-9; i++ {
		mid := (lo + hi) / 2
		if costFor(mid) <= budget {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}

func (l LMSR) validate(pool []float64) error {
	if l.B <= 0 {
		return fmt.Errorf("pricing: lmsr liquidity b=%v must be positive: %w",
			l.B, domain.ErrInvalidState)
	}
	return validatePool(pool)
}
