package pricing

// Parimutuel splits the total pool among winning stakeholders at settlement.
// A stake of amount points buys amount "shares" (stake units); the payout
// multiplier is recomputed against the final pool at settlement time, not at
// bet time, so displayed odds are only indicative.
type Parimutuel struct{}

// eps avoids division by zero when pools are empty.
const eps = 1e-6

// Prices returns the implied probability of each outcome from its share of
// the staked pool. An empty pool yields the uniform distribution.
func (Parimutuel) Prices(pool []float64) ([]float64, error) {
	if err := validatePool(pool); err != nil {
		return nil, err
	}
	n := len(pool)
	var sum float64
	for _, p := range pool {
		sum += p
	}
	probs := make([]float64, n)
	if sum <= 0 {
		for i := range probs {
			probs[i] = 1 / float64(n)
		}
		return probs, nil
	}
	denom := sum + eps*float64(n)
	for i, p := range pool {
		probs[i] = (p + eps) / denom
	}
	return probs, nil
}

// Quote stakes amount points on the given outcome. Shares equal the staked
// amount; the reported price impact reflects the probability shift caused by
// the stake.
func (pm Parimutuel) Quote(pool []float64, outcome int, amount float64) (Quote, error) {
	if err := validatePool(pool); err != nil {
		return Quote{}, err
	}
	if err := validateRequest(pool, outcome, amount); err != nil {
		return Quote{}, err
	}

	before, _ := pm.Prices(pool)

	newPool := make([]float64, len(pool))
	copy(newPool, pool)
	newPool[outcome] += amount

	after, _ := pm.Prices(newPool)

	return Quote{
		Cost:        amount,
		Shares:      amount,
		PriceImpact: impact(before[outcome], after[outcome]),
		NewPool:     newPool,
	}, nil
}

// SlippageBound is zero: parimutuel payouts are inherently path-dependent on
// the final pool, so single-trade price impact is not bounded.
func (Parimutuel) SlippageBound() float64 { return 0 }

// PayoutPerPoint returns the virtual payout multiplier per outcome if that
// outcome wins: totalPool / pool[i]. An outcome with no stake reports a very
// large multiplier (no competing stake yet); an empty pool falls back to the
// reciprocal of the uniform probabilities.
func (pm Parimutuel) PayoutPerPoint(pool []float64) ([]float64, error) {
	if err := validatePool(pool); err != nil {
		return nil, err
	}
	var sum float64
	for _, p := range pool {
		sum += p
	}
	payouts := make([]float64, len(pool))
	if sum <= 0 {
		probs, _ := pm.Prices(pool)
		for i, p := range probs {
			payouts[i] = 1 / (p + eps)
		}
		return payouts, nil
	}
	for i, p := range pool {
		if p <= 0 {
			payouts[i] = sum / eps
			continue
		}
		payouts[i] = sum / p
	}
	return payouts, nil
}
