// Package pricing implements the three interchangeable market-making
// mechanisms: parimutuel pool splitting, a binary constant-product AMM, and
// the log market scoring rule. Mechanisms are pure: they map pool state to
// prices and trade quotes and never touch storage.
package pricing

import (
	"fmt"

	"github.com/foresightlabs/foresight/internal/domain"
)

// Quote describes the outcome of committing amount to one outcome: the points
// debited, the shares received, the fractional price impact on the bought
// outcome, and the pool state after the trade.
type Quote struct {
	Cost        float64
	Shares      float64
	PriceImpact float64
	NewPool     []float64
}

// Mechanism is the pricing contract shared by all three variants.
//
// Prices returns the implied probability vector for the given pool state; it
// always sums to 1 with every entry in [0, 1]. Quote prices a commitment of
// amount to the given outcome. The interpretation of amount is per mechanism:
// points staked for parimutuel and CPMM, share quantity for LMSR.
type Mechanism interface {
	Prices(pool []float64) ([]float64, error)
	Quote(pool []float64, outcome int, amount float64) (Quote, error)
	// SlippageBound is the maximum tolerated price impact for a quote, or 0
	// when the mechanism does not bound slippage.
	SlippageBound() float64
}

// Options carries mechanism tuning shared across markets.
type Options struct {
	// SlippageBound caps the fractional price impact of a single CPMM or
	// LMSR trade. Zero disables the check.
	SlippageBound float64
}

// DefaultSlippageBound is the default maximum price impact (0.5%).
const DefaultSlippageBound = 0.005

// ForMarket selects the mechanism for a market once at load time, so trade
// execution and settlement stay mechanism-agnostic.
func ForMarket(m domain.Market, opts Options) (Mechanism, error) {
	bound := opts.SlippageBound
	switch m.Mechanism {
	case domain.MechanismParimutuel:
		return Parimutuel{}, nil
	case domain.MechanismCPMM:
		if len(m.Outcomes) != 2 {
			return nil, fmt.Errorf("pricing: cpmm requires exactly 2 outcomes, got %d: %w",
				len(m.Outcomes), domain.ErrInvalidState)
		}
		return CPMM{Bound: bound}, nil
	case domain.MechanismLMSR:
		if m.LiquidityB <= 0 {
			return nil, fmt.Errorf("pricing: lmsr liquidity b must be positive, got %v: %w",
				m.LiquidityB, domain.ErrInvalidState)
		}
		return LMSR{B: m.LiquidityB, Bound: bound}, nil
	default:
		return nil, fmt.Errorf("pricing: unknown mechanism %q: %w", m.Mechanism, domain.ErrInvalidState)
	}
}

// validatePool rejects pools with negative entries.
func validatePool(pool []float64) error {
	if len(pool) == 0 {
		return fmt.Errorf("pricing: empty pool: %w", domain.ErrInvalidState)
	}
	for i, p := range pool {
		if p < 0 {
			return fmt.Errorf("pricing: negative pool[%d]=%v: %w", i, p, domain.ErrInvalidState)
		}
	}
	return nil
}

// validateRequest rejects out-of-range outcomes and non-positive amounts.
func validateRequest(pool []float64, outcome int, amount float64) error {
	if outcome < 0 || outcome >= len(pool) {
		return fmt.Errorf("pricing: outcome %d out of range [0,%d): %w",
			outcome, len(pool), domain.ErrInvalidRequest)
	}
	if amount <= 0 {
		return fmt.Errorf("pricing: amount must be positive, got %v: %w",
			amount, domain.ErrInvalidRequest)
	}
	return nil
}

// impact returns the fractional price change of the bought outcome.
func impact(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	d := after - before
	if d < 0 {
		d = -d
	}
	return d / before
}
