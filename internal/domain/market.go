package domain

import "time"

// MechanismType selects the pricing mechanism a market trades under.
type MechanismType string

const (
	// MechanismParimutuel pools all stake per outcome; the payout multiplier
	// is determined post hoc from the final pool ratio.
	MechanismParimutuel MechanismType = "parimutuel"
	// MechanismCPMM is a binary constant-product AMM (yesPool x noPool = k).
	MechanismCPMM MechanismType = "cpmm"
	// MechanismLMSR is Hanson's log market scoring rule with liquidity b.
	MechanismLMSR MechanismType = "lmsr"
)

// Valid reports whether t is a known mechanism type.
func (t MechanismType) Valid() bool {
	switch t {
	case MechanismParimutuel, MechanismCPMM, MechanismLMSR:
		return true
	}
	return false
}

// MarketStatus represents the lifecycle state of a market. Transitions are
// monotonic: open -> closed -> settled, never backwards.
type MarketStatus string

const (
	MarketStatusOpen    MarketStatus = "open"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Market is a simulated prediction market. Pool holds the mechanism-specific
// state: stake per outcome for parimutuel, the two reserves for CPMM, or the
// outstanding share vector q for LMSR.
type Market struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	Category        string        `json:"category,omitempty"`
	Outcomes        []string      `json:"outcomes"`
	Mechanism       MechanismType `json:"mechanism"`
	Pool            []float64     `json:"pool"`
	LiquidityB      float64       `json:"liquidity_b,omitempty"` // LMSR only
	Status          MarketStatus  `json:"status"`
	ResolvedOutcome *int          `json:"resolved_outcome,omitempty"`
	ClosesAt        *time.Time    `json:"closes_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Tradeable reports whether the market accepts new trades.
func (m Market) Tradeable() bool {
	return m.Status == MarketStatusOpen
}

// OutcomeInRange reports whether idx addresses one of the market's outcomes.
func (m Market) OutcomeInRange(idx int) bool {
	return idx >= 0 && idx < len(m.Outcomes)
}

// TotalPool returns the sum of the pool vector. For parimutuel and CPMM
// markets this is the total collected pool available for redistribution.
func (m Market) TotalPool() float64 {
	var sum float64
	for _, p := range m.Pool {
		sum += p
	}
	return sum
}
