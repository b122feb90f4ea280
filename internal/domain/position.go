package domain

import "time"

// Position tracks one user's per-outcome holdings in one market. Holdings are
// always non-negative and must equal the replayed sum of the user's trade
// quantities per outcome. RealizedProfit is populated only at settlement.
type Position struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	MarketID       string     `json:"market_id"`
	Holdings       []float64  `json:"holdings"`
	RealizedProfit *float64   `json:"realized_profit,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Holding returns the position's holding for the given outcome, treating
// indexes beyond the stored vector as zero.
func (p Position) Holding(outcome int) float64 {
	if outcome < 0 || outcome >= len(p.Holdings) {
		return 0
	}
	return p.Holdings[outcome]
}
