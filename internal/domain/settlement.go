package domain

import "time"

// Payout is one user's credit from a settlement.
type Payout struct {
	PositionID string  `json:"position_id"`
	UserID     string  `json:"user_id"`
	Amount     float64 `json:"amount"`
}

// SettlementRecord is the durable marker that a market has been settled.
// Its existence is the idempotency guard: re-settling a market returns the
// stored record instead of paying out again.
type SettlementRecord struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	Outcome   int       `json:"outcome"`
	TotalPool float64   `json:"total_pool"`
	TotalPaid float64   `json:"total_paid"`
	Payouts   []Payout  `json:"payouts"`
	SettledAt time.Time `json:"settled_at"`
}

// ReputationRecord is the append-only audit trail of one scoring event.
type ReputationRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MarketID  string    `json:"market_id"`
	Brier     float64   `json:"brier"`
	Delta     float64   `json:"delta"`
	CreatedAt time.Time `json:"created_at"`
}
