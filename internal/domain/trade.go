package domain

import "time"

// Trade is an immutable ledger record of one executed bet. Trades are
// append-only: a position's holdings must be reproducible by replaying its
// trades in order.
type Trade struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	MarketID  string    `json:"market_id"`
	Outcome   int       `json:"outcome"`
	Quantity  float64   `json:"quantity"` // shares received
	Cost      float64   `json:"cost"`     // points debited
	CreatedAt time.Time `json:"created_at"`
}

// TradeResult is returned to the caller after a successful execution.
type TradeResult struct {
	Trade      Trade     `json:"trade"`
	NewBalance float64   `json:"new_balance"`
	Holdings   []float64 `json:"holdings"`
}
