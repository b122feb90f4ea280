package domain

import "time"

// User holds a predictor's Insight Points balance and reputation state.
// Balance is mutated only by trade execution (debit) and settlement (credit);
// reputation only by the reputation scorer.
type User struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	Balance         float64   `json:"balance"`
	Reputation      float64   `json:"reputation"`
	ReputationCount int64     `json:"reputation_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
