package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foresightlabs/foresight/internal/domain"
)

// SettlementStore implements domain.SettlementStore using PostgreSQL. The
// UNIQUE constraint on market_id backs the settle-at-most-once invariant at
// the storage layer as well.
type SettlementStore struct {
	q Querier
}

// NewSettlementStore creates a SettlementStore over the given querier.
func NewSettlementStore(q Querier) *SettlementStore {
	return &SettlementStore{q: q}
}

// Create inserts the settlement record with its payout batch.
func (s *SettlementStore) Create(ctx context.Context, rec domain.SettlementRecord) error {
	payouts, err := json.Marshal(rec.Payouts)
	if err != nil {
		return fmt.Errorf("postgres: marshal payouts: %w", err)
	}

	const query = `
		INSERT INTO settlements (id, market_id, outcome, total_pool, total_paid, payouts, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.q.Exec(ctx, query,
		rec.ID, rec.MarketID, rec.Outcome, rec.TotalPool, rec.TotalPaid, payouts, rec.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create settlement for market %s: %w", rec.MarketID, err)
	}
	return nil
}

// GetByMarket returns the settlement record for a market, or ErrNotFound
// when it has not been settled.
func (s *SettlementStore) GetByMarket(ctx context.Context, marketID string) (domain.SettlementRecord, error) {
	const query = `
		SELECT id, market_id, outcome, total_pool, total_paid, payouts, settled_at
		FROM settlements
		WHERE market_id = $1`

	var (
		rec     domain.SettlementRecord
		payouts []byte
	)
	err := s.q.QueryRow(ctx, query, marketID).Scan(
		&rec.ID, &rec.MarketID, &rec.Outcome, &rec.TotalPool, &rec.TotalPaid,
		&payouts, &rec.SettledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SettlementRecord{}, fmt.Errorf("postgres: settlement for market %s: %w",
			marketID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.SettlementRecord{}, fmt.Errorf("postgres: get settlement for market %s: %w",
			marketID, err)
	}
	if err := json.Unmarshal(payouts, &rec.Payouts); err != nil {
		return domain.SettlementRecord{}, fmt.Errorf("postgres: unmarshal payouts: %w", err)
	}
	return rec, nil
}
