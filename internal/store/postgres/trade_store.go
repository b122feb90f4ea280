package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/foresightlabs/foresight/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Trades are the
// append-only ledger; there is no update path.
type TradeStore struct {
	q Querier
}

// NewTradeStore creates a TradeStore over the given querier.
func NewTradeStore(q Querier) *TradeStore {
	return &TradeStore{q: q}
}

const tradeColumns = `id, user_id, market_id, outcome, quantity, cost, created_at`

// Create appends one trade to the ledger.
func (s *TradeStore) Create(ctx context.Context, t domain.Trade) error {
	const query = `
		INSERT INTO trades (id, user_id, market_id, outcome, quantity, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q.Exec(ctx, query,
		t.ID, t.UserID, t.MarketID, t.Outcome, t.Quantity, t.Cost, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create trade %s: %w", t.ID, err)
	}
	return nil
}

// ListByMarket returns a market's trades, newest first.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE market_id = $1`
	args := []any{marketID}
	query, args = applyWindow(query, args, "AND", opts)
	query += ` ORDER BY created_at DESC, id`
	query, args = applyPagination(query, args, opts)
	return s.list(ctx, query, args...)
}

// ListByUser returns a user's trades, newest first.
func (s *TradeStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE user_id = $1`
	args := []any{userID}
	query, args = applyWindow(query, args, "AND", opts)
	query += ` ORDER BY created_at DESC, id`
	query, args = applyPagination(query, args, opts)
	return s.list(ctx, query, args...)
}

// SumCostSince returns the user's total trade cost since the given time.
func (s *TradeStore) SumCostSince(ctx context.Context, userID string, since time.Time) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(cost), 0)
		FROM trades
		WHERE user_id = $1 AND created_at >= $2`

	var sum float64
	if err := s.q.QueryRow(ctx, query, userID, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("postgres: sum trade cost for %s: %w", userID, err)
	}
	return sum, nil
}

// ListBefore returns trades created strictly before the cutoff, oldest
// first, for ledger archival.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	return s.list(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE created_at < $1 ORDER BY created_at, id`,
		before)
}

func (s *TradeStore) list(ctx context.Context, query string, args ...any) ([]domain.Trade, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(&t.ID, &t.UserID, &t.MarketID, &t.Outcome,
			&t.Quantity, &t.Cost, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
