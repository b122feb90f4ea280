package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foresightlabs/foresight/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	q Querier
}

// NewPositionStore creates a PositionStore over the given querier.
func NewPositionStore(q Querier) *PositionStore {
	return &PositionStore{q: q}
}

const positionColumns = `id, user_id, market_id, holdings, realized_profit, created_at, updated_at`

// Upsert inserts or rewrites the (user, market) position.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (id, user_id, market_id, holdings, realized_profit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, market_id) DO UPDATE SET
			holdings        = EXCLUDED.holdings,
			realized_profit = EXCLUDED.realized_profit,
			updated_at      = EXCLUDED.updated_at`

	_, err := s.q.Exec(ctx, query,
		p.ID, p.UserID, p.MarketID, p.Holdings, p.RealizedProfit, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s/%s: %w", p.UserID, p.MarketID, err)
	}
	return nil
}

// Get returns the position for one (user, market) pair.
func (s *PositionStore) Get(ctx context.Context, userID, marketID string) (domain.Position, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = $1 AND market_id = $2`,
		userID, marketID,
	)

	var p domain.Position
	err := row.Scan(&p.ID, &p.UserID, &p.MarketID, &p.Holdings,
		&p.RealizedProfit, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, fmt.Errorf("postgres: position %s/%s: %w",
			userID, marketID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", userID, marketID, err)
	}
	return p, nil
}

// ListByMarket returns every position in a market, ordered by user.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Position, error) {
	return s.list(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE market_id = $1 ORDER BY user_id`,
		marketID)
}

// ListByUser returns every position held by a user, ordered by market.
func (s *PositionStore) ListByUser(ctx context.Context, userID string) ([]domain.Position, error) {
	return s.list(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = $1 ORDER BY market_id`,
		userID)
}

func (s *PositionStore) list(ctx context.Context, query string, args ...any) ([]domain.Position, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.ID, &p.UserID, &p.MarketID, &p.Holdings,
			&p.RealizedProfit, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
