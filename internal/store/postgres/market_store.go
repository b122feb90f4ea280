package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/foresightlabs/foresight/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	q Querier
}

// NewMarketStore creates a MarketStore over the given querier.
func NewMarketStore(q Querier) *MarketStore {
	return &MarketStore{q: q}
}

const marketColumns = `
	id, title, description, category, outcomes, mechanism, pool,
	liquidity_b, status, resolved_outcome, closes_at, created_at, updated_at`

// Create inserts a new market.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, title, description, category, outcomes, mechanism, pool,
			liquidity_b, status, resolved_outcome, closes_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.q.Exec(ctx, query,
		m.ID, m.Title, m.Description, m.Category, m.Outcomes,
		string(m.Mechanism), m.Pool, m.LiquidityB, string(m.Status),
		m.ResolvedOutcome, m.ClosesAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s: %w", m.ID, err)
	}
	return nil
}

// Update rewrites a market's mutable fields.
func (s *MarketStore) Update(ctx context.Context, m domain.Market) error {
	const query = `
		UPDATE markets SET
			title = $2, description = $3, category = $4, pool = $5,
			liquidity_b = $6, status = $7, resolved_outcome = $8,
			closes_at = $9, updated_at = $10
		WHERE id = $1`

	tag, err := s.q.Exec(ctx, query,
		m.ID, m.Title, m.Description, m.Category, m.Pool,
		m.LiquidityB, string(m.Status), m.ResolvedOutcome, m.ClosesAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update market %s: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: market %s: %w", m.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns one market.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.q.QueryRow(ctx, `SELECT `+marketColumns+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Market{}, fmt.Errorf("postgres: market %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets filtered by status, newest first. An empty status
// lists all markets.
func (s *MarketStore) List(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`
	query, args = applyPagination(query, args, opts)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListExpired returns open markets whose deadline has passed.
func (s *MarketStore) ListExpired(ctx context.Context, asOf time.Time) ([]domain.Market, error) {
	const query = `
		SELECT ` + marketColumns + `
		FROM markets
		WHERE status = 'open' AND closes_at IS NOT NULL AND closes_at <= $1
		ORDER BY closes_at`

	rows, err := s.q.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired markets: %w", err)
	}
	defer rows.Close()

	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m               domain.Market
		mechanism       string
		status          string
	)
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.Category, &m.Outcomes, &mechanism,
		&m.Pool, &m.LiquidityB, &status, &m.ResolvedOutcome, &m.ClosesAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Mechanism = domain.MechanismType(mechanism)
	m.Status = domain.MarketStatus(status)
	return m, nil
}
