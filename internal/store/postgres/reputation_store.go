package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/foresightlabs/foresight/internal/domain"
)

// ReputationStore implements domain.ReputationStore using PostgreSQL.
type ReputationStore struct {
	q Querier
}

// NewReputationStore creates a ReputationStore over the given querier.
func NewReputationStore(q Querier) *ReputationStore {
	return &ReputationStore{q: q}
}

const reputationColumns = `id, user_id, market_id, brier, delta, created_at`

// Create appends one scoring record.
func (s *ReputationStore) Create(ctx context.Context, r domain.ReputationRecord) error {
	const query = `
		INSERT INTO reputation_records (id, user_id, market_id, brier, delta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.q.Exec(ctx, query, r.ID, r.UserID, r.MarketID, r.Brier, r.Delta, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create reputation record %s: %w", r.ID, err)
	}
	return nil
}

// ListByUser returns a user's scoring trail, newest first.
func (s *ReputationStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ReputationRecord, error) {
	query := `SELECT ` + reputationColumns + ` FROM reputation_records WHERE user_id = $1`
	args := []any{userID}
	query, args = applyWindow(query, args, "AND", opts)
	query += ` ORDER BY created_at DESC, id`
	query, args = applyPagination(query, args, opts)
	return s.list(ctx, query, args...)
}

// ListBefore returns records created strictly before the cutoff, oldest
// first, for archival.
func (s *ReputationStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ReputationRecord, error) {
	return s.list(ctx,
		`SELECT `+reputationColumns+` FROM reputation_records WHERE created_at < $1 ORDER BY created_at, id`,
		before)
}

func (s *ReputationStore) list(ctx context.Context, query string, args ...any) ([]domain.ReputationRecord, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reputation records: %w", err)
	}
	defer rows.Close()

	var out []domain.ReputationRecord
	for rows.Next() {
		var r domain.ReputationRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.MarketID, &r.Brier, &r.Delta, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan reputation record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
