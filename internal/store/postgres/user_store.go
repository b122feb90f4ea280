package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foresightlabs/foresight/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	q Querier
}

// NewUserStore creates a UserStore over the given querier.
func NewUserStore(q Querier) *UserStore {
	return &UserStore{q: q}
}

const userColumns = `id, username, balance, reputation, reputation_count, created_at, updated_at`

// Create inserts a new user.
func (s *UserStore) Create(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (id, username, balance, reputation, reputation_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q.Exec(ctx, query,
		u.ID, u.Username, u.Balance, u.Reputation, u.ReputationCount, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create user %s: %w", u.ID, err)
	}
	return nil
}

// Update rewrites a user's mutable fields.
func (s *UserStore) Update(ctx context.Context, u domain.User) error {
	const query = `
		UPDATE users SET
			username = $2, balance = $3, reputation = $4,
			reputation_count = $5, updated_at = $6
		WHERE id = $1`

	tag, err := s.q.Exec(ctx, query,
		u.ID, u.Username, u.Balance, u.Reputation, u.ReputationCount, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update user %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: user %s: %w", u.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns one user.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Balance, &u.Reputation,
		&u.ReputationCount, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("postgres: user %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

// ListTop returns users ordered by reputation, highest first.
func (s *UserStore) ListTop(ctx context.Context, limit int) ([]domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY reputation DESC, id
		LIMIT $1`

	rows, err := s.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list top users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Balance, &u.Reputation,
			&u.ReputationCount, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
