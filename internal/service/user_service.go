package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foresightlabs/foresight/internal/domain"
)

// UserConfig holds user-provisioning defaults.
type UserConfig struct {
	// StartingBalance is the Insight Points balance granted to new users.
	StartingBalance float64
	// LeaderboardSize caps the leaderboard query.
	LeaderboardSize int
}

// UserService provisions predictors and serves their read models: balance,
// positions, trade history, reputation trail and the leaderboard.
type UserService struct {
	tx     domain.Transactor
	stores domain.TxStores
	risk   *RiskService
	cfg    UserConfig
	logger *slog.Logger
}

// NewUserService creates a UserService with all required dependencies.
func NewUserService(
	tx domain.Transactor,
	stores domain.TxStores,
	risk *RiskService,
	cfg UserConfig,
	logger *slog.Logger,
) *UserService {
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = 20
	}
	return &UserService{tx: tx, stores: stores, risk: risk, cfg: cfg, logger: logger}
}

// Register provisions a new user with the starting balance.
func (s *UserService) Register(ctx context.Context, username string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, fmt.Errorf("user_service: username required: %w", domain.ErrInvalidRequest)
	}

	now := time.Now().UTC()
	u := domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Balance:   s.cfg.StartingBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.tx.WithinTx(ctx, func(tx domain.TxStores) error {
		if err := tx.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("user_service: create user: %w", err)
		}
		return tx.Audit.Log(ctx, "user.registered", map[string]any{"user_id": u.ID})
	})
	if err != nil {
		return domain.User{}, err
	}

	s.logger.InfoContext(ctx, "user_service: user registered",
		slog.String("user_id", u.ID),
		slog.String("username", username),
	)
	return u, nil
}

// Get returns one user by ID.
func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	return s.stores.Users.GetByID(ctx, id)
}

// Leaderboard returns the top users ordered by reputation.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 || limit > s.cfg.LeaderboardSize {
		limit = s.cfg.LeaderboardSize
	}
	return s.stores.Users.ListTop(ctx, limit)
}

// Positions returns all of a user's positions.
func (s *UserService) Positions(ctx context.Context, userID string) ([]domain.Position, error) {
	if _, err := s.stores.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.stores.Positions.ListByUser(ctx, userID)
}

// Trades returns a user's trade history, newest first.
func (s *UserService) Trades(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Trade, error) {
	return s.stores.Trades.ListByUser(ctx, userID, opts)
}

// ReputationHistory returns a user's scoring trail, newest first.
func (s *UserService) ReputationHistory(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ReputationRecord, error) {
	return s.stores.Reputation.ListByUser(ctx, userID, opts)
}

// SpendStatus reports the user's trailing 24-hour spend and the remaining
// headroom under the daily cap.
func (s *UserService) SpendStatus(ctx context.Context, userID string) (spent, remaining float64, err error) {
	if _, err := s.stores.Users.GetByID(ctx, userID); err != nil {
		return 0, 0, err
	}
	return s.risk.DailySpend(ctx, s.stores.Trades, userID, time.Now().UTC())
}
